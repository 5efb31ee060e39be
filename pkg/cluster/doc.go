/*
Package cluster deploys a built image into an ephemeral local cluster and
verifies the resulting workload.

The Deployer walks one deployment through a fixed state machine:

	Provisioning -> Ready -> Loading -> Deploying -> Verifying
	    -> {Healthy, Unhealthy} -> TornDown

External cluster tooling (kind-style provisioning, kubectl apply and
status queries) is reached through the Runner interface so the whole
sequence is testable without a cluster. WaitReady polls at a bounded
interval up to a deadline and reports DeploymentTimeoutError instead of
blocking; Probe smoke-tests the exposed node port the same way. Teardown
is reachable from every state and idempotent, so the ephemeral cluster is
released on all exit paths, including cancellation.
*/
package cluster
