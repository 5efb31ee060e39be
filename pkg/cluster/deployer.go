package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/health"
	"github.com/gantryci/gantry/pkg/log"
	"github.com/gantryci/gantry/pkg/types"
)

// validTransitions encodes the deployment state machine. Teardown is
// reachable from every state because the cluster must be released on all
// exit paths.
var validTransitions = map[types.DeploymentState][]types.DeploymentState{
	types.DeploymentStateProvisioning: {types.DeploymentStateReady},
	types.DeploymentStateReady:        {types.DeploymentStateLoading},
	types.DeploymentStateLoading:      {types.DeploymentStateDeploying},
	types.DeploymentStateDeploying:    {types.DeploymentStateVerifying},
	types.DeploymentStateVerifying:    {types.DeploymentStateHealthy, types.DeploymentStateUnhealthy},
}

// Options configures a Deployer
type Options struct {
	// Provider is the cluster tooling binary, e.g. "kind"
	Provider string
	// Name is the ephemeral cluster name
	Name string
	// ReadyTimeout bounds WaitReady polling
	ReadyTimeout time.Duration
	// PollInterval is the status poll cadence
	PollInterval time.Duration
	// Runner overrides the exec-based tooling invocation (used in tests)
	Runner Runner
}

// Deployer drives one ephemeral cluster through provision, image load,
// manifest apply, readiness verification, probe, and teardown. A cluster
// is exclusive to a single run for its lifetime.
type Deployer struct {
	provider     string
	name         string
	readyTimeout time.Duration
	pollInterval time.Duration
	runner       Runner
	logger       zerolog.Logger
}

// NewDeployer creates a deployer for one ephemeral cluster
func NewDeployer(opts Options) *Deployer {
	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	return &Deployer{
		provider:     opts.Provider,
		name:         opts.Name,
		readyTimeout: opts.ReadyTimeout,
		pollInterval: opts.PollInterval,
		runner:       runner,
		logger:       log.WithComponent("cluster"),
	}
}

// kubeContext is the kubeconfig context the provider creates
func (d *Deployer) kubeContext() string {
	return d.provider + "-" + d.name
}

// advance moves the target through the state machine, rejecting
// transitions the machine does not allow
func (d *Deployer) advance(target *types.DeploymentTarget, to types.DeploymentState) error {
	if to == types.DeploymentStateTornDown {
		target.State = to
		return nil
	}
	for _, allowed := range validTransitions[target.State] {
		if allowed == to {
			target.State = to
			return nil
		}
	}
	return fmt.Errorf("invalid deployment transition %s -> %s", target.State, to)
}

// Provision creates the ephemeral cluster
func (d *Deployer) Provision(ctx context.Context) (*types.DeploymentTarget, error) {
	target := &types.DeploymentTarget{
		ClusterName: d.name,
		State:       types.DeploymentStateProvisioning,
		CreatedAt:   time.Now(),
	}

	d.logger.Info().Str("cluster", d.name).Msg("provisioning ephemeral cluster")
	if _, err := d.runner.Run(ctx, d.provider, "create", "cluster", "--name", d.name, "--wait", "60s"); err != nil {
		return target, fmt.Errorf("cluster provision failed: %w", err)
	}
	if err := d.advance(target, types.DeploymentStateReady); err != nil {
		return target, err
	}
	return target, nil
}

// LoadImage loads the built image into the cluster's node image store
func (d *Deployer) LoadImage(ctx context.Context, target *types.DeploymentTarget, artifact *types.ImageArtifact) error {
	if err := d.advance(target, types.DeploymentStateLoading); err != nil {
		return err
	}

	d.logger.Info().Str("image", artifact.Ref()).Str("cluster", d.name).Msg("loading image")
	if _, err := d.runner.Run(ctx, d.provider, "load", "docker-image", artifact.Ref(), "--name", d.name); err != nil {
		return fmt.Errorf("image load failed: %w", err)
	}
	return nil
}

// Apply renders and applies the workload manifest
func (d *Deployer) Apply(ctx context.Context, target *types.DeploymentTarget, workload types.WorkloadSpec) error {
	if err := d.advance(target, types.DeploymentStateDeploying); err != nil {
		return err
	}
	target.Workload = workload

	manifest, err := RenderManifest(workload)
	if err != nil {
		return err
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("gantry-%s.yaml", d.name))
	if err := os.WriteFile(path, manifest, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	defer os.Remove(path)

	d.logger.Info().Str("workload", workload.Name).Str("cluster", d.name).Msg("applying manifest")
	if _, err := d.runner.Run(ctx, "kubectl", "--context", d.kubeContext(), "apply", "-f", path); err != nil {
		return fmt.Errorf("manifest apply failed: %w", err)
	}
	return nil
}

// deploymentStatus is the slice of kubectl output WaitReady reads
type deploymentStatus struct {
	Status struct {
		ReadyReplicas int `json:"readyReplicas"`
	} `json:"status"`
}

// WaitReady polls workload status at the configured interval until every
// replica is ready or the deadline passes. Exceeding the deadline marks
// the target Unhealthy and reports DeploymentTimeoutError; it never blocks
// indefinitely.
func (d *Deployer) WaitReady(ctx context.Context, target *types.DeploymentTarget) error {
	if err := d.advance(target, types.DeploymentStateVerifying); err != nil {
		return err
	}

	deadline := time.Now().Add(d.readyTimeout)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		out, err := d.runner.Run(ctx, "kubectl", "--context", d.kubeContext(),
			"get", "deployment", target.Workload.Name, "-o", "json")
		if err == nil {
			var status deploymentStatus
			if jsonErr := json.Unmarshal(out, &status); jsonErr == nil &&
				status.Status.ReadyReplicas >= target.Workload.Replicas {
				d.logger.Info().Int("replicas", status.Status.ReadyReplicas).Msg("workload ready")
				return nil
			}
		} else {
			d.logger.Debug().Err(err).Msg("status poll failed, retrying")
		}

		if time.Now().After(deadline) {
			target.State = types.DeploymentStateUnhealthy
			return &errdefs.DeploymentTimeoutError{Cluster: d.name, Deadline: d.readyTimeout}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			target.State = types.DeploymentStateUnhealthy
			return ctx.Err()
		}
	}
}

// Probe smoke-tests the exposed node port, retrying until the readiness
// deadline. Success transitions the target to Healthy.
func (d *Deployer) Probe(ctx context.Context, target *types.DeploymentTarget, url string, expectedStatus int) error {
	checker := health.NewHTTPChecker(url, expectedStatus)

	deadline := time.Now().Add(d.readyTimeout)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		result := checker.Check(ctx)
		if result.Healthy {
			if err := d.advance(target, types.DeploymentStateHealthy); err != nil {
				return err
			}
			d.logger.Info().Str("url", url).Str("result", result.Message).Msg("smoke test passed")
			return nil
		}

		if time.Now().After(deadline) {
			target.State = types.DeploymentStateUnhealthy
			return &errdefs.DeploymentTimeoutError{Cluster: d.name, Deadline: d.readyTimeout}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			target.State = types.DeploymentStateUnhealthy
			return ctx.Err()
		}
	}
}

// Teardown deletes the ephemeral cluster. It runs on every exit path and
// is idempotent; a second call is a no-op.
func (d *Deployer) Teardown(ctx context.Context, target *types.DeploymentTarget) error {
	if target.State == types.DeploymentStateTornDown {
		return nil
	}

	d.logger.Info().Str("cluster", d.name).Msg("tearing down ephemeral cluster")
	if _, err := d.runner.Run(ctx, d.provider, "delete", "cluster", "--name", d.name); err != nil {
		return fmt.Errorf("cluster teardown failed: %w", err)
	}
	return d.advance(target, types.DeploymentStateTornDown)
}
