/*
Package engine sequences the CI and CD workflows.

A workflow is an ordered list of steps sharing a RunContext:

	CI: checkout -> cache-restore -> build(scan) -> scan -> gate
	      -> build(publish) -> cache-save -> publish
	CD: provision -> load-image -> apply -> wait-ready -> probe
	      -> teardown (always)

Steps run strictly in order; the first failure aborts the rest (recorded
as skipped) and the run carries the failing step's error kind. The engine
itself only sequences and aggregates results; all side effects live in the
collaborators behind the Cache, Builder, Scanner, Publisher, and Deployer
interfaces.

Cancellation is cooperative: the run aborts between steps, and for CD the
teardown still executes outside the cancelled context so the ephemeral
cluster is never leaked. Terminal runs are persisted to the run store for
diagnosis.
*/
package engine
