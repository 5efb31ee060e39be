/*
Package errdefs defines the pipeline error taxonomy.

Each failure class the engine distinguishes is a typed error: ConfigError,
BuildError, ScanTimeoutError, GateFailure, PublishError, and
DeploymentTimeoutError. Collaborators wrap backend failures into these
types; callers branch with errors.As or the Is* helpers, and Kind maps any
error to a stable label for run records and metrics.

All other errors propagate as plain wrapped errors and abort the run.
*/
package errdefs
