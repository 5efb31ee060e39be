package errdefs

import (
	"errors"
	"fmt"
	"time"

	"github.com/gantryci/gantry/pkg/types"
)

// ConfigError indicates missing or invalid configuration. It is fatal and
// reported before any step executes.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Option, e.Reason)
}

// BuildError indicates a builder backend failure
type BuildError struct {
	Variant types.BuildVariant
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed (variant %s): %v", e.Variant, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ScanTimeoutError indicates the scanner did not complete within its
// timeout. Kept distinct from a findings-bearing result so operators can
// tell "scanner broke" from "scanner found problems".
type ScanTimeoutError struct {
	Image   string
	Timeout time.Duration
}

func (e *ScanTimeoutError) Error() string {
	return fmt.Sprintf("scan of %s timed out after %s", e.Image, e.Timeout)
}

// GateFailure indicates findings exceeded the configured severity gate.
// Failing the run on a GateFailure is intended behavior, not a defect.
type GateFailure struct {
	Blocking []types.Finding
}

func (e *GateFailure) Error() string {
	worst := types.Severity("")
	for _, f := range e.Blocking {
		if f.Severity.Rank() > worst.Rank() {
			worst = f.Severity
		}
	}
	return fmt.Sprintf("severity gate failed: %d blocking finding(s), worst %s", len(e.Blocking), worst)
}

// PublishError indicates the registry push failed after bounded retries
type PublishError struct {
	Ref      string
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("push of %s failed after %d attempt(s): %v", e.Ref, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// DeploymentTimeoutError indicates the workload never became healthy
// within the readiness deadline. Teardown still runs.
type DeploymentTimeoutError struct {
	Cluster  string
	Deadline time.Duration
}

func (e *DeploymentTimeoutError) Error() string {
	return fmt.Sprintf("deployment on %s not healthy within %s", e.Cluster, e.Deadline)
}

// IsConfigError reports whether err is (or wraps) a ConfigError
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IsBuildError reports whether err is (or wraps) a BuildError
func IsBuildError(err error) bool {
	var e *BuildError
	return errors.As(err, &e)
}

// IsScanTimeout reports whether err is (or wraps) a ScanTimeoutError
func IsScanTimeout(err error) bool {
	var e *ScanTimeoutError
	return errors.As(err, &e)
}

// IsGateFailure reports whether err is (or wraps) a GateFailure
func IsGateFailure(err error) bool {
	var e *GateFailure
	return errors.As(err, &e)
}

// IsPublishError reports whether err is (or wraps) a PublishError
func IsPublishError(err error) bool {
	var e *PublishError
	return errors.As(err, &e)
}

// IsDeploymentTimeout reports whether err is (or wraps) a DeploymentTimeoutError
func IsDeploymentTimeout(err error) bool {
	var e *DeploymentTimeoutError
	return errors.As(err, &e)
}

// Kind returns a short machine-readable name for the error class, used in
// run records and metrics labels
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfigError(err):
		return "config"
	case IsBuildError(err):
		return "build"
	case IsScanTimeout(err):
		return "scan_timeout"
	case IsGateFailure(err):
		return "gate_failure"
	case IsPublishError(err):
		return "publish"
	case IsDeploymentTimeout(err):
		return "deployment_timeout"
	default:
		return "internal"
	}
}
