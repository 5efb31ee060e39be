package types

import (
	"strings"
	"time"
)

// WorkflowKind identifies one of the built-in workflows
type WorkflowKind string

const (
	WorkflowCI WorkflowKind = "ci"
	WorkflowCD WorkflowKind = "cd"
)

// RunStatus represents the terminal (or in-flight) state of a pipeline run
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusAborted RunStatus = "aborted"
)

// StepStatus represents the outcome of a single step
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// StepResult records the outcome of one executed step
type StepResult struct {
	Name      string
	Status    StepStatus
	Message   string
	StartedAt time.Time
	Duration  time.Duration
}

// PipelineRun is the unit of work the engine executes. It is mutated by
// each step and becomes immutable once Status is terminal.
type PipelineRun struct {
	ID         string
	Workflow   WorkflowKind
	Revision   string
	Platform   string
	Status     RunStatus
	Steps      []StepResult
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run ended in a non-success terminal state
func (r *PipelineRun) Failed() bool {
	return r.Status == RunStatusFailed || r.Status == RunStatusAborted
}

// CacheKey addresses a build-layer cache entry. Keys are structured rather
// than concatenated strings so prefix matching is explicit.
type CacheKey struct {
	Platform string
	Workflow WorkflowKind
	Revision string
}

// String renders the canonical key form "platform/workflow/revision"
func (k CacheKey) String() string {
	return k.Platform + "/" + string(k.Workflow) + "/" + k.Revision
}

// RestorePrefix is the fallback prefix covering all revisions for this
// platform and workflow
func (k CacheKey) RestorePrefix() string {
	return k.Platform + "/" + string(k.Workflow) + "/"
}

// HasPrefix reports whether the canonical key form starts with prefix
func (k CacheKey) HasPrefix(prefix string) bool {
	return strings.HasPrefix(k.String(), prefix)
}

// Severity classifies a vulnerability finding
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities for comparison; higher is worse
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Finding is a single vulnerability reported by the scanner
type Finding struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Package     string   `json:"package"`
	Description string   `json:"description,omitempty"`
}

// ScanResult is the structured output of one image inspection. An empty
// Findings slice means the scan completed and found nothing; inability to
// scan is always surfaced as an error, never as an empty result.
type ScanResult struct {
	Findings  []Finding `json:"findings"`
	ScannedAt time.Time `json:"scanned_at"`
}

// BuildVariant selects which image build target is produced
type BuildVariant string

const (
	// VariantScan is built only for inspection and never published
	VariantScan BuildVariant = "scan"
	// VariantPublish is the sibling build that is actually pushed
	VariantPublish BuildVariant = "publish"
)

// ImageArtifact describes a built container image
type ImageArtifact struct {
	Repository string
	Tag        string
	Digest     string
	Variant    BuildVariant
	// CacheSeedKey is the cache key the build was seeded from, empty for
	// a fresh (unseeded) build
	CacheSeedKey string
}

// Ref returns the repository:tag reference
func (a *ImageArtifact) Ref() string {
	return a.Repository + ":" + a.Tag
}

// DeploymentState tracks the cluster deployer state machine
type DeploymentState string

const (
	DeploymentStateProvisioning DeploymentState = "provisioning"
	DeploymentStateReady        DeploymentState = "ready"
	DeploymentStateLoading      DeploymentState = "loading"
	DeploymentStateDeploying    DeploymentState = "deploying"
	DeploymentStateVerifying    DeploymentState = "verifying"
	DeploymentStateHealthy      DeploymentState = "healthy"
	DeploymentStateUnhealthy    DeploymentState = "unhealthy"
	DeploymentStateTornDown     DeploymentState = "torndown"
)

// WorkloadSpec describes the workload applied to the ephemeral cluster
type WorkloadSpec struct {
	Name     string
	Image    string
	Replicas int
	Port     int
	NodePort int
}

// DeploymentTarget is the handle for one ephemeral cluster deployment.
// The cluster is exclusive to a single run for its lifetime.
type DeploymentTarget struct {
	ClusterName string
	Workload    WorkloadSpec
	State       DeploymentState
	CreatedAt   time.Time
}
