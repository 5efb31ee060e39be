package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gantryci/gantry/pkg/builder"
	"github.com/gantryci/gantry/pkg/config"
	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/events"
	"github.com/gantryci/gantry/pkg/log"
	"github.com/gantryci/gantry/pkg/metrics"
	"github.com/gantryci/gantry/pkg/registry"
	"github.com/gantryci/gantry/pkg/scanner"
	"github.com/gantryci/gantry/pkg/storage"
	"github.com/gantryci/gantry/pkg/types"
)

// Cache is the engine's view of the build-layer cache store
type Cache interface {
	Restore(key types.CacheKey, restoreKeys []string) (payload []byte, matchedKey string, hit bool, err error)
	Save(key types.CacheKey, payload []byte) error
	Prune() (int, error)
}

// Deployer is the engine's view of the cluster deployer
type Deployer interface {
	Provision(ctx context.Context) (*types.DeploymentTarget, error)
	LoadImage(ctx context.Context, target *types.DeploymentTarget, artifact *types.ImageArtifact) error
	Apply(ctx context.Context, target *types.DeploymentTarget, workload types.WorkloadSpec) error
	WaitReady(ctx context.Context, target *types.DeploymentTarget) error
	Probe(ctx context.Context, target *types.DeploymentTarget, url string, expectedStatus int) error
	Teardown(ctx context.Context, target *types.DeploymentTarget) error
}

// RunContext carries per-run state between steps. Steps communicate only
// through it; the engine itself has no side effects beyond sequencing.
type RunContext struct {
	Run    *types.PipelineRun
	Config *config.Config

	// Key is the exact cache key for this run
	Key types.CacheKey

	// cache-restore results
	RestoredPayload []byte
	RestoredKey     string
	CacheHit        bool

	// build results
	ScanArtifact    *types.ImageArtifact
	PublishArtifact *types.ImageArtifact
	Layers          []byte

	// scan results
	ScanResult *types.ScanResult

	// publish result
	Digest string

	// CD deployment handle
	Target *types.DeploymentTarget

	// stepErr holds the wrapped error of the step that failed the run
	stepErr error
	// stepMessage annotates the current step's result
	stepMessage string
}

// setStepMessage annotates the result of the currently executing step
func (rc *RunContext) setStepMessage(format string, args ...interface{}) {
	rc.stepMessage = fmt.Sprintf(format, args...)
}

// takeStepMessage consumes the pending step annotation
func (rc *RunContext) takeStepMessage() string {
	msg := rc.stepMessage
	rc.stepMessage = ""
	return msg
}

// Step is one unit of pipeline work. Steps run strictly in declared
// order; a returned error fails the run and skips the rest.
type Step interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// stepFunc adapts a function to the Step interface
type stepFunc struct {
	name string
	fn   func(ctx context.Context, rc *RunContext) error
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) Execute(ctx context.Context, rc *RunContext) error {
	return s.fn(ctx, rc)
}

// Options wires the engine's collaborators
type Options struct {
	Cache     Cache
	Builder   builder.Builder
	Scanner   scanner.Scanner
	Publisher registry.Publisher
	Deployer  Deployer
	Runs      storage.Store
	Broker    *events.Broker
}

// Engine sequences pipeline steps with fail-fast ordering, severity
// gating, and guaranteed cluster teardown
type Engine struct {
	cfg       *config.Config
	cache     Cache
	builder   builder.Builder
	scanner   scanner.Scanner
	publisher registry.Publisher
	deployer  Deployer
	runs      storage.Store
	broker    *events.Broker
	logger    zerolog.Logger
}

// New creates an engine around the given collaborators
func New(cfg *config.Config, opts Options) *Engine {
	return &Engine{
		cfg:       cfg,
		cache:     opts.Cache,
		builder:   opts.Builder,
		scanner:   opts.Scanner,
		publisher: opts.Publisher,
		deployer:  opts.Deployer,
		runs:      opts.Runs,
		broker:    opts.Broker,
		logger:    log.WithComponent("engine"),
	}
}

// Run executes one workflow. Configuration errors are reported before any
// step runs. The returned PipelineRun is always non-nil once the pipeline
// has started; its Steps record which steps completed, failed, and were
// skipped.
func (e *Engine) Run(ctx context.Context, kind types.WorkflowKind, revision, platform string) (*types.PipelineRun, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	run := &types.PipelineRun{
		ID:        uuid.NewString(),
		Workflow:  kind,
		Revision:  revision,
		Platform:  platform,
		Status:    types.RunStatusRunning,
		StartedAt: time.Now(),
	}

	rc := &RunContext{
		Run:    run,
		Config: e.cfg,
		Key: types.CacheKey{
			Platform: platform,
			Workflow: kind,
			Revision: revision,
		},
	}

	var steps []Step
	switch kind {
	case types.WorkflowCI:
		steps = e.ciSteps()
	case types.WorkflowCD:
		steps = e.cdSteps()
	default:
		return nil, &errdefs.ConfigError{Option: "workflow", Reason: fmt.Sprintf("unknown workflow %q", kind)}
	}

	logger := e.logger.With().Str("run_id", run.ID).Str("workflow", string(kind)).Logger()
	logger.Info().Str("revision", revision).Str("platform", platform).Msg("run started")
	e.publish(&events.Event{Type: events.EventRunStarted, RunID: run.ID, Message: string(kind)})

	runTimer := metrics.NewTimer()
	var failure error

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			run.Status = types.RunStatusAborted
			run.Error = "cancelled"
			failure = err
			e.skipRemaining(run, steps[i:])
			break
		}

		result := e.executeStep(ctx, step, rc, logger)
		run.Steps = append(run.Steps, result)

		if result.Status == types.StepStatusFailed {
			failure = rc.stepErr
			run.Status = types.RunStatusFailed
			run.Error = errdefs.Kind(failure)
			e.skipRemaining(run, steps[i+1:])
			break
		}
	}

	// the ephemeral cluster is released on every exit path, including
	// cancellation, so teardown runs outside the cancelled context
	if kind == types.WorkflowCD && rc.Target != nil {
		result := e.executeStep(context.WithoutCancel(ctx), e.teardownStep(), rc, logger)
		run.Steps = append(run.Steps, result)
		if result.Status == types.StepStatusFailed && failure == nil {
			failure = rc.stepErr
			run.Status = types.RunStatusFailed
			run.Error = errdefs.Kind(failure)
		}
	}

	if failure == nil && run.Status == types.RunStatusRunning {
		run.Status = types.RunStatusSuccess
	}
	run.FinishedAt = time.Now()

	runTimer.ObserveDuration(metrics.RunDuration.WithLabelValues(string(kind)))
	metrics.RunsTotal.WithLabelValues(string(kind), string(run.Status)).Inc()
	if failure != nil {
		metrics.RunFailures.WithLabelValues(string(kind), errdefs.Kind(failure)).Inc()
	}

	if e.runs != nil {
		if err := e.runs.SaveRun(run); err != nil {
			logger.Warn().Err(err).Msg("failed to persist run record")
		}
	}

	e.publish(&events.Event{Type: events.EventRunFinished, RunID: run.ID, Message: string(run.Status)})
	logger.Info().
		Str("status", string(run.Status)).
		Dur("took", run.FinishedAt.Sub(run.StartedAt)).
		Msg("run finished")

	return run, failure
}

// executeStep runs one step and records its result and metrics
func (e *Engine) executeStep(ctx context.Context, step Step, rc *RunContext, logger zerolog.Logger) types.StepResult {
	start := time.Now()
	timer := metrics.NewTimer()

	logger.Info().Str("step", step.Name()).Msg("step started")
	e.publish(&events.Event{Type: events.EventStepStarted, RunID: rc.Run.ID, Step: step.Name()})

	err := step.Execute(ctx, rc)
	timer.ObserveDuration(metrics.StepDuration.WithLabelValues(string(rc.Run.Workflow), step.Name()))

	result := types.StepResult{
		Name:      step.Name(),
		StartedAt: start,
		Duration:  time.Since(start),
	}

	if err != nil {
		rc.stepErr = fmt.Errorf("step %s: %w", step.Name(), err)
		result.Status = types.StepStatusFailed
		result.Message = err.Error()
		logger.Error().Str("step", step.Name()).Err(err).Msg("step failed")
		e.publish(&events.Event{Type: events.EventStepFailed, RunID: rc.Run.ID, Step: step.Name(), Message: err.Error()})
		return result
	}

	result.Status = types.StepStatusSuccess
	result.Message = rc.takeStepMessage()
	logger.Info().Str("step", step.Name()).Dur("took", result.Duration).Msg("step completed")
	e.publish(&events.Event{Type: events.EventStepCompleted, RunID: rc.Run.ID, Step: step.Name()})
	return result
}

// skipRemaining records the steps fail-fast prevented from running
func (e *Engine) skipRemaining(run *types.PipelineRun, remaining []Step) {
	for _, step := range remaining {
		run.Steps = append(run.Steps, types.StepResult{
			Name:   step.Name(),
			Status: types.StepStatusSkipped,
		})
	}
}

func (e *Engine) publish(event *events.Event) {
	if e.broker != nil {
		e.broker.Publish(event)
	}
}

// resolveCredentials reads the credential material referenced by the
// configuration at push time
func resolveCredentials(cfg *config.Config) (registry.Credentials, error) {
	creds := registry.Credentials{
		Username:      cfg.Registry.Username,
		ServerAddress: cfg.Registry.Server,
	}
	if cfg.Registry.PasswordFile != "" {
		data, err := os.ReadFile(cfg.Registry.PasswordFile)
		if err != nil {
			return creds, fmt.Errorf("failed to read registry credentials: %w", err)
		}
		creds.Password = strings.TrimSpace(string(data))
	}
	return creds, nil
}
