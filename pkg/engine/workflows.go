package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/gantryci/gantry/pkg/builder"
	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/events"
	"github.com/gantryci/gantry/pkg/metrics"
	"github.com/gantryci/gantry/pkg/scanner"
	"github.com/gantryci/gantry/pkg/types"
)

// ciSteps declares the CI workflow: checkout, cache restore, scan-variant
// build, scan, gate, publish-variant build, cache save, push. The scanned
// image is never the pushed one; only its sibling publish build ships.
func (e *Engine) ciSteps() []Step {
	return []Step{
		stepFunc{"checkout", e.stepCheckout},
		stepFunc{"cache-restore", e.stepCacheRestore},
		stepFunc{"build-scan", e.stepBuildScan},
		stepFunc{"scan", e.stepScan},
		stepFunc{"gate", e.stepGate},
		stepFunc{"build-publish", e.stepBuildPublish},
		stepFunc{"cache-save", e.stepCacheSave},
		stepFunc{"publish", e.stepPublish},
	}
}

// cdSteps declares the CD workflow up to verification; teardown is
// appended by the engine on every exit path
func (e *Engine) cdSteps() []Step {
	return []Step{
		stepFunc{"provision", e.stepProvision},
		stepFunc{"load-image", e.stepLoadImage},
		stepFunc{"apply", e.stepApply},
		stepFunc{"wait-ready", e.stepWaitReady},
		stepFunc{"probe", e.stepProbe},
	}
}

func (e *Engine) teardownStep() Step {
	return stepFunc{"teardown", e.stepTeardown}
}

// stepCheckout is the workflow boundary: the source is already on disk,
// so this only verifies the build context is where the run expects it
func (e *Engine) stepCheckout(ctx context.Context, rc *RunContext) error {
	if _, err := os.Stat(rc.Config.Build.ContextDir); err != nil {
		return &errdefs.BuildError{Variant: types.VariantScan, Err: fmt.Errorf("build context missing: %w", err)}
	}
	rc.setStepMessage("revision %s", rc.Run.Revision)
	return nil
}

func (e *Engine) stepCacheRestore(ctx context.Context, rc *RunContext) error {
	// pruning is best-effort housekeeping; a failure must not cost the run
	if removed, err := e.cache.Prune(); err != nil {
		e.logger.Warn().Err(err).Msg("cache prune failed")
	} else if removed > 0 {
		e.logger.Debug().Int("removed", removed).Msg("pruned expired cache entries")
	}

	payload, matched, hit, err := e.cache.Restore(rc.Key, []string{rc.Key.RestorePrefix()})
	if err != nil {
		return err
	}

	rc.RestoredPayload = payload
	rc.RestoredKey = matched
	rc.CacheHit = hit

	if hit {
		metrics.CacheHits.Inc()
		e.publish(&events.Event{Type: events.EventCacheHit, RunID: rc.Run.ID, Message: matched})
		rc.setStepMessage("hit: %s", matched)
	} else {
		metrics.CacheMisses.Inc()
		e.publish(&events.Event{Type: events.EventCacheMiss, RunID: rc.Run.ID})
		rc.setStepMessage("miss")
	}
	return nil
}

func (e *Engine) buildContext() builder.BuildContext {
	return builder.BuildContext{
		Dir:        e.cfg.Build.ContextDir,
		Dockerfile: e.cfg.Build.Dockerfile,
		Repository: e.cfg.Image.Name,
		Tag:        e.cfg.Image.Tag,
	}
}

func (e *Engine) stepBuildScan(ctx context.Context, rc *RunContext) error {
	artifact, _, err := e.builder.Build(ctx, e.buildContext(), types.VariantScan, rc.RestoredPayload)
	if err != nil {
		return err
	}
	artifact.CacheSeedKey = rc.RestoredKey
	rc.ScanArtifact = artifact
	rc.setStepMessage("built %s", artifact.Ref())
	return nil
}

func (e *Engine) stepScan(ctx context.Context, rc *RunContext) error {
	result, err := e.scanner.Inspect(ctx, rc.ScanArtifact, rc.Config.Scan.Timeout.Std())
	if err != nil {
		return err
	}
	rc.ScanResult = result

	for _, f := range result.Findings {
		metrics.ScanFindings.WithLabelValues(string(f.Severity)).Inc()
	}
	rc.setStepMessage("%d finding(s)", len(result.Findings))
	return nil
}

func (e *Engine) stepGate(ctx context.Context, rc *RunContext) error {
	pass, blocking := scanner.Gate(rc.ScanResult, rc.Config.GateSet())
	if !pass {
		e.publish(&events.Event{Type: events.EventGateFailed, RunID: rc.Run.ID})
		return &errdefs.GateFailure{Blocking: blocking}
	}
	e.publish(&events.Event{Type: events.EventGatePassed, RunID: rc.Run.ID})
	rc.setStepMessage("passed")
	return nil
}

// stepBuildPublish rebuilds the publish variant from the same cache seed.
// Rebuilding instead of retagging the scanned image keeps the published
// artifact a post-gate sibling, never the pre-scan image itself.
func (e *Engine) stepBuildPublish(ctx context.Context, rc *RunContext) error {
	artifact, layers, err := e.builder.Build(ctx, e.buildContext(), types.VariantPublish, rc.RestoredPayload)
	if err != nil {
		return err
	}
	artifact.CacheSeedKey = rc.RestoredKey
	rc.PublishArtifact = artifact
	rc.Layers = layers
	rc.setStepMessage("built %s", artifact.Ref())
	return nil
}

func (e *Engine) stepCacheSave(ctx context.Context, rc *RunContext) error {
	if err := e.cache.Save(rc.Key, rc.Layers); err != nil {
		return err
	}
	rc.setStepMessage("saved %s", rc.Key.String())
	return nil
}

func (e *Engine) stepPublish(ctx context.Context, rc *RunContext) error {
	creds, err := resolveCredentials(rc.Config)
	if err != nil {
		return &errdefs.PublishError{Ref: rc.PublishArtifact.Ref(), Attempts: 0, Err: err}
	}

	metrics.PublishAttempts.Inc()
	digest, err := e.publisher.Push(ctx, rc.PublishArtifact, creds)
	if err != nil {
		return err
	}
	rc.Digest = digest
	rc.setStepMessage("pushed %s@%s", rc.PublishArtifact.Ref(), digest)
	return nil
}

func (e *Engine) stepProvision(ctx context.Context, rc *RunContext) error {
	target, err := e.deployer.Provision(ctx)
	// keep the handle even on failure so teardown can release a
	// partially provisioned cluster
	rc.Target = target
	if err != nil {
		return err
	}
	rc.setStepMessage("cluster %s", target.ClusterName)
	return nil
}

// deployArtifact is the image CD verifies: the publish-variant tag from
// the configuration
func (e *Engine) deployArtifact() *types.ImageArtifact {
	return &types.ImageArtifact{
		Repository: e.cfg.Image.Name,
		Tag:        e.cfg.Image.Tag,
		Variant:    types.VariantPublish,
	}
}

func (e *Engine) stepLoadImage(ctx context.Context, rc *RunContext) error {
	artifact := e.deployArtifact()
	if err := e.deployer.LoadImage(ctx, rc.Target, artifact); err != nil {
		return err
	}
	rc.setStepMessage("loaded %s", artifact.Ref())
	return nil
}

func (e *Engine) stepApply(ctx context.Context, rc *RunContext) error {
	w := rc.Config.Cluster.Workload
	workload := types.WorkloadSpec{
		Name:     w.Name,
		Image:    e.deployArtifact().Ref(),
		Replicas: w.Replicas,
		Port:     w.Port,
		NodePort: w.NodePort,
	}
	return e.deployer.Apply(ctx, rc.Target, workload)
}

func (e *Engine) stepWaitReady(ctx context.Context, rc *RunContext) error {
	return e.deployer.WaitReady(ctx, rc.Target)
}

func (e *Engine) stepProbe(ctx context.Context, rc *RunContext) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", rc.Config.Cluster.Workload.NodePort, rc.Config.Cluster.ProbePath)
	if err := e.deployer.Probe(ctx, rc.Target, url, rc.Config.Cluster.ProbeStatus); err != nil {
		return err
	}
	rc.setStepMessage("healthy: %s", url)
	return nil
}

func (e *Engine) stepTeardown(ctx context.Context, rc *RunContext) error {
	return e.deployer.Teardown(ctx, rc.Target)
}
