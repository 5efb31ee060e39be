package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/log"
	"github.com/gantryci/gantry/pkg/types"
)

// Scanner inspects a built image for known vulnerabilities. Inability to
// scan is always an error; an empty ScanResult means a completed scan with
// no findings.
type Scanner interface {
	Inspect(ctx context.Context, artifact *types.ImageArtifact, timeout time.Duration) (*types.ScanResult, error)
}

// ExecScanner invokes an external scanner binary. Command tokens may use
// the placeholders "{image}" (image reference) and "{severities}"
// (comma-joined severity filter).
type ExecScanner struct {
	// Command is the scanner invocation (e.g. ["trivy", "image",
	// "--format", "json", "{image}"])
	Command []string

	// Severities is the filter handed to the backend so it can pre-filter
	// findings below the gate
	Severities []types.Severity

	logger zerolog.Logger
}

// NewExecScanner creates a scanner around an external command
func NewExecScanner(command []string, severities []types.Severity) *ExecScanner {
	return &ExecScanner{
		Command:    command,
		Severities: severities,
		logger:     log.WithComponent("scanner"),
	}
}

// report is the JSON document the scanner backend emits
type report struct {
	Findings []types.Finding `json:"findings"`
}

// Inspect runs the scanner against the artifact, honoring timeout. A
// deadline overrun yields ScanTimeoutError, never an empty result.
func (s *ExecScanner) Inspect(ctx context.Context, artifact *types.ImageArtifact, timeout time.Duration) (*types.ScanResult, error) {
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("no scanner command configured")
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := s.expandArgs(artifact.Ref())
	cmd := exec.CommandContext(execCtx, args[0], args[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return nil, &errdefs.ScanTimeoutError{Image: artifact.Ref(), Timeout: timeout}
	}

	var rep report
	parseErr := json.Unmarshal(stdout.Bytes(), &rep)

	// scanner CLIs commonly exit non-zero when findings exist; a parseable
	// report wins over the exit status
	if runErr != nil && parseErr != nil {
		return nil, fmt.Errorf("scanner failed: %v: %s", runErr, strings.TrimSpace(stderr.String()))
	}
	if parseErr != nil {
		return nil, fmt.Errorf("unreadable scanner output: %w", parseErr)
	}

	s.logger.Info().
		Str("image", artifact.Ref()).
		Int("findings", len(rep.Findings)).
		Dur("took", time.Since(start)).
		Msg("scan complete")

	return &types.ScanResult{
		Findings:  rep.Findings,
		ScannedAt: start,
	}, nil
}

// expandArgs substitutes the command placeholders
func (s *ExecScanner) expandArgs(imageRef string) []string {
	sevs := make([]string, len(s.Severities))
	for i, sev := range s.Severities {
		sevs[i] = string(sev)
	}
	joined := strings.Join(sevs, ",")

	args := make([]string, len(s.Command))
	for i, tok := range s.Command {
		tok = strings.ReplaceAll(tok, "{image}", imageRef)
		tok = strings.ReplaceAll(tok, "{severities}", joined)
		args[i] = tok
	}
	return args
}
