package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithComponent("engine").Info().Str("run_id", "r1").Msg("run started")

	out := buf.String()
	if !strings.Contains(out, `"component":"engine"`) {
		t.Errorf("missing component field: %s", out)
	}
	if !strings.Contains(out, `"run_id":"r1"`) {
		t.Errorf("missing run_id field: %s", out)
	}
	if !strings.Contains(out, "run started") {
		t.Errorf("missing message: %s", out)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("suppressed")
	Logger.Warn().Msg("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info line leaked through warn level: %s", out)
	}
	if !strings.Contains(out, "emitted") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestErrorfAttachesError(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: ErrorLevel, JSONOutput: true, Output: &buf})

	Errorf("listener failed", errTest)

	out := buf.String()
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("missing error field: %s", out)
	}
}

type testErr struct{}

func (testErr) Error() string { return "boom" }

var errTest = testErr{}
