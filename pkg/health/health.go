package health

import (
	"context"
	"time"
)

// Result represents the outcome of one probe attempt
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is a single health probe
type Checker interface {
	Check(ctx context.Context) Result
}
