/*
Package log provides structured logging for Gantry using zerolog.

The package wraps zerolog behind a small surface: a global Logger
initialized via Init, child-logger constructors that attach the standard
pipeline fields (component, run_id, workflow, step), and level helpers for
one-off messages.

Console output with RFC3339 timestamps is the default; JSON output is
enabled through Config for machine consumption. All loggers are safe for
concurrent use.

Usage:

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("engine")
	logger.Info().Str("run_id", run.ID).Msg("run started")
*/
package log
