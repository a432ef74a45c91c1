// Package logging assembles the structured slog loggers used across optic
// components.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and defines the standardized attribute keys (component,
// item_id, run_id, stage) so every part of the pipeline emits log lines with
// the same shape. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
