// Package logging builds the slog loggers used by folio workers and the
// console.
//
// Two handlers are available: a console format that lifts the worker and
// stage into a bracketed header, and JSON for log shippers. Engine code tags
// lines through the context helpers (claim id, stage, worker, queue) and the
// WarnWithContext/ErrorWithContext helpers, which guarantee event_type and
// error_hint fields on every problem line.
package logging
