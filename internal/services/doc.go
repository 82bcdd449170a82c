// Package services defines shared utilities consumed by the stage validators,
// processors, and the claim engine.
//
// Key responsibilities:
//   - Context helpers that stamp claim ids, stage names, worker identities, and
//     queue names for logging.
//   - Structured error markers plus the Wrap helper that carry the operator
//     facing reason recorded in error queues and provenance logs.
//
// Use these helpers when wiring new stage logic so per-item failures are
// classified and reported the same way across the pipeline.
package services
