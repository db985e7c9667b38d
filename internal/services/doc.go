// Package services defines shared utilities consumed by the workflow engine,
// the storage backends, and the migration tool.
//
// Key responsibilities:
//   - Context helpers that stamp workflow IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so every layer reports
//     failures with the same taxonomy (validation, not found, invalid
//     transition, out of order, agent failure, storage).
//
// Use these helpers when wiring new components so operational behaviour (error
// classification, observability) stays uniform across the pipeline.
package services
