// Package workflow owns the review state machine for video workflows.
//
// A Workflow moves one topic through the fixed stage order (research, script,
// metadata, video, upload). Each stage is generated by the agent executor,
// then approved or rejected by a human reviewer. Approvals must follow the
// stage order. The upload stage is approved only by FinalizeUpload, which
// persists the video and its record through the active storage backend.
//
// The Engine serializes mutations per workflow id and lets different
// workflows progress in parallel; Summary and List read without taking the
// per-id lock. Workflow state lives in a Repository: the in-memory one here,
// or the durable stores in internal/runstore.
package workflow
