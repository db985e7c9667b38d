// Package api exposes the review pipeline over HTTP using gin.
//
// # Routes
//
//	POST /api/workflows                          start a workflow
//	GET  /api/workflows                          list workflows, newest first
//	GET  /api/workflows/:id                      workflow snapshot
//	GET  /api/workflows/:id/stages/:stage        one step
//	POST /api/workflows/:id/stages/:stage/generate
//	POST /api/workflows/:id/stages/:stage/approve
//	POST /api/workflows/:id/stages/:stage/reject
//	POST /api/workflows/:id/upload               finalize the upload stage
//	GET  /api/videos                             stored records, newest first
//	GET  /api/videos/:id                         one record
//	GET  /api/videos/:id/file                    the video bytes, or a redirect to them
//	POST /api/videos/:id/publish                 set the external publish id
//	GET  /api/status                             backend, generators, counts
//
// # Errors
//
// Failures are written as {"error": ..., "kind": ...}. The kind is the
// services error classification and selects the status code: validation 400,
// not_found 404, invalid_transition and out_of_order 409, agent_failure and
// storage 502, timeout 504, configuration 503, anything else 500.
//
// A generation whose agent fails is not an HTTP error: the response is 200
// with the step in the error status.
//
// # Design Notes
//
// Payloads reuse the snake_case JSON of the workflow and record types so the
// HTTP surface, the run stores, and the flat-file metadata share one format.
package api
