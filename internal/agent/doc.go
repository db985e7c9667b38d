// Package agent defines the content generator contract for pipeline stages
// and the executor that bounds each generation call.
//
// An Agent turns a Request (topic plus the approved payloads of earlier
// stages) into the payload for one stage. CommandAgent delegates to an
// external program speaking JSON over stdin and stdout; TemplateAgent
// produces deterministic placeholder content so the pipeline works without
// external tools. Executor applies the per-attempt deadline, retries with
// doubling backoff, and payload checks. It never touches workflow state.
package agent
