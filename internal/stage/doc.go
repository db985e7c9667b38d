// Package stage defines the fixed review pipeline: the ordered stage names and
// the closed set of typed payloads each stage produces.
//
// Payloads are tagged by stage so every generator's output can be checked on
// its own. Encode and Decode move payloads through the {"stage","data"} JSON
// envelope used by durable workflow stores and external generator commands.
package stage
