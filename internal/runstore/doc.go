// Package runstore provides durable workflow repositories.
//
// The SQLite store keeps one row per workflow with the snapshot encoded as
// JSON; the Redis store keeps the same JSON under a per-workflow key plus a
// sorted set ordered by creation time. Open picks one from configuration.
package runstore
