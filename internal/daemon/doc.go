// Package daemon runs the long-lived review service.
//
// It owns the single-instance flock, the HTTP listener, and the shutdown of
// the workflow repository and storage backend. Request handling lives in the
// api package and state transitions in workflow; the daemon only coordinates
// startup and teardown.
package daemon
