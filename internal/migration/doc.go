// Package migration copies locally stored videos into a remote storage
// backend.
//
// A run reads the flat-file metadata and the embedded SQLite database from a
// source directory, diffs the ids against the target backend, and copies the
// missing items object-first. Plans are pure; executing a plan twice performs
// no re-uploads because already-present ids are skipped.
package migration
