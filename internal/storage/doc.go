// Package storage defines the backend contract that persists finished videos:
// object bytes plus the VideoRecord describing them.
//
// Every concrete backend is a Composite of an ObjectStore and a RecordStore.
// The composite owns the invariants that must hold regardless of the variant:
// records are validated before they are written, a record is never saved
// unless the object it references already exists, and listings are returned
// newest first. Callers hold a Backend and never branch on which variant is
// behind it.
package storage
