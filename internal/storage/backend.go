package storage

import (
	"context"
	"io"
	"time"
)

// Location describes where an object landed.
type Location struct {
	Key string
	URL string
}

// Backend is the uniform persistence contract for finished videos.
type Backend interface {
	// Name returns the backend profile name.
	Name() string
	// PutObject stores data under key. Writing the same key again overwrites
	// it; the object is never partially visible.
	PutObject(ctx context.Context, key string, data []byte) (Location, error)
	// OpenObject streams the object stored under key. A missing object is an
	// error wrapping services.ErrNotFound.
	OpenObject(ctx context.Context, key string) (io.ReadCloser, error)
	// SaveRecord upserts rec by id.
	SaveRecord(ctx context.Context, rec VideoRecord) error
	// GetRecord returns the record or an error wrapping services.ErrNotFound.
	GetRecord(ctx context.Context, id string) (VideoRecord, error)
	// ListRecords returns every record, newest first.
	ListRecords(ctx context.Context) ([]VideoRecord, error)
	// MarkPublished sets the external publish id once. Repeating the same id
	// is a no-op; a different id fails with services.ErrInvalidTransition.
	MarkPublished(ctx context.Context, id, publishID string) (VideoRecord, error)
	// ObjectExists reports whether an object is stored under key.
	ObjectExists(ctx context.Context, key string) (bool, error)
	Close() error
}

// ObjectStore persists video bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns an access URL for key, or "" when the object is only
	// reachable through the API.
	URL(ctx context.Context, key string) (string, error)
	Close() error
}

// ExpiringURLs is implemented by object stores whose URLs are signed for a
// limited time. Records read through such a store get a freshly signed URL.
type ExpiringURLs interface {
	URLTTL() time.Duration
}

// RecordStore persists VideoRecords.
type RecordStore interface {
	Save(ctx context.Context, rec VideoRecord) error
	Get(ctx context.Context, id string) (VideoRecord, error)
	List(ctx context.Context) ([]VideoRecord, error)
	Close() error
}

// PublishRecorder is implemented by record stores that can set the publish
// id with a single conditional write. SetPublishID follows the
// Backend.MarkPublished contract.
type PublishRecorder interface {
	SetPublishID(ctx context.Context, id, publishID string) (VideoRecord, error)
}
