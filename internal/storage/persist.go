package storage

import (
	"context"
	"fmt"
	"strings"

	"reelgate/internal/services"
)

// Persist writes data then saves rec, in that order. FileSize is taken from
// data and URL from the object location (or the API file route when the
// backend has none). Calling Persist again with the same record is safe.
func Persist(ctx context.Context, backend Backend, rec VideoRecord, data []byte) (VideoRecord, error) {
	loc, err := backend.PutObject(ctx, rec.StorageKey, data)
	if err != nil {
		return VideoRecord{}, err
	}
	rec.StorageKey = loc.Key
	rec.FileSize = int64(len(data))
	if strings.TrimSpace(rec.URL) == "" {
		rec.URL = loc.URL
	}
	if strings.TrimSpace(rec.URL) == "" {
		rec.URL = FileURL(rec.ID)
	}
	if err := backend.SaveRecord(ctx, rec); err != nil {
		return VideoRecord{}, err
	}
	return rec, nil
}

// MarkPublished sets the external publish id on a stored record through
// backend.MarkPublished.
func MarkPublished(ctx context.Context, backend Backend, id, publishID string) (VideoRecord, error) {
	publishID = strings.TrimSpace(publishID)
	if publishID == "" {
		return VideoRecord{}, services.Wrap(services.ErrValidation, "storage", "mark published", "publish id is empty", nil)
	}
	return backend.MarkPublished(ctx, strings.TrimSpace(id), publishID)
}

// ApplyPublishID decides a publish against the current record. It returns
// the record to write and whether a write is needed.
func ApplyPublishID(rec VideoRecord, publishID string) (VideoRecord, bool, error) {
	switch {
	case rec.PublishID == publishID:
		return rec, false, nil
	case rec.Published():
		return VideoRecord{}, false, PublishConflict(rec)
	}
	rec.PublishID = publishID
	return rec, true, nil
}

// PublishConflict is the error for a record that already carries a
// different publish id.
func PublishConflict(rec VideoRecord) error {
	return services.Wrap(services.ErrInvalidTransition, "storage", "mark published",
		fmt.Sprintf("record %s already published as %s", rec.ID, rec.PublishID), nil)
}

// ResolvePublishMiss explains a conditional publish update that matched no
// row: the record is missing, a concurrent writer already set the same id,
// or another id is stored.
func ResolvePublishMiss(ctx context.Context, records RecordStore, id, publishID string) (VideoRecord, error) {
	rec, err := records.Get(ctx, id)
	if err != nil {
		return VideoRecord{}, err
	}
	if rec.PublishID == publishID {
		return rec, nil
	}
	return VideoRecord{}, PublishConflict(rec)
}
