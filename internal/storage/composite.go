package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"reelgate/internal/keylock"
	"reelgate/internal/logging"
	"reelgate/internal/services"
)

// Composite joins an ObjectStore and a RecordStore into a Backend.
type Composite struct {
	name    string
	objects ObjectStore
	records RecordStore
	logger  *slog.Logger
	publish *keylock.Map
}

// NewComposite builds a backend named name. Both halves are closed by Close.
func NewComposite(name string, objects ObjectStore, records RecordStore, logger *slog.Logger) *Composite {
	return &Composite{
		name:    name,
		objects: objects,
		records: records,
		logger:  logging.NewComponentLogger(logger, "storage").With(logging.String(logging.FieldBackend, name)),
		publish: keylock.New(),
	}
}

func (c *Composite) Name() string { return c.name }

func (c *Composite) PutObject(ctx context.Context, key string, data []byte) (Location, error) {
	key = strings.TrimSpace(key)
	if err := ValidateKey(key); err != nil {
		return Location{}, err
	}
	if err := c.objects.Put(ctx, key, data); err != nil {
		return Location{}, wrapStorage(c.name, "put object", key, err)
	}
	url, err := c.objects.URL(ctx, key)
	if err != nil {
		return Location{}, wrapStorage(c.name, "resolve object url", key, err)
	}
	c.logger.Debug("object stored", logging.String("key", key), logging.Int("bytes", len(data)))
	return Location{Key: key, URL: url}, nil
}

func (c *Composite) OpenObject(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, c.name, "open object", "key is empty", nil)
	}
	rc, err := c.objects.Open(ctx, key)
	if err != nil {
		return nil, wrapStorage(c.name, "open object", key, err)
	}
	return rc, nil
}

func (c *Composite) SaveRecord(ctx context.Context, rec VideoRecord) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	exists, err := c.objects.Exists(ctx, rec.StorageKey)
	if err != nil {
		return wrapStorage(c.name, "check object", rec.StorageKey, err)
	}
	if !exists {
		return services.Wrap(services.ErrStorage, c.name, "save record",
			fmt.Sprintf("object %q for record %s is not stored", rec.StorageKey, rec.ID), nil)
	}
	if err := c.records.Save(ctx, rec); err != nil {
		return wrapStorage(c.name, "save record", rec.ID, err)
	}
	c.logger.Debug("record saved", logging.String(logging.FieldRecordID, rec.ID))
	return nil
}

func (c *Composite) GetRecord(ctx context.Context, id string) (VideoRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return VideoRecord{}, services.Wrap(services.ErrValidation, c.name, "get record", "id is empty", nil)
	}
	rec, err := c.records.Get(ctx, id)
	if err != nil {
		return VideoRecord{}, wrapStorage(c.name, "get record", id, err)
	}
	return c.resolveURL(ctx, rec), nil
}

func (c *Composite) ListRecords(ctx context.Context) ([]VideoRecord, error) {
	recs, err := c.records.List(ctx)
	if err != nil {
		return nil, wrapStorage(c.name, "list records", "", err)
	}
	for i := range recs {
		recs[i] = c.resolveURL(ctx, recs[i])
	}
	SortNewestFirst(recs)
	return recs, nil
}

// MarkPublished serializes publishes per record inside this process and
// delegates to the record store's conditional write when it has one, so
// concurrent writers in other processes cannot both succeed either.
func (c *Composite) MarkPublished(ctx context.Context, id, publishID string) (VideoRecord, error) {
	id = strings.TrimSpace(id)
	publishID = strings.TrimSpace(publishID)
	if id == "" || publishID == "" {
		return VideoRecord{}, services.Wrap(services.ErrValidation, c.name, "mark published", "id and publish id are required", nil)
	}
	release := c.publish.Lock(id)
	defer release()

	var (
		rec VideoRecord
		err error
	)
	if recorder, ok := c.records.(PublishRecorder); ok {
		rec, err = recorder.SetPublishID(ctx, id, publishID)
	} else {
		rec, err = c.markPublished(ctx, id, publishID)
	}
	if err != nil {
		return VideoRecord{}, wrapStorage(c.name, "mark published", id, err)
	}
	c.logger.Info("record published",
		logging.String(logging.FieldRecordID, id),
		logging.String("publish_id", publishID),
	)
	return c.resolveURL(ctx, rec), nil
}

func (c *Composite) markPublished(ctx context.Context, id, publishID string) (VideoRecord, error) {
	current, err := c.records.Get(ctx, id)
	if err != nil {
		return VideoRecord{}, err
	}
	next, write, err := ApplyPublishID(current, publishID)
	if err != nil || !write {
		return next, err
	}
	if err := c.records.Save(ctx, next); err != nil {
		return VideoRecord{}, err
	}
	return next, nil
}

// resolveURL re-signs URLs of expiring object stores and points records that
// carry no URL, or the bare record route, at the API file route.
func (c *Composite) resolveURL(ctx context.Context, rec VideoRecord) VideoRecord {
	if _, ok := c.objects.(ExpiringURLs); ok && rec.StorageKey != "" {
		url, err := c.objects.URL(ctx, rec.StorageKey)
		if err != nil {
			c.logger.Warn("access url refresh failed",
				logging.String(logging.FieldRecordID, rec.ID),
				logging.Error(err),
			)
			return rec
		}
		if url != "" {
			rec.URL = url
		}
		return rec
	}
	if rec.URL == "" || rec.URL == legacyRecordURL(rec.ID) {
		rec.URL = FileURL(rec.ID)
	}
	return rec
}

// ObjectExists reports whether key is present in the object half.
func (c *Composite) ObjectExists(ctx context.Context, key string) (bool, error) {
	exists, err := c.objects.Exists(ctx, key)
	if err != nil {
		return false, wrapStorage(c.name, "check object", key, err)
	}
	return exists, nil
}

func (c *Composite) Close() error {
	return errors.Join(c.records.Close(), c.objects.Close())
}

// SortNewestFirst orders records by creation time descending, breaking ties
// by id descending so the order is total.
func SortNewestFirst(recs []VideoRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}

// wrapStorage tags err with ErrStorage unless it already carries a taxonomy
// marker such as ErrNotFound.
func wrapStorage(backend, operation, subject string, err error) error {
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrStorage) ||
		errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrInvalidTransition) {
		return err
	}
	return services.Wrap(services.ErrStorage, backend, operation, subject, err)
}
