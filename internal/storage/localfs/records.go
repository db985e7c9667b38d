package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"reelgate/internal/fileutil"
	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// MetadataFileName is the flat-file record store inside the videos directory.
const MetadataFileName = "video_metadata.json"

// LockSuffix names the sidecar lock file next to the metadata file.
const LockSuffix = ".lock"

const lockRetryDelay = 20 * time.Millisecond

// JSONRecords is a storage.RecordStore persisted as one JSON object keyed by
// record id. Nothing is cached: every call re-reads the file under a file
// lock, so several handles (including other processes) on one directory see
// each other's writes. Writes replace the file atomically.
type JSONRecords struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// OpenJSONRecords checks that path decodes, treating a missing file as empty.
func OpenJSONRecords(path string) (*JSONRecords, error) {
	if _, err := ReadMetadataFile(path); err != nil {
		return nil, err
	}
	return &JSONRecords{path: path, lock: flock.New(path + LockSuffix)}, nil
}

// ReadMetadataFile decodes a metadata file. A missing file yields an empty map.
func ReadMetadataFile(path string) (map[string]storage.VideoRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]storage.VideoRecord{}, nil
		}
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	records := map[string]storage.VideoRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode metadata file %s: %w", path, err)
	}
	for id, rec := range records {
		if rec.ID == "" {
			rec.ID = id
			records[id] = rec
		}
	}
	return records, nil
}

// withLock runs fn holding both the handle mutex and the file lock. The
// mutex is needed because a flock is held per open file, not per goroutine.
func (s *JSONRecords) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock metadata file: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock metadata file: %s is busy", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *JSONRecords) write(records map[string]storage.VideoRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return fileutil.WriteFileAtomic(s.path, data, 0o644)
}

func (s *JSONRecords) Save(ctx context.Context, rec storage.VideoRecord) error {
	return s.withLock(ctx, true, func() error {
		records, err := ReadMetadataFile(s.path)
		if err != nil {
			return err
		}
		records[rec.ID] = rec
		return s.write(records)
	})
}

// SetPublishID performs the publish check and write under one exclusive
// file lock.
func (s *JSONRecords) SetPublishID(ctx context.Context, id, publishID string) (storage.VideoRecord, error) {
	var out storage.VideoRecord
	err := s.withLock(ctx, true, func() error {
		records, err := ReadMetadataFile(s.path)
		if err != nil {
			return err
		}
		current, ok := records[id]
		if !ok {
			return notFound(id)
		}
		next, write, err := storage.ApplyPublishID(current, publishID)
		if err != nil {
			return err
		}
		out = next
		if !write {
			return nil
		}
		records[id] = next
		return s.write(records)
	})
	if err != nil {
		return storage.VideoRecord{}, err
	}
	return out, nil
}

func (s *JSONRecords) Get(ctx context.Context, id string) (storage.VideoRecord, error) {
	var out storage.VideoRecord
	err := s.withLock(ctx, false, func() error {
		records, err := ReadMetadataFile(s.path)
		if err != nil {
			return err
		}
		rec, ok := records[id]
		if !ok {
			return notFound(id)
		}
		out = rec
		return nil
	})
	if err != nil {
		return storage.VideoRecord{}, err
	}
	return out, nil
}

func (s *JSONRecords) List(ctx context.Context) ([]storage.VideoRecord, error) {
	var out []storage.VideoRecord
	err := s.withLock(ctx, false, func() error {
		records, err := ReadMetadataFile(s.path)
		if err != nil {
			return err
		}
		out = make([]storage.VideoRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *JSONRecords) Close() error {
	return s.lock.Close()
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, ProfileName, "get record", fmt.Sprintf("record %s", id), nil)
}
