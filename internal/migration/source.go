package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reelgate/internal/fileutil"
	"reelgate/internal/services"
	"reelgate/internal/sqlitedb"
	"reelgate/internal/storage"
	"reelgate/internal/storage/localfs"
	"reelgate/internal/storage/sqlitestore"
)

// Origins name where a local item was read from.
const (
	OriginJSON   = "json"
	OriginSQLite = "sqlite"
)

// Item is one locally stored video.
type Item struct {
	Record storage.VideoRecord
	// LocalPath is the resolved file on disk; empty when none was found.
	LocalPath string
	Origin    string
}

// LoadSource reads every record under dir. Records present in both the
// metadata file and the database are reported once, preferring the metadata
// file. Items are ordered oldest first, then by id.
func LoadSource(ctx context.Context, dir string) ([]Item, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrValidation, "migration", "load source", "source directory is empty", nil)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "migration", "load source", dir, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "migration", "load source", fmt.Sprintf("%s is not a directory", dir), nil)
	}

	seen := make(map[string]struct{})
	var items []Item
	add := func(rec storage.VideoRecord, origin string) {
		if rec.ID == "" {
			return
		}
		if _, ok := seen[rec.ID]; ok {
			return
		}
		seen[rec.ID] = struct{}{}
		if rec.Status == "" {
			rec.Status = storage.StatusCompleted
		}
		items = append(items, Item{Record: rec, LocalPath: resolveLocalPath(dir, rec), Origin: origin})
	}

	fromJSON, err := localfs.ReadMetadataFile(filepath.Join(dir, localfs.MetadataFileName))
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "migration", "read metadata file", dir, err)
	}
	ids := make([]string, 0, len(fromJSON))
	for id := range fromJSON {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		add(fromJSON[id], OriginJSON)
	}

	fromDB, err := readDatabase(ctx, filepath.Join(dir, sqlitestore.DatabaseFileName))
	if err != nil {
		return nil, err
	}
	for _, rec := range fromDB {
		add(rec, OriginSQLite)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Record, items[j].Record
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return items, nil
}

func readDatabase(ctx context.Context, path string) ([]storage.VideoRecord, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	db, err := sqlitedb.OpenReadOnly(ctx, path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "migration", "open database", path, err)
	}
	defer db.Close()
	records, err := sqlitestore.QueryAll(ctx, db)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "migration", "read database", path, err)
	}
	return records, nil
}

// resolveLocalPath tries the stored path as-is when absolute, then the
// filename and storage key relative to dir.
func resolveLocalPath(dir string, rec storage.VideoRecord) string {
	var candidates []string
	if filepath.IsAbs(rec.StorageKey) {
		candidates = append(candidates, rec.StorageKey)
	}
	if rec.Filename != "" {
		candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(rec.Filename)))
	}
	if rec.StorageKey != "" && !filepath.IsAbs(rec.StorageKey) {
		candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(rec.StorageKey)))
	}
	for _, candidate := range candidates {
		if ok, _ := fileutil.Exists(candidate); ok {
			return candidate
		}
	}
	return ""
}
