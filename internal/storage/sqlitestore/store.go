// Package sqlitestore keeps video records in an embedded SQLite database next
// to the video files.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"reelgate/internal/services"
	"reelgate/internal/sqlitedb"
	"reelgate/internal/storage"
	"reelgate/internal/storage/localfs"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ProfileName identifies the embedded database backend.
const ProfileName = "sqlite"

// DatabaseFileName is the default database inside the videos directory.
const DatabaseFileName = "videos.db"

// Columns is the column list shared with readers of existing databases.
const Columns = "id, filename, filepath, topic, duration, created_at, status, file_size, playable, url, youtube_id"

// Records is a storage.RecordStore backed by SQLite.
type Records struct {
	db *sql.DB
}

// OpenRecords opens or creates the database at path.
func OpenRecords(ctx context.Context, path string) (*Records, error) {
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{Name: "videos", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &Records{db: db}, nil
}

// New returns the embedded backend: files under videosDir, records in dbPath
// (or videosDir/videos.db when dbPath is empty).
func New(ctx context.Context, videosDir, dbPath string, logger *slog.Logger) (*storage.Composite, error) {
	objects, err := localfs.NewObjects(videosDir)
	if err != nil {
		return nil, err
	}
	if dbPath == "" {
		dbPath = filepath.Join(videosDir, DatabaseFileName)
	}
	records, err := OpenRecords(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return storage.NewComposite(ProfileName, objects, records, logger), nil
}

func (r *Records) Save(ctx context.Context, rec storage.VideoRecord) error {
	return sqlitedb.Exec(ctx, r.db, `
		INSERT INTO videos (`+Columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			filepath = excluded.filepath,
			topic = excluded.topic,
			duration = excluded.duration,
			created_at = excluded.created_at,
			status = excluded.status,
			file_size = excluded.file_size,
			playable = excluded.playable,
			url = excluded.url,
			youtube_id = excluded.youtube_id`,
		rec.ID,
		rec.Filename,
		rec.StorageKey,
		rec.Topic,
		rec.DurationSeconds,
		storage.FormatTimestamp(rec.CreatedAt),
		string(rec.Status),
		rec.FileSize,
		boolToInt(rec.Playable),
		sqlitedb.NullableString(rec.URL),
		sqlitedb.NullableString(rec.PublishID),
	)
}

// SetPublishID only updates rows whose publish id is unset or already equal.
func (r *Records) SetPublishID(ctx context.Context, id, publishID string) (storage.VideoRecord, error) {
	var affected int64
	err := sqlitedb.RetryOnBusy(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE videos SET youtube_id = ?
			WHERE id = ? AND (youtube_id IS NULL OR youtube_id = '' OR youtube_id = ?)`,
			publishID, id, publishID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("update publish id: %w", err)
	}
	if affected == 0 {
		return storage.ResolvePublishMiss(ctx, r, id, publishID)
	}
	return r.Get(ctx, id)
}

func (r *Records) Get(ctx context.Context, id string) (storage.VideoRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+Columns+" FROM videos WHERE id = ?", id)
	rec, err := ScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.VideoRecord{}, services.Wrap(services.ErrNotFound, ProfileName, "get record", fmt.Sprintf("record %s", id), nil)
	}
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("query record: %w", err)
	}
	return rec, nil
}

func (r *Records) List(ctx context.Context) ([]storage.VideoRecord, error) {
	return QueryAll(ctx, r.db)
}

func (r *Records) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// QueryAll reads every row of the videos table in db.
func QueryAll(ctx context.Context, db *sql.DB) ([]storage.VideoRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+Columns+" FROM videos ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []storage.VideoRecord
	for rows.Next() {
		rec, err := ScanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// ScanRecord decodes one row selected with Columns.
func ScanRecord(scanner interface{ Scan(dest ...any) error }) (storage.VideoRecord, error) {
	var (
		id         string
		filename   sql.NullString
		storageKey sql.NullString
		topic      sql.NullString
		duration   sql.NullFloat64
		createdRaw sql.NullString
		status     sql.NullString
		fileSize   sql.NullInt64
		playable   sql.NullInt64
		url        sql.NullString
		publishID  sql.NullString
	)
	if err := scanner.Scan(&id, &filename, &storageKey, &topic, &duration, &createdRaw, &status, &fileSize, &playable, &url, &publishID); err != nil {
		return storage.VideoRecord{}, err
	}
	rec := storage.VideoRecord{
		ID:              id,
		Filename:        filename.String,
		StorageKey:      storageKey.String,
		Topic:           topic.String,
		DurationSeconds: duration.Float64,
		Status:          storage.Status(status.String),
		FileSize:        fileSize.Int64,
		Playable:        playable.Valid && playable.Int64 != 0,
		URL:             url.String,
		PublishID:       publishID.String,
	}
	if created, err := storage.ParseTimestamp(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
