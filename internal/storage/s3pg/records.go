package s3pg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Records is a storage.RecordStore over one PostgreSQL table.
type Records struct {
	pool  *pgxpool.Pool
	table string
}

// NewRecords ensures table exists (default "videos"). Tables created by older
// tooling gain the publish id column.
func NewRecords(ctx context.Context, pool *pgxpool.Pool, table string) (*Records, error) {
	if table == "" {
		table = "videos"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, services.Wrap(services.ErrConfiguration, ProfileName, "init", fmt.Sprintf("invalid table name %q", table), nil)
	}
	r := &Records{pool: pool, table: table}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			filename TEXT,
			filepath TEXT,
			topic TEXT,
			duration REAL,
			created_at TIMESTAMPTZ,
			status TEXT,
			file_size BIGINT,
			playable BOOLEAN,
			url TEXT
		);
		ALTER TABLE %[1]s ADD COLUMN IF NOT EXISTS youtube_id TEXT;
		CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s (created_at DESC);`, table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure %s table: %w", table, err)
	}
	return r, nil
}

const columns = "id, filename, filepath, topic, duration, created_at, status, file_size, playable, url, youtube_id"

func (r *Records) Save(ctx context.Context, rec storage.VideoRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			filepath = EXCLUDED.filepath,
			topic = EXCLUDED.topic,
			duration = EXCLUDED.duration,
			created_at = EXCLUDED.created_at,
			status = EXCLUDED.status,
			file_size = EXCLUDED.file_size,
			playable = EXCLUDED.playable,
			url = EXCLUDED.url,
			youtube_id = EXCLUDED.youtube_id`, r.table, columns)
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Filename,
		rec.StorageKey,
		rec.Topic,
		rec.DurationSeconds,
		rec.CreatedAt.UTC(),
		string(rec.Status),
		rec.FileSize,
		rec.Playable,
		nullable(rec.URL),
		nullable(rec.PublishID),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// SetPublishID updates the row only while its publish id is unset or equal,
// so concurrent publishers cannot both win.
func (r *Records) SetPublishID(ctx context.Context, id, publishID string) (storage.VideoRecord, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET youtube_id = $1
		WHERE id = $2 AND (youtube_id IS NULL OR youtube_id = '' OR youtube_id = $1)
		RETURNING %s`, r.table, columns)
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, publishID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ResolvePublishMiss(ctx, r, id, publishID)
	}
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("update publish id: %w", err)
	}
	return rec, nil
}

func (r *Records) Get(ctx context.Context, id string) (storage.VideoRecord, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", columns, r.table), id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.VideoRecord{}, services.Wrap(services.ErrNotFound, ProfileName, "get record", fmt.Sprintf("record %s", id), nil)
	}
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("query record: %w", err)
	}
	return rec, nil
}

func (r *Records) List(ctx context.Context) ([]storage.VideoRecord, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC", columns, r.table))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []storage.VideoRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
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

// Close releases the pool.
func (r *Records) Close() error {
	r.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (storage.VideoRecord, error) {
	var (
		id         string
		filename   *string
		storageKey *string
		topic      *string
		duration   *float64
		createdAt  *time.Time
		status     *string
		fileSize   *int64
		playable   *bool
		url        *string
		publishID  *string
	)
	if err := row.Scan(&id, &filename, &storageKey, &topic, &duration, &createdAt, &status, &fileSize, &playable, &url, &publishID); err != nil {
		return storage.VideoRecord{}, err
	}
	rec := storage.VideoRecord{
		ID:              id,
		Filename:        deref(filename),
		StorageKey:      deref(storageKey),
		Topic:           deref(topic),
		DurationSeconds: derefOr(duration, 0),
		Status:          storage.Status(deref(status)),
		FileSize:        derefOr(fileSize, 0),
		Playable:        derefOr(playable, false),
		URL:             deref(url),
		PublishID:       deref(publishID),
	}
	if createdAt != nil {
		rec.CreatedAt = createdAt.UTC()
	}
	return rec, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	return derefOr(value, "")
}

func derefOr[T any](value *T, fallback T) T {
	if value == nil {
		return fallback
	}
	return *value
}
