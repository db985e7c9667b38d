// Package s3pg stores video records in PostgreSQL and video bytes in an S3
// bucket (or any S3-compatible endpoint).
package s3pg

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// ProfileName identifies the relational plus object bucket backend.
const ProfileName = "s3-postgres"

// Options configures the S3 plus PostgreSQL backend.
type Options struct {
	Bucket      string
	DatabaseURL string
	Region      string
	EndpointURL string
	Table       string
}

// New connects to PostgreSQL, ensures the records table, and prepares the S3
// client.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*storage.Composite, error) {
	if strings.TrimSpace(opts.Bucket) == "" || strings.TrimSpace(opts.DatabaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, ProfileName, "init", "bucket and database url are required", nil)
	}

	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	records, err := NewRecords(ctx, pool, opts.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	objects, err := NewObjects(ctx, opts.Bucket, opts.Region, opts.EndpointURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return storage.NewComposite(ProfileName, objects, records, logger), nil
}
