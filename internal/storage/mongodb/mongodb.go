// Package mongodb stores video records in a MongoDB collection and video
// bytes in a GridFS bucket of the same database.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// ProfileName identifies the document database backend.
const ProfileName = "mongodb"

const (
	defaultCollection = "videos"
	connectTimeout    = 10 * time.Second
	pingTimeout       = 2 * time.Second
)

// Options configures the MongoDB backend.
type Options struct {
	URI        string
	Database   string
	Collection string
}

// New connects, pings, and returns the backend. The GridFS bucket shares the
// collection name as its prefix.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*storage.Composite, error) {
	if strings.TrimSpace(opts.URI) == "" || strings.TrimSpace(opts.Database) == "" {
		return nil, services.Wrap(services.ErrConfiguration, ProfileName, "init", "uri and database are required", nil)
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		collection = defaultCollection
	}

	clientOptions := options.Client().ApplyURI(opts.URI).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(60 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, pingTimeout)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(opts.Database)
	records := &Records{client: client, coll: db.Collection(collection)}
	objects, err := NewObjects(db, collection)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return storage.NewComposite(ProfileName, objects, records, logger), nil
}
