package mongodb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reelgate/internal/services"
)

const transferTimeout = 5 * time.Minute

// Objects is a storage.ObjectStore over a GridFS bucket. Keys map to GridFS
// filenames; only the newest revision of a key is kept.
//
// gridfs.Bucket keeps its read and write deadlines as mutable fields, so
// every call works on its own bucket handle.
type Objects struct {
	db   *mongo.Database
	name string
}

// NewObjects opens the GridFS bucket named name in db.
func NewObjects(db *mongo.Database, name string) (*Objects, error) {
	o := &Objects{db: db, name: name}
	if _, err := o.bucket(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Objects) bucket() (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(o.db, options.GridFSBucket().SetName(o.name))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return bucket, nil
}

func transferDeadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now().Add(transferTimeout)
}

// Put uploads a new revision, then removes older revisions of key. Readers
// see either the old or the new file, never a partial one.
func (o *Objects) Put(ctx context.Context, key string, data []byte) error {
	bucket, err := o.bucket()
	if err != nil {
		return err
	}
	if err := bucket.SetWriteDeadline(transferDeadline(ctx)); err != nil {
		return fmt.Errorf("set upload deadline: %w", err)
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": "video/mp4"})
	fileID, err := bucket.UploadFromStream(key, bytes.NewReader(data), opts)
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return pruneRevisions(ctx, bucket, key, fileID)
}

// Open streams the newest revision of key.
func (o *Objects) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, err := o.bucket()
	if err != nil {
		return nil, err
	}
	if err := bucket.SetReadDeadline(transferDeadline(ctx)); err != nil {
		return nil, fmt.Errorf("set download deadline: %w", err)
	}
	stream, err := bucket.OpenDownloadStreamByName(key)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, services.Wrap(services.ErrNotFound, ProfileName, "open object", fmt.Sprintf("object %s", key), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open download stream: %w", err)
	}
	return stream, nil
}

func pruneRevisions(ctx context.Context, bucket *gridfs.Bucket, key string, keep primitive.ObjectID) error {
	cursor, err := bucket.FindContext(ctx, bson.M{"filename": key, "_id": bson.M{"$ne": keep}})
	if err != nil {
		return fmt.Errorf("find object revisions: %w", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var file struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return fmt.Errorf("decode object revision: %w", err)
		}
		if err := bucket.DeleteContext(ctx, file.ID); err != nil {
			return fmt.Errorf("delete object revision: %w", err)
		}
	}
	return cursor.Err()
}

func (o *Objects) Exists(ctx context.Context, key string) (bool, error) {
	bucket, err := o.bucket()
	if err != nil {
		return false, err
	}
	cursor, err := bucket.FindContext(ctx, bson.M{"filename": key}, options.GridFSFind().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("find object: %w", err)
	}
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		return true, nil
	}
	return false, cursor.Err()
}

// URL is empty; GridFS objects are served through the API.
func (o *Objects) URL(context.Context, string) (string, error) {
	return "", nil
}

func (o *Objects) Close() error { return nil }
