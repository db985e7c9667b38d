// Package firebase stores video records in Cloud Firestore and video bytes in
// a Firebase Cloud Storage bucket.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebasesdk "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// ProfileName identifies the managed document and object store backend.
const ProfileName = "firebase"

// Options configures the Firebase backend.
type Options struct {
	Bucket          string
	CredentialsFile string
	ProjectID       string
	Collection      string
}

// New connects to Firestore and Cloud Storage and verifies the bucket is
// reachable before returning.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*storage.Composite, error) {
	if strings.TrimSpace(opts.Bucket) == "" || strings.TrimSpace(opts.CredentialsFile) == "" {
		return nil, services.Wrap(services.ErrConfiguration, ProfileName, "init", "bucket and credentials file are required", nil)
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		collection = "videos"
	}

	app, err := firebasesdk.NewApp(ctx, &firebasesdk.Config{
		ProjectID:     opts.ProjectID,
		StorageBucket: opts.Bucket,
	}, option.WithCredentialsFile(opts.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	storageClient, err := app.Storage(ctx)
	if err != nil {
		_ = fsClient.Close()
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	bucket, err := storageClient.Bucket(opts.Bucket)
	if err != nil {
		_ = fsClient.Close()
		return nil, fmt.Errorf("open bucket %s: %w", opts.Bucket, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := bucket.Attrs(probeCtx); err != nil {
		_ = fsClient.Close()
		return nil, fmt.Errorf("probe bucket %s: %w", opts.Bucket, err)
	}

	objects := &Objects{bucket: bucket}
	records := &Records{client: fsClient, collection: collection}
	return storage.NewComposite(ProfileName, objects, records, logger), nil
}

// Objects is a storage.ObjectStore over one Cloud Storage bucket.
type Objects struct {
	bucket *gcs.BucketHandle
}

// Put streams data to the object. Cloud Storage only exposes the new
// generation once the writer closes successfully.
func (o *Objects) Put(ctx context.Context, key string, data []byte) error {
	w := o.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "video/mp4"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object: %w", err)
	}
	return nil
}

func (o *Objects) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := o.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, services.Wrap(services.ErrNotFound, ProfileName, "open object", fmt.Sprintf("object %s", key), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open object reader: %w", err)
	}
	return r, nil
}

func (o *Objects) Exists(ctx context.Context, key string) (bool, error) {
	_, err := o.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// URL is empty: Firebase objects are private and reached through the API.
func (o *Objects) URL(context.Context, string) (string, error) { return "", nil }

func (o *Objects) Close() error { return nil }

// Records is a storage.RecordStore over one Firestore collection.
type Records struct {
	client     *firestore.Client
	collection string
}

func (r *Records) Save(ctx context.Context, rec storage.VideoRecord) error {
	if _, err := r.client.Collection(r.collection).Doc(rec.ID).Set(ctx, toDocument(rec)); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// SetPublishID reads and updates the document inside one transaction;
// Firestore retries the function when another writer touched it.
func (r *Records) SetPublishID(ctx context.Context, id, publishID string) (storage.VideoRecord, error) {
	ref := r.client.Collection(r.collection).Doc(id)
	var out storage.VideoRecord
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return services.Wrap(services.ErrNotFound, ProfileName, "get record", fmt.Sprintf("record %s", id), nil)
		}
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		next, write, err := storage.ApplyPublishID(fromDocument(snap.Ref.ID, snap.Data()), publishID)
		if err != nil {
			return err
		}
		out = next
		if !write {
			return nil
		}
		return tx.Update(ref, []firestore.Update{{Path: "youtube_id", Value: publishID}})
	})
	if err != nil {
		return storage.VideoRecord{}, err
	}
	return out, nil
}

func (r *Records) Get(ctx context.Context, id string) (storage.VideoRecord, error) {
	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return storage.VideoRecord{}, services.Wrap(services.ErrNotFound, ProfileName, "get record", fmt.Sprintf("record %s", id), nil)
	}
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("get document: %w", err)
	}
	return fromDocument(snap.Ref.ID, snap.Data()), nil
}

func (r *Records) List(ctx context.Context) ([]storage.VideoRecord, error) {
	iter := r.client.Collection(r.collection).OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var out []storage.VideoRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate documents: %w", err)
		}
		out = append(out, fromDocument(snap.Ref.ID, snap.Data()))
	}
	return out, nil
}

func (r *Records) Close() error {
	return r.client.Close()
}
