package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

type document struct {
	ID              string    `bson:"_id"`
	Filename        string    `bson:"filename"`
	StorageKey      string    `bson:"filepath"`
	Topic           string    `bson:"topic"`
	DurationSeconds float64   `bson:"duration"`
	CreatedAt       time.Time `bson:"created_at"`
	Status          string    `bson:"status"`
	FileSize        int64     `bson:"file_size"`
	Playable        bool      `bson:"playable"`
	URL             string    `bson:"url"`
	PublishID       string    `bson:"youtube_id,omitempty"`
}

func toDocument(rec storage.VideoRecord) document {
	return document{
		ID:              rec.ID,
		Filename:        rec.Filename,
		StorageKey:      rec.StorageKey,
		Topic:           rec.Topic,
		DurationSeconds: rec.DurationSeconds,
		CreatedAt:       rec.CreatedAt.UTC(),
		Status:          string(rec.Status),
		FileSize:        rec.FileSize,
		Playable:        rec.Playable,
		URL:             rec.URL,
		PublishID:       rec.PublishID,
	}
}

func (d document) record() storage.VideoRecord {
	return storage.VideoRecord{
		ID:              d.ID,
		Filename:        d.Filename,
		StorageKey:      d.StorageKey,
		Topic:           d.Topic,
		DurationSeconds: d.DurationSeconds,
		CreatedAt:       d.CreatedAt.UTC(),
		Status:          storage.Status(d.Status),
		FileSize:        d.FileSize,
		Playable:        d.Playable,
		URL:             d.URL,
		PublishID:       d.PublishID,
	}
}

// Records is a storage.RecordStore over one collection keyed by record id.
type Records struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (r *Records) Save(ctx context.Context, rec storage.VideoRecord) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, toDocument(rec), opts); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// publishFilter matches id only while its publish id is unset or equal.
func publishFilter(id, publishID string) bson.M {
	return bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"youtube_id": bson.M{"$exists": false}},
			bson.M{"youtube_id": ""},
			bson.M{"youtube_id": publishID},
		},
	}
}

// SetPublishID is a single filtered FindOneAndUpdate.
func (r *Records) SetPublishID(ctx context.Context, id, publishID string) (storage.VideoRecord, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"youtube_id": publishID}}
	var doc document
	err := r.coll.FindOneAndUpdate(ctx, publishFilter(id, publishID), update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ResolvePublishMiss(ctx, r, id, publishID)
	}
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("update publish id: %w", err)
	}
	return doc.record(), nil
}

func (r *Records) Get(ctx context.Context, id string) (storage.VideoRecord, error) {
	var doc document
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.VideoRecord{}, services.Wrap(services.ErrNotFound, ProfileName, "get record", fmt.Sprintf("record %s", id), nil)
	}
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("find record: %w", err)
	}
	return doc.record(), nil
}

func (r *Records) List(ctx context.Context) ([]storage.VideoRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]storage.VideoRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.record())
	}
	return out, nil
}

// Close disconnects the shared client.
func (r *Records) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
