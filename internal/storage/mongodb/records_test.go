package mongodb

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"reelgate/internal/storage"
)

func TestDocumentRoundTrip(t *testing.T) {
	rec := storage.VideoRecord{
		ID:              "01J0000000000000000000000A",
		Filename:        "tides_01J0000000000000000000000A.mp4",
		StorageKey:      "tides_01J0000000000000000000000A.mp4",
		Topic:           "Tides",
		DurationSeconds: 42.5,
		CreatedAt:       time.Date(2025, 6, 1, 8, 30, 0, 0, time.FixedZone("x", 3600)),
		Status:          storage.StatusCompleted,
		FileSize:        1024,
		Playable:        true,
		URL:             "/api/videos/01J0000000000000000000000A/file",
		PublishID:       "yt-9",
	}

	raw, err := bson.Marshal(toDocument(rec))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal fields: %v", err)
	}
	if fields["_id"] != rec.ID {
		t.Fatalf("expected _id %q, got %v", rec.ID, fields["_id"])
	}
	if fields["filepath"] != rec.StorageKey {
		t.Fatalf("expected filepath %q, got %v", rec.StorageKey, fields["filepath"])
	}

	var doc document
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	got := doc.record()
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", rec.CreatedAt, got.CreatedAt)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC created_at, got %v", got.CreatedAt.Location())
	}
	got.CreatedAt = rec.CreatedAt
	if got != rec {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", rec, got)
	}
}

func TestDocumentOmitsEmptyPublishID(t *testing.T) {
	raw, err := bson.Marshal(toDocument(storage.VideoRecord{ID: "a", CreatedAt: time.Now()}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["youtube_id"]; ok {
		t.Fatalf("expected youtube_id to be omitted, got %v", fields["youtube_id"])
	}
}

func TestPublishFilterOnlyMatchesUnsetOrEqualID(t *testing.T) {
	filter := publishFilter("rec-1", "yt-1")
	if filter["_id"] != "rec-1" {
		t.Fatalf("expected id match, got %v", filter["_id"])
	}
	alternatives, ok := filter["$or"].(bson.A)
	if !ok || len(alternatives) != 3 {
		t.Fatalf("expected three alternatives, got %#v", filter["$or"])
	}
	want := []bson.M{
		{"youtube_id": bson.M{"$exists": false}},
		{"youtube_id": ""},
		{"youtube_id": "yt-1"},
	}
	for i, alt := range alternatives {
		got, ok := alt.(bson.M)
		if !ok {
			t.Fatalf("alternative %d has type %T", i, alt)
		}
		raw, _ := bson.Marshal(got)
		expected, _ := bson.Marshal(want[i])
		if string(raw) != string(expected) {
			t.Fatalf("alternative %d: got %v want %v", i, got, want[i])
		}
	}
}
