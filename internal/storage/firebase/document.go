package firebase

import (
	"time"

	"reelgate/internal/storage"
)

func toDocument(rec storage.VideoRecord) map[string]interface{} {
	doc := map[string]interface{}{
		"id":         rec.ID,
		"filename":   rec.Filename,
		"filepath":   rec.StorageKey,
		"topic":      rec.Topic,
		"duration":   rec.DurationSeconds,
		"created_at": rec.CreatedAt.UTC(),
		"status":     string(rec.Status),
		"file_size":  rec.FileSize,
		"playable":   rec.Playable,
		"url":        rec.URL,
	}
	if rec.PublishID != "" {
		doc["youtube_id"] = rec.PublishID
	}
	return doc
}

// fromDocument tolerates the loosely typed documents older writers produced:
// numbers may be integers or floats and created_at may be an ISO string.
func fromDocument(docID string, data map[string]interface{}) storage.VideoRecord {
	rec := storage.VideoRecord{
		ID:              stringField(data, "id"),
		Filename:        stringField(data, "filename"),
		StorageKey:      stringField(data, "filepath"),
		Topic:           stringField(data, "topic"),
		DurationSeconds: floatField(data, "duration"),
		Status:          storage.Status(stringField(data, "status")),
		FileSize:        int64(floatField(data, "file_size")),
		URL:             stringField(data, "url"),
		PublishID:       stringField(data, "youtube_id"),
	}
	if rec.ID == "" {
		rec.ID = docID
	}
	if playable, ok := data["playable"].(bool); ok {
		rec.Playable = playable
	}
	switch v := data["created_at"].(type) {
	case time.Time:
		rec.CreatedAt = v.UTC()
	case string:
		if t, err := storage.ParseTimestamp(v); err == nil {
			rec.CreatedAt = t
		}
	}
	return rec
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func floatField(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
