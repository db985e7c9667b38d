package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"reelgate/internal/services"
)

// Status describes the lifecycle of a stored video.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusError     Status = "error"
)

// VideoRecord is the durable metadata entity describing one produced video.
// JSON names match the flat-file metadata format so existing files load
// without conversion.
type VideoRecord struct {
	ID              string    `json:"id" validate:"required"`
	Filename        string    `json:"filename" validate:"required"`
	StorageKey      string    `json:"filepath" validate:"required"`
	Topic           string    `json:"topic"`
	DurationSeconds float64   `json:"duration" validate:"gte=0"`
	CreatedAt       time.Time `json:"created_at"`
	Status          Status    `json:"status" validate:"oneof=completed pending error"`
	FileSize        int64     `json:"file_size" validate:"gte=0"`
	Playable        bool      `json:"playable"`
	URL             string    `json:"url"`
	PublishID       string    `json:"youtube_id,omitempty"`
}

// Published reports whether the external publish id has been set.
func (r VideoRecord) Published() bool {
	return strings.TrimSpace(r.PublishID) != ""
}

type recordJSON struct {
	ID              string  `json:"id"`
	Filename        string  `json:"filename"`
	StorageKey      string  `json:"filepath"`
	Topic           string  `json:"topic"`
	DurationSeconds float64 `json:"duration"`
	CreatedAt       string  `json:"created_at"`
	Status          Status  `json:"status"`
	FileSize        int64   `json:"file_size"`
	Playable        bool    `json:"playable"`
	URL             string  `json:"url"`
	PublishID       string  `json:"youtube_id,omitempty"`
}

// MarshalJSON writes created_at as RFC 3339 in UTC.
func (r VideoRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:              r.ID,
		Filename:        r.Filename,
		StorageKey:      r.StorageKey,
		Topic:           r.Topic,
		DurationSeconds: r.DurationSeconds,
		Status:          r.Status,
		FileSize:        r.FileSize,
		Playable:        r.Playable,
		URL:             r.URL,
		PublishID:       r.PublishID,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = FormatTimestamp(r.CreatedAt)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both RFC 3339 and zone-less ISO created_at values.
func (r *VideoRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = VideoRecord{
		ID:              in.ID,
		Filename:        in.Filename,
		StorageKey:      in.StorageKey,
		Topic:           in.Topic,
		DurationSeconds: in.DurationSeconds,
		Status:          in.Status,
		FileSize:        in.FileSize,
		Playable:        in.Playable,
		URL:             in.URL,
		PublishID:       in.PublishID,
	}
	if strings.TrimSpace(in.CreatedAt) != "" {
		created, err := ParseTimestamp(in.CreatedAt)
		if err != nil {
			return fmt.Errorf("created_at: %w", err)
		}
		r.CreatedAt = created
	}
	return nil
}

// FormatTimestamp renders t for text timestamp fields.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts RFC 3339 values and the zone-less ISO forms written by
// older tooling, which are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05.999999999-07:00",
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

var validate = validator.New()

// ValidateRecord checks field constraints before a record is written. The
// error carries both ErrStorage and ErrValidation.
func ValidateRecord(rec VideoRecord) error {
	if err := validate.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			err = fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(parts, ", "))
		} else {
			err = fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
		return services.Wrap(services.ErrStorage, "storage", "validate record", rec.ID, err)
	}
	return nil
}
