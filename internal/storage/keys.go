package storage

import (
	"fmt"
	"math/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"reelgate/internal/services"
	"reelgate/internal/textutil"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewRecordID returns a time-ordered identifier for a record created at t.
// IDs created later sort after earlier ones.
func NewRecordID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ObjectKey derives the object name for a video from its topic and record id.
func ObjectKey(topic, id string) string {
	return fmt.Sprintf("%s_%s.mp4", textutil.Slug(topic, textutil.DefaultSlugLength), id)
}

// FileURL is the access URL for backends that only serve objects through the
// API.
func FileURL(id string) string {
	return "/api/videos/" + id + "/file"
}

// legacyRecordURL is the record route older writers stored as the access URL.
func legacyRecordURL(id string) string {
	return "/api/videos/" + id
}

// ValidateKey rejects keys that could escape a bucket prefix or directory.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return services.Wrap(services.ErrValidation, "storage", "validate key", "key is empty", nil)
	case strings.HasPrefix(key, "/"), strings.Contains(key, "\\"):
		return services.Wrap(services.ErrValidation, "storage", "validate key", fmt.Sprintf("key %q must be relative", key), nil)
	case path.Clean(key) != key, strings.HasPrefix(key, ".."):
		return services.Wrap(services.ErrValidation, "storage", "validate key", fmt.Sprintf("key %q is not canonical", key), nil)
	}
	return nil
}
