package localfs

import (
	"log/slog"
	"path/filepath"

	"reelgate/internal/storage"
)

// ProfileName identifies the flat-file fallback backend.
const ProfileName = "local-json"

// New returns the flat-file backend rooted at videosDir. It only fails when
// the directory cannot be created.
func New(videosDir string, logger *slog.Logger) (*storage.Composite, error) {
	objects, err := NewObjects(videosDir)
	if err != nil {
		return nil, err
	}
	records, err := OpenJSONRecords(filepath.Join(videosDir, MetadataFileName))
	if err != nil {
		return nil, err
	}
	return storage.NewComposite(ProfileName, objects, records, logger), nil
}
