// Package storageaccess chooses and constructs the active storage backend
// from the available environment keys.
package storageaccess

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/storage"
	"reelgate/internal/storage/firebase"
	"reelgate/internal/storage/localfs"
	"reelgate/internal/storage/mongodb"
	"reelgate/internal/storage/s3pg"
	"reelgate/internal/storage/sqlitestore"
	"reelgate/internal/storage/supabase"
)

// Profile is one named backend option and the keys it needs.
type Profile struct {
	Name     string
	Required []string
}

// Profiles lists backend profiles from highest to lowest priority. The last
// two need no external keys.
var Profiles = []Profile{
	{Name: firebase.ProfileName, Required: []string{"FIREBASE_STORAGE_BUCKET", "GOOGLE_APPLICATION_CREDENTIALS"}},
	{Name: s3pg.ProfileName, Required: []string{"AWS_S3_BUCKET", "DATABASE_URL"}},
	{Name: supabase.ProfileName, Required: []string{"SUPABASE_URL", "SUPABASE_KEY"}},
	{Name: mongodb.ProfileName, Required: []string{"MONGODB_URI", "MONGODB_DATABASE"}},
	{Name: sqlitestore.ProfileName},
	{Name: localfs.ProfileName},
}

// ProfileStatus reports whether a profile's keys are all present.
type ProfileStatus struct {
	Name    string
	Missing []string
}

// Complete reports whether no required key is missing.
func (s ProfileStatus) Complete() bool { return len(s.Missing) == 0 }

// Resolution is the outcome of key-presence selection.
type Resolution struct {
	Selected string
	Profiles []ProfileStatus
}

// Resolve picks the first profile whose required keys are all non-empty in
// environ. It never fails: the keyless profiles always qualify.
func Resolve(environ map[string]string) Resolution {
	res := Resolution{Profiles: make([]ProfileStatus, 0, len(Profiles))}
	for _, profile := range Profiles {
		status := ProfileStatus{Name: profile.Name}
		for _, key := range profile.Required {
			if strings.TrimSpace(environ[key]) == "" {
				status.Missing = append(status.Missing, key)
			}
		}
		if res.Selected == "" && status.Complete() {
			res.Selected = profile.Name
		}
		res.Profiles = append(res.Profiles, status)
	}
	return res
}

// Opener constructs the backend for one profile.
type Opener func(ctx context.Context, cfg *config.Config, environ map[string]string, logger *slog.Logger) (storage.Backend, error)

// Selector constructs the highest-priority profile that both has its keys and
// can be built.
type Selector struct {
	Openers map[string]Opener
	Logger  *slog.Logger
}

// NewSelector returns a Selector wired to the real backends.
func NewSelector(logger *slog.Logger) *Selector {
	return &Selector{
		Openers: map[string]Opener{
			firebase.ProfileName:    openFirebase,
			s3pg.ProfileName:        openS3Postgres,
			supabase.ProfileName:    openSupabase,
			mongodb.ProfileName:     openMongo,
			sqlitestore.ProfileName: openSQLite,
			localfs.ProfileName:     openLocal,
		},
		Logger: logger,
	}
}

// Open returns the active backend. A profile whose keys are present but whose
// construction fails is skipped with a warning.
func (s *Selector) Open(ctx context.Context, cfg *config.Config, environ map[string]string) (storage.Backend, error) {
	logger := logging.NewComponentLogger(s.Logger, "storage-selector")
	res := Resolve(environ)
	for _, status := range res.Profiles {
		if !status.Complete() {
			continue
		}
		opener, ok := s.Openers[status.Name]
		if !ok {
			continue
		}
		backend, err := opener(ctx, cfg, environ, s.Logger)
		if err != nil {
			logging.WarnWithContext(logger, "storage backend unavailable; falling through", "backend_fallthrough",
				logging.String(logging.FieldBackend, status.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the backend credentials and connectivity"),
			)
			continue
		}
		logger.Info("storage backend selected",
			logging.String(logging.FieldBackend, backend.Name()),
			logging.String(logging.FieldEventType, "backend_selected"),
		)
		return backend, nil
	}
	return nil, fmt.Errorf("no storage backend could be constructed")
}

// Open is NewSelector(logger).Open.
func Open(ctx context.Context, cfg *config.Config, environ map[string]string, logger *slog.Logger) (storage.Backend, error) {
	return NewSelector(logger).Open(ctx, cfg, environ)
}

func openFirebase(ctx context.Context, _ *config.Config, environ map[string]string, logger *slog.Logger) (storage.Backend, error) {
	keys, err := config.ParseProfile[config.FirebaseEnv](environ)
	if err != nil {
		return nil, err
	}
	return firebase.New(ctx, firebase.Options{
		Bucket:          keys.StorageBucket,
		CredentialsFile: keys.CredentialsFile,
		ProjectID:       keys.ProjectID,
		Collection:      keys.Collection,
	}, logger)
}

func openS3Postgres(ctx context.Context, _ *config.Config, environ map[string]string, logger *slog.Logger) (storage.Backend, error) {
	keys, err := config.ParseProfile[config.S3PostgresEnv](environ)
	if err != nil {
		return nil, err
	}
	return s3pg.New(ctx, s3pg.Options{
		Bucket:      keys.Bucket,
		DatabaseURL: keys.DatabaseURL,
		Region:      keys.Region,
		EndpointURL: keys.EndpointURL,
	}, logger)
}

func openSupabase(ctx context.Context, _ *config.Config, environ map[string]string, logger *slog.Logger) (storage.Backend, error) {
	keys, err := config.ParseProfile[config.SupabaseEnv](environ)
	if err != nil {
		return nil, err
	}
	return supabase.New(ctx, supabase.Options{
		URL:    keys.URL,
		Key:    keys.Key,
		Bucket: keys.Bucket,
		Table:  keys.Table,
	}, logger)
}

func openMongo(ctx context.Context, _ *config.Config, environ map[string]string, logger *slog.Logger) (storage.Backend, error) {
	keys, err := config.ParseProfile[config.MongoEnv](environ)
	if err != nil {
		return nil, err
	}
	return mongodb.New(ctx, mongodb.Options{
		URI:        keys.URI,
		Database:   keys.Database,
		Collection: keys.Collection,
	}, logger)
}

func openSQLite(ctx context.Context, cfg *config.Config, environ map[string]string, logger *slog.Logger) (storage.Backend, error) {
	keys, err := config.ParseProfile[config.SQLiteEnv](environ)
	if err != nil {
		return nil, err
	}
	dbPath := strings.TrimSpace(keys.Path)
	if dbPath != "" {
		if dbPath, err = config.ExpandPath(dbPath); err != nil {
			return nil, err
		}
	} else {
		dbPath = filepath.Join(cfg.Paths.VideosDir, sqlitestore.DatabaseFileName)
	}
	return sqlitestore.New(ctx, cfg.Paths.VideosDir, dbPath, logger)
}

func openLocal(_ context.Context, cfg *config.Config, _ map[string]string, logger *slog.Logger) (storage.Backend, error) {
	return localfs.New(cfg.Paths.VideosDir, logger)
}
