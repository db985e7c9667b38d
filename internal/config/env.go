package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// FirebaseEnv holds the managed document and object store profile keys.
type FirebaseEnv struct {
	StorageBucket   string `env:"FIREBASE_STORAGE_BUCKET,required,notEmpty"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS,required,notEmpty"`
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	Collection      string `env:"FIREBASE_COLLECTION" envDefault:"videos"`
}

// S3PostgresEnv holds the relational plus object bucket profile keys.
type S3PostgresEnv struct {
	Bucket      string `env:"AWS_S3_BUCKET,required,notEmpty"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	Region      string `env:"AWS_REGION" envDefault:"us-east-1"`
	EndpointURL string `env:"AWS_ENDPOINT_URL"`
}

// SupabaseEnv holds the alternate managed profile keys.
type SupabaseEnv struct {
	URL    string `env:"SUPABASE_URL,required,notEmpty"`
	Key    string `env:"SUPABASE_KEY,required,notEmpty"`
	Bucket string `env:"SUPABASE_BUCKET" envDefault:"videos"`
	Table  string `env:"SUPABASE_TABLE" envDefault:"videos"`
}

// MongoEnv holds the MongoDB profile keys.
type MongoEnv struct {
	URI        string `env:"MONGODB_URI,required,notEmpty"`
	Database   string `env:"MONGODB_DATABASE,required,notEmpty"`
	Collection string `env:"MONGODB_COLLECTION" envDefault:"videos"`
}

// SQLiteEnv holds the optional embedded database override.
type SQLiteEnv struct {
	Path string `env:"REELGATE_SQLITE_PATH"`
}

// Environment returns the key set consulted by backend selection: entries from
// envFile (when it exists) overlaid by the process environment, so exported
// variables always win over the file.
func Environment(envFile string) (map[string]string, error) {
	values := make(map[string]string)
	if path := strings.TrimSpace(envFile); path != "" {
		fileValues, err := godotenv.Read(path)
		switch {
		case err == nil:
			for key, value := range fileValues {
				values[key] = value
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
	}
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	return values, nil
}

// ParseProfile decodes one profile group from environ into T.
func ParseProfile[T any](environ map[string]string) (T, error) {
	var out T
	if err := env.ParseWithOptions(&out, env.Options{Environment: environ}); err != nil {
		return out, fmt.Errorf("parse profile environment: %w", err)
	}
	return out, nil
}
