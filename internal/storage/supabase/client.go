// Package supabase stores video bytes in Supabase Storage and records in a
// PostgREST table of the same project.
package supabase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// ProfileName identifies the hosted Postgres plus object storage backend.
const ProfileName = "supabase"

const (
	defaultBucket  = "videos"
	defaultTable   = "videos"
	requestTimeout = 60 * time.Second
	maxErrorBody   = 512
)

// Options configures the Supabase backend.
type Options struct {
	URL    string
	Key    string
	Bucket string
	Table  string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

type client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New returns the Supabase backend after probing the records table.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*storage.Composite, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	key := strings.TrimSpace(opts.Key)
	if baseURL == "" || key == "" {
		return nil, services.Wrap(services.ErrConfiguration, ProfileName, "init", "url and key are required", nil)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	c := &client{baseURL: baseURL, key: key, http: httpClient}

	bucket := firstNonEmpty(opts.Bucket, defaultBucket)
	table := firstNonEmpty(opts.Table, defaultTable)

	records := &Records{client: c, table: table}
	if err := records.probe(ctx); err != nil {
		return nil, err
	}
	objects := &Objects{client: c, bucket: bucket}
	return storage.NewComposite(ProfileName, objects, records, logger), nil
}

func (c *client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	return req, nil
}

func (c *client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(snippet))
	if detail == "" {
		return fmt.Errorf("%s %s: unexpected status %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode)
	}
	return fmt.Errorf("%s %s: unexpected status %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, detail)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
