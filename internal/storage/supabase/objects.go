package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"reelgate/internal/services"
)

// Objects is a storage.ObjectStore over one Supabase Storage bucket.
type Objects struct {
	client *client
	bucket string
}

func (o *Objects) objectPath(key string) string {
	return "/storage/v1/object/" + url.PathEscape(o.bucket) + "/" + url.PathEscape(key)
}

// Put uploads with upsert so a retried write replaces the earlier object.
func (o *Objects) Put(ctx context.Context, key string, data []byte) error {
	req, err := o.client.newRequest(ctx, http.MethodPost, o.objectPath(key), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("x-upsert", "true")
	resp, err := o.client.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Open downloads through the authenticated object route, which also works
// for private buckets.
func (o *Objects) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := o.client.newRequest(ctx, http.MethodGet, o.objectPath(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound, http.StatusBadRequest:
		resp.Body.Close()
		return nil, services.Wrap(services.ErrNotFound, ProfileName, "open object", fmt.Sprintf("object %s", key), nil)
	default:
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
}

func (o *Objects) Exists(ctx context.Context, key string) (bool, error) {
	req, err := o.client.newRequest(ctx, http.MethodHead, o.objectPath(key), nil)
	if err != nil {
		return false, err
	}
	resp, err := o.client.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	// Storage answers 400 for missing objects on some versions.
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

// URL returns the public object URL; it resolves only for public buckets.
func (o *Objects) URL(_ context.Context, key string) (string, error) {
	return o.client.baseURL + "/storage/v1/object/public/" + url.PathEscape(o.bucket) + "/" + url.PathEscape(key), nil
}

func (o *Objects) Close() error { return nil }
