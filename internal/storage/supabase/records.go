package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// Records is a storage.RecordStore over a PostgREST table.
type Records struct {
	client *client
	table  string
}

func (r *Records) tablePath(query url.Values) string {
	path := "/rest/v1/" + url.PathEscape(r.table)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path
}

func (r *Records) probe(ctx context.Context) error {
	query := url.Values{"select": {"id"}, "limit": {"1"}}
	req, err := r.client.newRequest(ctx, http.MethodGet, r.tablePath(query), nil)
	if err != nil {
		return err
	}
	resp, err := r.client.do(req)
	if err != nil {
		return fmt.Errorf("probe records table: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe records table: %w", statusError(resp))
	}
	return nil
}

// Save upserts by primary key.
func (r *Records) Save(ctx context.Context, rec storage.VideoRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	query := url.Values{"on_conflict": {"id"}}
	req, err := r.client.newRequest(ctx, http.MethodPost, r.tablePath(query), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	resp, err := r.client.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return statusError(resp)
	}
}

// SetPublishID patches the row with a filter that only matches an unset or
// equal publish id. PostgREST applies the filter and the update in one
// statement.
func (r *Records) SetPublishID(ctx context.Context, id, publishID string) (storage.VideoRecord, error) {
	body, err := json.Marshal(map[string]string{"youtube_id": publishID})
	if err != nil {
		return storage.VideoRecord{}, fmt.Errorf("encode publish id: %w", err)
	}
	query := url.Values{
		"id": {"eq." + id},
		"or": {fmt.Sprintf(`(youtube_id.is.null,youtube_id.eq."",youtube_id.eq.%s)`, strconv.Quote(publishID))},
	}
	req, err := r.client.newRequest(ctx, http.MethodPatch, r.tablePath(query), bytes.NewReader(body))
	if err != nil {
		return storage.VideoRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")
	resp, err := r.client.do(req)
	if err != nil {
		return storage.VideoRecord{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return storage.VideoRecord{}, statusError(resp)
	}
	var rows []storage.VideoRecord
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return storage.VideoRecord{}, fmt.Errorf("decode records: %w", err)
	}
	if len(rows) == 0 {
		return storage.ResolvePublishMiss(ctx, r, id, publishID)
	}
	return rows[0], nil
}

func (r *Records) Get(ctx context.Context, id string) (storage.VideoRecord, error) {
	query := url.Values{"select": {"*"}, "id": {"eq." + id}}
	rows, err := r.fetch(ctx, query)
	if err != nil {
		return storage.VideoRecord{}, err
	}
	if len(rows) == 0 {
		return storage.VideoRecord{}, services.Wrap(services.ErrNotFound, ProfileName, "get record", fmt.Sprintf("record %s", id), nil)
	}
	return rows[0], nil
}

func (r *Records) List(ctx context.Context) ([]storage.VideoRecord, error) {
	query := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	return r.fetch(ctx, query)
}

func (r *Records) fetch(ctx context.Context, query url.Values) ([]storage.VideoRecord, error) {
	req, err := r.client.newRequest(ctx, http.MethodGet, r.tablePath(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var rows []storage.VideoRecord
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return rows, nil
}

func (r *Records) Close() error { return nil }
