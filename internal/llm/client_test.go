package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestCompleteJSONSendsModelAndPrompts(t *testing.T) {
	var got chatCompletionRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, `{"ok":true}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "llama3", APIKey: "sk-test"})
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content %q", content)
	}
	if got.Model != "llama3" || len(got.Messages) != 2 || got.Messages[1].Content != "user" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.ResponseFormat["type"] != jsonResponseType {
		t.Fatalf("expected json response format, got %v", got.ResponseFormat)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
}

func TestCompleteJSONOmitsAuthorizationWithoutKey(t *testing.T) {
	var auth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		completionHandler(t, `{}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "llama3"})
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if got := auth.Load().(string); got != "" {
		t.Fatalf("expected no authorization header, got %q", got)
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		completionHandler(t, `{"ok":true}`)(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{BaseURL: server.URL, Model: "m"},
		WithRetryBackoff(10*time.Millisecond, 15*time.Millisecond),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(slept) != 2 || slept[0] != 10*time.Millisecond || slept[1] != 15*time.Millisecond {
		t.Fatalf("unexpected backoff sequence %v", slept)
	}
}

func TestCompleteJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "m"}, WithSleeper(func(time.Duration) {}))
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestCompleteJSONRejectsEmptyPrompts(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	if _, err := client.CompleteJSON(context.Background(), " ", "user"); err == nil {
		t.Fatal("expected error for empty system prompt")
	}
}

func TestDecodeJSONHandlesFencesAndProse(t *testing.T) {
	cases := []string{
		`{"title":"Tides"}`,
		"```json\n{\"title\":\"Tides\"}\n```",
		`Sure! Here is the JSON: {"title":"Tides"} Hope it helps.`,
	}
	for _, content := range cases {
		var out struct {
			Title string `json:"title"`
		}
		if err := DecodeJSON(content, &out); err != nil {
			t.Fatalf("DecodeJSON(%q): %v", content, err)
		}
		if out.Title != "Tides" {
			t.Fatalf("DecodeJSON(%q) title = %q", content, out.Title)
		}
	}
	var out map[string]any
	if err := DecodeJSON("no json here", &out); err == nil {
		t.Fatal("expected error for prose without json")
	}
}
