package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelgate/internal/config"
	"reelgate/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventVideoStored, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "stage ready",
			event: notifications.EventStageReady,
			payload: notifications.Payload{
				"stage": "script",
				"topic": "Ocean Tides",
			},
			expectTitle:   "Reelgate - Review Needed",
			expectMessage: "📝 script ready for review: Ocean Tides",
			expectTags:    "reelgate,review,script",
		},
		{
			name:  "stage failed",
			event: notifications.EventStageFailed,
			payload: notifications.Payload{
				"stage": "video",
				"topic": "Ocean Tides",
				"error": errors.New("renderer crashed"),
			},
			expectTitle:    "Reelgate - Error",
			expectMessage:  "❌ video failed for Ocean Tides: renderer crashed",
			expectTags:     "reelgate,error,alert",
			expectPriority: "high",
		},
		{
			name:  "video stored",
			event: notifications.EventVideoStored,
			payload: notifications.Payload{
				"title":    "Ocean Tides Explained",
				"recordID": "01J00",
			},
			expectTitle:   "Reelgate - Video Stored",
			expectMessage: "✅ Stored: Ocean Tides Explained\nRecord: 01J00",
			expectTags:    "reelgate,video,stored",
		},
		{
			name:  "migration clean",
			event: notifications.EventMigrationCompleted,
			payload: notifications.Payload{
				"backend":  "supabase",
				"migrated": 3,
				"skipped":  1,
				"failed":   0,
			},
			expectTitle:   "Reelgate - Migration Complete",
			expectMessage: "Migration to supabase: 3 migrated, 1 skipped, 0 failed",
			expectTags:    "reelgate,migration,completed",
		},
		{
			name:  "migration with failures",
			event: notifications.EventMigrationCompleted,
			payload: notifications.Payload{
				"backend":  "s3-postgres",
				"migrated": 1,
				"skipped":  0,
				"failed":   2,
			},
			expectTitle:    "Reelgate - Migration Complete (with errors)",
			expectMessage:  "Migration to s3-postgres: 1 migrated, 0 skipped, 2 failed",
			expectTags:     "reelgate,migration,completed",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Reelgate - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "reelgate,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsMutedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for muted event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.StageReady = false
	cfg.Notifications.Stored = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventStageReady, notifications.EventVideoStored, notifications.Event("unknown")} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for muted event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}
