package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelgate/internal/config"
)

const userAgent = "Reelgate/0.1.0"

// Event identifies a notification-worthy milestone.
type Event string

const (
	EventStageReady         Event = "stage_ready"
	EventStageFailed        Event = "stage_failed"
	EventVideoStored        Event = "video_stored"
	EventMigrationCompleted Event = "migration_completed"
	EventTest               Event = "test"
)

// Payload carries event fields. Keys used per event:
//
//	stage_ready:         stage, topic, workflowID
//	stage_failed:        stage, topic, error
//	video_stored:        title, recordID, backend
//	migration_completed: migrated, skipped, failed, backend
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventStageReady:         cfg.Notifications.StageReady,
			EventStageFailed:        cfg.Notifications.Errors,
			EventVideoStored:        cfg.Notifications.Stored,
			EventMigrationCompleted: cfg.Notifications.Migration,
			EventTest:               true,
		},
	}
}

// NewNoop returns a Service that drops every event.
func NewNoop() Service { return noopService{} }

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventStageReady:
		stageName := payloadString(payload, "stage")
		return message{
			title: "Reelgate - Review Needed",
			body:  fmt.Sprintf("📝 %s ready for review: %s", stageName, payloadString(payload, "topic")),
			tags:  []string{"reelgate", "review", stageName},
		}, true
	case EventStageFailed:
		var b strings.Builder
		b.WriteString("❌ ")
		b.WriteString(fallback(payloadString(payload, "stage"), "stage"))
		b.WriteString(" failed")
		if topic := payloadString(payload, "topic"); topic != "" {
			b.WriteString(" for ")
			b.WriteString(topic)
		}
		b.WriteString(": ")
		b.WriteString(fallback(payloadString(payload, "error"), "unknown"))
		return message{
			title:    "Reelgate - Error",
			body:     b.String(),
			tags:     []string{"reelgate", "error", "alert"},
			priority: "high",
		}, true
	case EventVideoStored:
		body := fmt.Sprintf("✅ Stored: %s", payloadString(payload, "title"))
		if id := payloadString(payload, "recordID"); id != "" {
			body = fmt.Sprintf("%s\nRecord: %s", body, id)
		}
		return message{
			title: "Reelgate - Video Stored",
			body:  body,
			tags:  []string{"reelgate", "video", "stored"},
		}, true
	case EventMigrationCompleted:
		failed := payloadString(payload, "failed")
		msg := message{
			title: "Reelgate - Migration Complete",
			body: fmt.Sprintf("Migration to %s: %s migrated, %s skipped, %s failed",
				fallback(payloadString(payload, "backend"), "remote"),
				fallback(payloadString(payload, "migrated"), "0"),
				fallback(payloadString(payload, "skipped"), "0"),
				fallback(failed, "0")),
			tags: []string{"reelgate", "migration", "completed"},
		}
		if failed != "" && failed != "0" {
			msg.title = "Reelgate - Migration Complete (with errors)"
			msg.priority = "high"
		}
		return msg, true
	case EventTest:
		return message{
			title:    "Reelgate - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"reelgate", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
