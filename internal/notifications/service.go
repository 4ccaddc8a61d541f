package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"letterpod/internal/config"
)

const userAgent = "letterpod/0.1.0"

// Event names a notification type.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventDegraded     Event = "delivery_degraded"
	EventNoContent    Event = "no_content"
	EventRunFailed    Event = "run_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys are event-specific.
type Payload map[string]any

// Service publishes operator notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed Service, or a no-op when no topic is set.
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
			EventRunStarted:   cfg.Notifications.RunStart,
			EventRunCompleted: cfg.Notifications.RunComplete,
			EventNoContent:    cfg.Notifications.RunComplete,
			EventDegraded:     cfg.Notifications.Degraded,
			EventRunFailed:    cfg.Notifications.Failures,
			EventTest:         true,
		},
	}
}

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
	if n == nil || !n.enabled[event] {
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
	case EventRunStarted:
		return message{
			title: "letterpod - Run Started",
			body:  fmt.Sprintf("Run %s started (%s)", payload.short("runID"), payload.text("trigger", "manual")),
			tags:  []string{"letterpod", "run", "started"},
		}, true
	case EventRunCompleted:
		body := fmt.Sprintf("Delivered %s covering %d newsletters", payload.text("outcome", "episode"), payload.integer("included"))
		if overflow := payload.integer("overflow"); overflow > 0 {
			body += fmt.Sprintf(" (+%d bonus topics)", overflow)
		}
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body += fmt.Sprintf(" in %s", d.Round(time.Second))
		}
		return message{
			title: "letterpod - Episode Delivered",
			body:  "🎧 " + body,
			tags:  []string{"letterpod", "delivery", "completed"},
		}, true
	case EventDegraded:
		body := fmt.Sprintf("Delivered %s instead of full audio", payload.text("outcome", "degraded artifact"))
		if reason := payload.text("reason", ""); reason != "" {
			body += ": " + reason
		}
		return message{
			title:    "letterpod - Degraded Delivery",
			body:     "⚠️ " + body,
			tags:     []string{"letterpod", "delivery", "degraded"},
			priority: "high",
		}, true
	case EventNoContent:
		return message{
			title: "letterpod - No Newsletters",
			body:  "No unread newsletters found; nothing to narrate today",
			tags:  []string{"letterpod", "run", "empty"},
		}, true
	case EventRunFailed:
		var b strings.Builder
		b.WriteString("❌ Run failed")
		if stage := payload.text("stage", ""); stage != "" {
			b.WriteString(" while ")
			b.WriteString(stage)
		}
		b.WriteString(": ")
		b.WriteString(payload.text("class", "pipeline failure"))
		if detail := payload.text("error", ""); detail != "" {
			b.WriteString("\n")
			b.WriteString(detail)
		}
		return message{
			title:    "letterpod - Run Failed",
			body:     b.String(),
			tags:     []string{"letterpod", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "letterpod - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"letterpod", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key, fallback string) string {
	switch v := p[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case fmt.Stringer:
		return v.String()
	case error:
		return strings.TrimSpace(v.Error())
	}
	return fallback
}

func (p Payload) short(key string) string {
	s := p.text(key, "")
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func (p Payload) integer(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
