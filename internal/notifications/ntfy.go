package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"montage/internal/config"
	"montage/internal/logging"
)

const userAgent = "Montage-Go/0.1.0"

// NtfyForwarder relays selected bus events to an ntfy topic so operators
// get push notifications for workflow completion and failures.
type NtfyForwarder struct {
	endpoint   string
	client     *http.Client
	bus        *Bus
	logger     *slog.Logger
	completion bool
	errors     bool
}

// NewNtfyForwarder builds a forwarder when a topic is configured; otherwise
// it returns nil and callers skip forwarding entirely.
func NewNtfyForwarder(cfg *config.Config, bus *Bus, logger *slog.Logger) *NtfyForwarder {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &NtfyForwarder{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		bus:        bus,
		logger:     logging.NewComponentLogger(logger, "ntfy"),
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

// Run consumes bus events until the context is cancelled.
func (f *NtfyForwarder) Run(ctx context.Context) {
	sub := f.bus.Subscribe(64)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			f.forward(ctx, msg)
		}
	}
}

func (f *NtfyForwarder) forward(ctx context.Context, msg Message) {
	var title, body, priority string
	switch msg.Event {
	case EventWorkflowCompleted:
		if !f.completion {
			return
		}
		title = "Montage - Complete"
		body = fmt.Sprintf("Merged output ready for project %s", msg.ProjectID)
		priority = "high"
	case EventWorkflowError:
		if !f.errors {
			return
		}
		title = "Montage - Error"
		detail := ""
		if v, ok := msg.Payload["error"].(string); ok {
			detail = ": " + v
		} else if v, ok := msg.Payload["message"].(string); ok {
			detail = ": " + v
		}
		body = fmt.Sprintf("Workflow failed for project %s%s", msg.ProjectID, detail)
		priority = "high"
	default:
		return
	}

	if err := f.send(ctx, title, body, priority); err != nil {
		f.logger.Debug("ntfy forward failed", logging.Error(err))
	}
}

func (f *NtfyForwarder) send(ctx context.Context, title, body, priority string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if priority != "" && priority != "default" {
		req.Header.Set("Priority", priority)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
