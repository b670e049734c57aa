package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/config"
)

const userAgent = "Ferry-Go/0.1.0"

// Service defines the notification surface exposed to run callers. Summary
// data arrives as scalars so the core never depends on this package.
type Service interface {
	NotifyRunStarted(ctx context.Context, candidates int) error
	NotifyRunCompleted(ctx context.Context, completed, failed, skipped int, bytesCopied int64, elapsed time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		notifyRuns: cfg.Notifications.Runs,
		notifyErrs: cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	notifyRuns bool
	notifyErrs bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, candidates int) error {
	if !n.notifyRuns {
		return nil
	}
	data := payload{
		title:   "Ferry - Run Started",
		message: fmt.Sprintf("Started transfer run with %d candidate batches", candidates),
		tags:    []string{"ferry", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, completed, failed, skipped int, bytesCopied int64, elapsed time.Duration) error {
	if !n.notifyRuns {
		return nil
	}
	elapsed = elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if bytesCopied < 0 {
		bytesCopied = 0
	}
	size := humanize.IBytes(uint64(bytesCopied))

	var title, message string
	if failed == 0 {
		title = "Ferry - Run Complete"
		message = fmt.Sprintf("Transfer run complete: %d copied, %d unchanged, %s in %s",
			completed, skipped, size, elapsed)
	} else {
		title = "Ferry - Run Complete (with errors)"
		message = fmt.Sprintf("Transfer run complete: %d copied, %d failed, %d unchanged, %s in %s",
			completed, failed, skipped, size, elapsed)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"ferry", "run", "completed"},
	}
	if failed > 0 {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.notifyErrs {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Ferry - Error",
		message:  builder.String(),
		tags:     []string{"ferry", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Ferry - Test",
		message:  "Notification system test",
		tags:     []string{"ferry", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) NotifyRunStarted(context.Context, int) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, int, int64, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
