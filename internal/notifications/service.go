package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

const userAgent = "Coffeeman-Go/0.1.0"

// Service pushes ntfy notifications for machine events. All Notify methods
// are fire-and-forget: delivery failures are logged, never surfaced, so a
// dead notification topic can never affect a pour.
type Service interface {
	NotifyDaemonStarted()
	NotifyDaemonStopped()
	NotifyPourStarted(recipe, tag string)
	NotifyPourCompleted(recipe string)
	NotifyPourFailed(recipe, fault string)
	NotifyFault(fault string)
	NotifyOperatorReset()
	NotifyControllerAttached(device string)
	NotifyControllerDetached(device string)
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured, and a noop implementation otherwise.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	endpoint := topic
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://ntfy.sh/" + endpoint
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		pours:    cfg.Notifications.Pours,
		errors:   cfg.Notifications.Errors,
		hardware: cfg.Notifications.Hardware,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	pours    bool
	errors   bool
	hardware bool
	logger   *slog.Logger
}

func (n *ntfyService) NotifyDaemonStarted() {
	n.post(payload{
		title:   "Coffeeman - Started",
		message: "Daemon is up and waiting for tapes",
		tags:    []string{"coffeeman", "daemon", "started"},
	})
}

func (n *ntfyService) NotifyDaemonStopped() {
	n.post(payload{
		title:   "Coffeeman - Stopped",
		message: "Daemon shut down",
		tags:    []string{"coffeeman", "daemon", "stopped"},
	})
}

func (n *ntfyService) NotifyPourStarted(recipe, tag string) {
	if !n.pours {
		return
	}
	n.post(payload{
		title:   "Coffeeman - Pouring",
		message: fmt.Sprintf("Pouring %s (tape %s)", strings.TrimSpace(recipe), strings.TrimSpace(tag)),
		tags:    []string{"coffeeman", "pour", "started"},
	})
}

func (n *ntfyService) NotifyPourCompleted(recipe string) {
	if !n.pours {
		return
	}
	n.post(payload{
		title:   "Coffeeman - Drink Ready",
		message: fmt.Sprintf("%s is ready", strings.TrimSpace(recipe)),
		tags:    []string{"coffeeman", "pour", "completed"},
	})
}

func (n *ntfyService) NotifyPourFailed(recipe, fault string) {
	if !n.errors {
		return
	}
	n.post(payload{
		title:    "Coffeeman - Pour Failed",
		message:  fmt.Sprintf("Pour of %s aborted: %s", strings.TrimSpace(recipe), fault),
		tags:     []string{"coffeeman", "pour", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyFault(fault string) {
	if !n.errors {
		return
	}
	n.post(payload{
		title:    "Coffeeman - Error",
		message:  fmt.Sprintf("Machine locked in error state: %s. Operator reset required.", fault),
		tags:     []string{"coffeeman", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyOperatorReset() {
	if !n.errors {
		return
	}
	n.post(payload{
		title:   "Coffeeman - Reset",
		message: "Operator reset, machine is idle again",
		tags:    []string{"coffeeman", "reset"},
	})
}

func (n *ntfyService) NotifyControllerAttached(device string) {
	if !n.hardware {
		return
	}
	n.post(payload{
		title:   "Coffeeman - Controller Attached",
		message: fmt.Sprintf("Motion controller appeared at %s", device),
		tags:    []string{"coffeeman", "hardware", "attached"},
	})
}

func (n *ntfyService) NotifyControllerDetached(device string) {
	if !n.hardware {
		return
	}
	n.post(payload{
		title:    "Coffeeman - Controller Detached",
		message:  fmt.Sprintf("Motion controller at %s disappeared", device),
		tags:     []string{"coffeeman", "hardware", "detached"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Coffeeman - Test",
		message:  "Notification system test",
		tags:     []string{"coffeeman", "test"},
		priority: "low",
	})
}

// post delivers in the background so callers on the pour path never wait on
// the network.
func (n *ntfyService) post(data payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.send(ctx, data); err != nil {
			logging.WarnWithContext(n.logger, "notification delivery failed", "notify_failed",
				logging.String("title", data.title),
				logging.Error(err))
		}
	}()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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

func (noopService) NotifyDaemonStarted()                 {}
func (noopService) NotifyDaemonStopped()                 {}
func (noopService) NotifyPourStarted(string, string)     {}
func (noopService) NotifyPourCompleted(string)           {}
func (noopService) NotifyPourFailed(string, string)      {}
func (noopService) NotifyFault(string)                   {}
func (noopService) NotifyOperatorReset()                 {}
func (noopService) NotifyControllerAttached(string)      {}
func (noopService) NotifyControllerDetached(string)      {}
func (noopService) TestNotification(context.Context) error {
	return nil
}
