package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

type captureServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []capturedRequest
}

func newCaptureServer(t *testing.T) *captureServer {
	t.Helper()
	cs := &captureServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		cs.mu.Lock()
		cs.requests = append(cs.requests, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		cs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *captureServer) await(t *testing.T, count int) []capturedRequest {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cs.mu.Lock()
		n := len(cs.requests)
		cs.mu.Unlock()
		if n >= count {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.requests) < count {
		t.Fatalf("received %d requests, want %d", len(cs.requests), count)
	}
	return append([]capturedRequest(nil), cs.requests...)
}

// byTitle finds a captured request regardless of arrival order; deliveries
// run on independent goroutines.
func byTitle(t *testing.T, requests []capturedRequest, title string) capturedRequest {
	t.Helper()
	for _, req := range requests {
		if req.title == title {
			return req
		}
	}
	t.Fatalf("no request with title %q captured", title)
	return capturedRequest{}
}

func (cs *captureServer) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.requests)
}

func testConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Pours = true
	cfg.Notifications.Errors = true
	cfg.Notifications.Hardware = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg, logging.NewNop())
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop service to return nil, got %v", err)
	}
}

func TestPourNotificationsFormatted(t *testing.T) {
	server := newCaptureServer(t)
	svc := notifications.NewService(testConfig(server.URL), logging.NewNop())

	svc.NotifyPourStarted("Margarita", "DEADBEEF")
	svc.NotifyPourCompleted("Margarita")

	requests := server.await(t, 2)
	started := byTitle(t, requests, "Coffeeman - Pouring")
	if started.body != "Pouring Margarita (tape DEADBEEF)" {
		t.Errorf("body = %q", started.body)
	}
	ready := byTitle(t, requests, "Coffeeman - Drink Ready")
	if ready.body != "Margarita is ready" {
		t.Errorf("body = %q", ready.body)
	}
}

func TestFaultNotificationIsHighPriority(t *testing.T) {
	server := newCaptureServer(t)
	svc := notifications.NewService(testConfig(server.URL), logging.NewNop())

	svc.NotifyFault("motion_timeout")

	requests := server.await(t, 1)
	if requests[0].priority != "high" {
		t.Errorf("priority = %q, want high", requests[0].priority)
	}
	if requests[0].tags != "coffeeman,error,alert" {
		t.Errorf("tags = %q", requests[0].tags)
	}
}

func TestCategoryGatesSuppressDelivery(t *testing.T) {
	server := newCaptureServer(t)
	cfg := testConfig(server.URL)
	cfg.Notifications.Pours = false
	cfg.Notifications.Errors = false
	cfg.Notifications.Hardware = false
	svc := notifications.NewService(cfg, logging.NewNop())

	svc.NotifyPourStarted("Margarita", "DEADBEEF")
	svc.NotifyPourFailed("Margarita", "motion_timeout")
	svc.NotifyFault("motion_timeout")
	svc.NotifyControllerDetached("/dev/ttyUSB0")

	time.Sleep(50 * time.Millisecond)
	if n := server.count(); n != 0 {
		t.Fatalf("received %d requests for gated categories, want 0", n)
	}
}

func TestTestNotificationSynchronous(t *testing.T) {
	server := newCaptureServer(t)
	svc := notifications.NewService(testConfig(server.URL), logging.NewNop())

	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if n := server.count(); n != 1 {
		t.Fatalf("received %d requests, want 1", n)
	}
}

func TestTestNotificationSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()
	svc := notifications.NewService(testConfig(server.URL), logging.NewNop())

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from 403 response")
	}
}
