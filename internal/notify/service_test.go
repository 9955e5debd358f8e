package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docbridge/internal/config"
	"docbridge/internal/notify"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "   "
	svc := notify.NewService(&cfg)
	if err := svc.RunFailed(context.Background(), "discover", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestRunFailedPostsToTopic(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5

	svc := notify.NewService(&cfg)
	if err := svc.RunFailed(context.Background(), "poll", errors.New("database is locked")); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}

	if captured.title != "Docbridge - Run Failed" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "❌ poll run failed: database is locked" {
		t.Fatalf("unexpected message %q", captured.body)
	}
	if captured.tags != "docbridge,poll,failed" {
		t.Fatalf("unexpected tags %q", captured.tags)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}
}

func TestTestNotificationUsesLowPriority(t *testing.T) {
	var priority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		priority = r.Header.Get("Priority")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notify.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if priority != "low" {
		t.Fatalf("expected low priority, got %q", priority)
	}
}

func TestSendSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notify.NewService(&cfg)
	err := svc.RunFailed(context.Background(), "submit", errors.New("boom"))
	if err == nil {
		t.Fatal("expected error from ntfy failure")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "topic quota exceeded") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}
