package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shelfward/internal/config"
	"shelfward/internal/notifications"
)

func newTestConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Batch = true
	cfg.Notifications.Items = true
	cfg.Notifications.Errors = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := newTestConfig("")
	svc := notifications.NewService(cfg)
	if err := svc.NotifyItemCompleted(context.Background(), "Example", ""); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "batch started",
			notify: func(svc notifications.Service) error {
				return svc.NotifyBatchStarted(context.Background(), 3)
			},
			expectTitle:   "Shelfward - Batch Started",
			expectMessage: "Started downloading 3 books",
			expectTags:    "shelfward,batch,started",
		},
		{
			name: "single book batch",
			notify: func(svc notifications.Service) error {
				return svc.NotifyBatchStarted(context.Background(), 1)
			},
			expectTitle:   "Shelfward - Batch Started",
			expectMessage: "Started downloading 1 book",
			expectTags:    "shelfward,batch,started",
		},
		{
			name: "item completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyItemCompleted(context.Background(), "Wizard's First Rule", "Terry Goodkind/Wizard's First Rule.m4b")
			},
			expectTitle:   "Shelfward - Book Ready",
			expectMessage: "📚 Shelved: Wizard's First Rule\nFile: Terry Goodkind/Wizard's First Rule.m4b",
			expectTags:    "shelfward,book,completed",
		},
		{
			name: "item failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyItemFailed(context.Background(), "Wizard's First Rule", errors.New("license denied"))
			},
			expectTitle:    "Shelfward - Book Failed",
			expectMessage:  "❌ Failed: Wizard's First Rule\nlicense denied",
			expectTags:     "shelfward,book,failed",
			expectPriority: "high",
		},
		{
			name: "batch completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyBatchCompleted(context.Background(), 4, 0, 90*time.Second)
			},
			expectTitle:   "Shelfward - Batch Complete",
			expectMessage: "Batch complete: 4 books shelved in 1m30s",
			expectTags:    "shelfward,batch,completed",
		},
		{
			name: "batch completed with failures",
			notify: func(svc notifications.Service) error {
				return svc.NotifyBatchCompleted(context.Background(), 3, 1, 2*time.Minute)
			},
			expectTitle:   "Shelfward - Batch Complete (with errors)",
			expectMessage: "Batch complete: 3 succeeded, 1 failed in 2m0s",
			expectTags:    "shelfward,batch,completed",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("voucher decrypt failed"), "decrypt")
			},
			expectTitle:    "Shelfward - Error",
			expectMessage:  "❌ Error with decrypt: voucher decrypt failed",
			expectTags:     "shelfward,error,alert",
			expectPriority: "high",
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
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			svc := notifications.NewService(newTestConfig(server.URL))
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notify: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", captured.title, tc.expectTitle)
			}
			if captured.body != tc.expectMessage {
				t.Errorf("message = %q, want %q", captured.body, tc.expectMessage)
			}
			if captured.tags != tc.expectTags {
				t.Errorf("tags = %q, want %q", captured.tags, tc.expectTags)
			}
			if captured.priority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", captured.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryFlags(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := newTestConfig(server.URL)
	cfg.Notifications.Items = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(cfg)

	ctx := context.Background()
	if err := svc.NotifyItemCompleted(ctx, "Example", ""); err != nil {
		t.Fatalf("item completed: %v", err)
	}
	if err := svc.NotifyItemFailed(ctx, "Example", errors.New("boom")); err != nil {
		t.Fatalf("item failed: %v", err)
	}
	if requests != 0 {
		t.Fatalf("suppressed categories still sent %d requests", requests)
	}

	if err := svc.NotifyBatchStarted(ctx, 2); err != nil {
		t.Fatalf("batch started: %v", err)
	}
	if requests != 1 {
		t.Fatalf("batch notification count = %d, want 1", requests)
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := notifications.NewService(newTestConfig(server.URL))
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
