package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

// TestPatchChanged_PostsEmbed tests that a patch change is posted as an embed
func TestPatchChanged_PostsEmbed(t *testing.T) {
	var got WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	if err := client.PatchChanged(context.Background(), "7.39c", "7.40", ""); err != nil {
		t.Fatalf("PatchChanged failed: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(got.Embeds))
	}
	fields := got.Embeds[0].Fields
	if fields[0].Value != "7.39c" || fields[1].Value != "7.40" || fields[2].Value != "n/a" {
		t.Errorf("unexpected fields: %+v", fields)
	}
}

// TestSendPayload_RetriesOnRateLimit tests the Retry-After handling
func TestSendPayload_RetriesOnRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	err := client.HotRefreshFailed(context.Background(), []Failure{{HeroID: 1, Error: "boom"}}, 3)
	if err != nil {
		t.Fatalf("HotRefreshFailed failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

// TestSendPayload_ErrorStatus tests that other statuses are reported
func TestSendPayload_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewWebhookClient(server.URL).PatchChanged(context.Background(), "", "7.40", "")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status 400 error, got %v", err)
	}
}

// TestDisabledClient tests that an empty URL sends nothing
func TestDisabledClient(t *testing.T) {
	client := NewWebhookClient("")
	if client.Enabled() {
		t.Error("expected client to be disabled")
	}
	if err := client.PatchChanged(context.Background(), "a", "b", ""); err != nil {
		t.Errorf("expected no error from disabled client, got %v", err)
	}
}

// TestNewHotRefreshFailedPayload_Truncates tests the failure list cap
func TestNewHotRefreshFailedPayload_Truncates(t *testing.T) {
	failures := make([]Failure, 15)
	for i := range failures {
		failures[i] = Failure{HeroID: i + 1, Error: strings.Repeat("x", 200)}
	}

	payload := NewHotRefreshFailedPayload(failures, 20, time.Now())
	desc := payload.Embeds[0].Description
	if !strings.Contains(desc, "... and 5 more") {
		t.Errorf("expected overflow line, got %q", desc)
	}
	if strings.Count(desc, "\n") != maxListedFailures {
		t.Errorf("expected %d lines, got %q", maxListedFailures+1, desc)
	}
}
