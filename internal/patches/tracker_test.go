package patches

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"metabuild/internal/store"
)

type memStore struct {
	row *store.PatchState
}

func (m *memStore) GetPatchState(ctx context.Context) (*store.PatchState, error) {
	if m.row == nil {
		return nil, store.ErrNotFound
	}
	row := *m.row
	return &row, nil
}

func (m *memStore) PutPatchState(ctx context.Context, st store.PatchState) error {
	m.row = &st
	return nil
}

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) PatchChanged(ctx context.Context, previous, current, publishedAt string) error {
	r.calls = append(r.calls, previous+"->"+current)
	return nil
}

// TestParse tests version extraction and its fallbacks
func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantID    string
		published string
	}{
		{"patch prefix", `<h1>Gameplay   Patch
			7.39c</h1><time datetime="2026-02-10T00:00:00Z">`, "7.39c", "2026-02-10T00:00:00Z"},
		{"bare version", `<div>Version 7.40 is live</div>`, "7.40", ""},
		{"patch wins over earlier version", `<p>1.2</p><h1>PATCH 7.38</h1>`, "7.38", ""},
		{"nothing", `<html></html>`, UnknownPatch, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.html)
			if got.PatchID != tt.wantID {
				t.Errorf("PatchID = %q, want %q", got.PatchID, tt.wantID)
			}
			if got.PublishedAt != tt.published {
				t.Errorf("PublishedAt = %q, want %q", got.PublishedAt, tt.published)
			}
			if strings.Contains(got.RawText, "\n") {
				t.Error("expected whitespace to be collapsed")
			}
		})
	}

	long := Parse(strings.Repeat("a ", 5000))
	if len(long.RawText) != maxRawText {
		t.Errorf("expected raw text capped at %d, got %d", maxRawText, len(long.RawText))
	}
}

// TestRefresh_DetectsChange tests change detection and notification
func TestRefresh_DetectsChange(t *testing.T) {
	page := `<h1>Patch 7.40</h1>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	st := &memStore{row: &store.PatchState{PatchID: UnknownPatch}}
	n := &recordingNotifier{}
	tracker := NewTracker(st, WithURL(server.URL), WithNotifier(n))

	state, changed, err := tracker.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !changed || state.PatchID != "7.40" {
		t.Errorf("expected change to 7.40, got %+v changed=%v", state, changed)
	}

	_, changed, err = tracker.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if changed {
		t.Error("expected no change on second refresh")
	}

	if len(n.calls) != 1 || n.calls[0] != "unknown->7.40" {
		t.Errorf("unexpected notifications: %v", n.calls)
	}

	current, err := tracker.Current(context.Background())
	if err != nil || current.PatchID != "7.40" {
		t.Errorf("unexpected current state: %+v, %v", current, err)
	}
}

// TestRefresh_UpstreamError tests that a failed fetch leaves state untouched
func TestRefresh_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	st := &memStore{}
	tracker := NewTracker(st, WithURL(server.URL))

	if _, _, err := tracker.Refresh(context.Background()); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected 503 error, got %v", err)
	}
	if st.row != nil {
		t.Error("expected nothing stored after a failed fetch")
	}

	current, err := tracker.Current(context.Background())
	if err != nil || current.PatchID != UnknownPatch {
		t.Errorf("expected unknown patch, got %+v, %v", current, err)
	}
}
