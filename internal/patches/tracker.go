// Package patches tracks the current game patch by scraping the public
// patch notes page.
package patches

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"metabuild/internal/logging"
	"metabuild/internal/metrics"
	"metabuild/internal/store"
)

const (
	// DefaultURL is the public patch notes page
	DefaultURL = "https://www.dota2.com/patches"

	// UnknownPatch is stored when no version could be extracted
	UnknownPatch = "unknown"

	maxRawText   = 4000
	maxErrorBody = 200
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	patchRe      = regexp.MustCompile(`(?i)Patch\s+([0-9]+\.[0-9]+[a-z]?)`)
	versionRe    = regexp.MustCompile(`(?i)\b([0-9]+\.[0-9]+[a-z]?)\b`)
	datetimeRe   = regexp.MustCompile(`(?i)datetime="([^"]+)"`)
)

// State is the tracked patch
type State struct {
	PatchID     string    `json:"current_patch_id"`
	UpdatedAt   time.Time `json:"updated_at"`
	PublishedAt string    `json:"published_at,omitempty"`
}

// Store persists the singleton patch row
type Store interface {
	GetPatchState(ctx context.Context) (*store.PatchState, error)
	PutPatchState(ctx context.Context, st store.PatchState) error
}

// Notifier is told about patch changes
type Notifier interface {
	PatchChanged(ctx context.Context, previous, current, publishedAt string) error
}

// Tracker refreshes and reads the current patch
type Tracker struct {
	store      Store
	notifier   Notifier
	httpClient *http.Client
	url        string
	now        func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithURL overrides the patch notes page
func WithURL(url string) Option {
	return func(t *Tracker) {
		if url != "" {
			t.url = url
		}
	}
}

// WithNotifier reports changes to n
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) {
		t.notifier = n
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Tracker) {
		t.httpClient = hc
	}
}

// NewTracker creates a tracker over st
func NewTracker(st Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:      st,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        DefaultURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Parsed is what could be extracted from the patch page
type Parsed struct {
	PatchID     string
	PublishedAt string
	RawText     string
}

// Parse extracts the patch version and publication time from the page
func Parse(html string) Parsed {
	normalized := whitespaceRe.ReplaceAllString(html, " ")

	p := Parsed{PatchID: UnknownPatch}
	if m := patchRe.FindStringSubmatch(normalized); m != nil {
		p.PatchID = m[1]
	} else if m := versionRe.FindStringSubmatch(normalized); m != nil {
		p.PatchID = m[1]
	}
	if m := datetimeRe.FindStringSubmatch(normalized); m != nil {
		p.PublishedAt = m[1]
	}

	p.RawText = normalized
	if len(p.RawText) > maxRawText {
		p.RawText = p.RawText[:maxRawText]
	}
	return p
}

// Current returns the stored patch. A missing row yields the unknown patch.
func (t *Tracker) Current(ctx context.Context) (State, error) {
	row, err := t.store.GetPatchState(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return State{PatchID: UnknownPatch}, nil
	}
	if err != nil {
		return State{}, err
	}
	return State{PatchID: row.PatchID, UpdatedAt: row.UpdatedAt, PublishedAt: row.PublishedAt}, nil
}

// Refresh scrapes the patch page and stores the result. changed is true when
// the stored patch id differs from the scraped one or nothing was stored.
func (t *Tracker) Refresh(ctx context.Context) (State, bool, error) {
	previous, err := t.store.GetPatchState(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return State{}, false, err
	}

	html, err := t.fetch(ctx)
	if err != nil {
		return State{}, false, err
	}
	parsed := Parse(html)

	row := store.PatchState{
		PatchID:     parsed.PatchID,
		UpdatedAt:   t.now().UTC(),
		PublishedAt: parsed.PublishedAt,
		RawText:     parsed.RawText,
	}
	if err := t.store.PutPatchState(ctx, row); err != nil {
		return State{}, false, err
	}

	changed := previous == nil || previous.PatchID != parsed.PatchID
	state := State{PatchID: row.PatchID, UpdatedAt: row.UpdatedAt, PublishedAt: row.PublishedAt}

	if changed {
		prevID := ""
		if previous != nil {
			prevID = previous.PatchID
		}
		metrics.PatchChanges.Inc()
		logging.Info().Str("previous", prevID).Str("current", state.PatchID).Msg("[Patches] Patch changed")

		if t.notifier != nil {
			if err := t.notifier.PatchChanged(ctx, prevID, state.PatchID, state.PublishedAt); err != nil {
				logging.Warn().Err(err).Msg("[Patches] Failed to send patch notification")
			}
		}
	}

	return state, changed, nil
}

func (t *Tracker) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch patch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read patch page: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", fmt.Errorf("patch fetch failed (%d): %s", resp.StatusCode, snippet)
	}

	return string(body), nil
}
