// Package notify posts operational events to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed  = 15158332 // 0xE74C3C
	colorBlue = 3447003  // 0x3498DB

	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3

	maxListedFailures = 10
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// Failure is one hero that could not be refreshed
type Failure struct {
	HeroID int
	Error  string
}

// NewPatchChangedPayload announces a new game patch
func NewPatchChangedPayload(previous, current, publishedAt string, at time.Time) WebhookPayload {
	if previous == "" {
		previous = "unknown"
	}
	if publishedAt == "" {
		publishedAt = "n/a"
	}
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "New patch detected",
				Color: colorBlue,
				Fields: []EmbedField{
					{Name: "Previous", Value: previous, Inline: true},
					{Name: "Current", Value: current, Inline: true},
					{Name: "Published", Value: publishedAt, Inline: true},
				},
				Footer:    &EmbedFooter{Text: "Hero meta will refresh on the next hot hero run"},
				Timestamp: at.UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewHotRefreshFailedPayload reports heroes the batch refresh could not update
func NewHotRefreshFailedPayload(failures []Failure, total int, at time.Time) WebhookPayload {
	lines := make([]string, 0, maxListedFailures+1)
	for i, f := range failures {
		if i == maxListedFailures {
			lines = append(lines, fmt.Sprintf("... and %d more", len(failures)-maxListedFailures))
			break
		}
		lines = append(lines, fmt.Sprintf("hero %d: %s", f.HeroID, truncate(f.Error, 120)))
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:       "Hot hero refresh failures",
				Description: strings.Join(lines, "\n"),
				Color:       colorRed,
				Fields: []EmbedField{
					{Name: "Failed", Value: strconv.Itoa(len(failures)), Inline: true},
					{Name: "Total", Value: strconv.Itoa(total), Inline: true},
				},
				Timestamp: at.UTC().Format(time.RFC3339),
			},
		},
	}
}

// WebhookClient sends notifications to a Discord webhook. A client without
// a URL silently drops every notification.
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// Enabled reports whether a webhook URL is configured
func (c *WebhookClient) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

// PatchChanged sends a patch change notification
func (c *WebhookClient) PatchChanged(ctx context.Context, previous, current, publishedAt string) error {
	return c.sendPayload(ctx, NewPatchChangedPayload(previous, current, publishedAt, time.Now()))
}

// HotRefreshFailed sends a summary of failed hero refreshes
func (c *WebhookClient) HotRefreshFailed(ctx context.Context, failures []Failure, total int) error {
	if len(failures) == 0 {
		return nil
	}
	return c.sendPayload(ctx, NewHotRefreshFailedPayload(failures, total, time.Now()))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				waitDuration = time.Duration(seconds) * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
