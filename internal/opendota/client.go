package opendota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"metabuild/internal/metrics"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the public OpenDota API root
	DefaultBaseURL = "https://api.opendota.com/api"

	defaultTimeout = 10 * time.Second

	// maxErrorBody bounds how much of a failed response is quoted in errors
	maxErrorBody = 200
)

// ErrUnavailable marks every failure to obtain usable data from the provider:
// network errors, timeouts, non-2xx responses, malformed payloads, open breaker.
var ErrUnavailable = errors.New("statistics provider unavailable")

// Client fetches item and hero statistics from OpenDota
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new OpenDota client with the given options
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchItemConstants returns the item key -> id table.
// Entries without an integer id are skipped.
func (c *Client) FetchItemConstants(ctx context.Context) (ItemConstants, error) {
	body, err := c.get(ctx, "constants_items", "/constants/items")
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: item constants payload is not an object", ErrUnavailable)
	}

	out := make(ItemConstants)
	root.ForEach(func(key, value gjson.Result) bool {
		id := value.Get("id")
		if id.Type != gjson.Number || id.Num != math.Trunc(id.Num) {
			return true
		}
		out[key.String()] = int(id.Int())
		return true
	})

	return out, nil
}

// FetchHeroItemPopularity returns per-stage item popularity for a hero
func (c *Client) FetchHeroItemPopularity(ctx context.Context, heroID int) (Popularity, error) {
	body, err := c.get(ctx, "hero_item_popularity", "/heroes/"+strconv.Itoa(heroID)+"/itemPopularity")
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: popularity payload for hero %d is not an object", ErrUnavailable, heroID)
	}

	out := make(Popularity, len(stageKeys))
	for stage, key := range stageKeys {
		scores := make(map[string]float64)
		root.Get(key).ForEach(func(itemID, score gjson.Result) bool {
			if score.Type != gjson.Number || math.IsNaN(score.Num) || math.IsInf(score.Num, 0) {
				return true
			}
			scores[itemID.String()] = score.Num
			return true
		})
		out[stage] = scores
	}

	return out, nil
}

// FetchHeroConstants returns every hero the provider knows about
func (c *Client) FetchHeroConstants(ctx context.Context) ([]HeroConstant, error) {
	body, err := c.get(ctx, "constants_heroes", "/constants/heroes")
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: hero constants payload is not an object", ErrUnavailable)
	}

	var heroes []HeroConstant
	root.ForEach(func(key, value gjson.Result) bool {
		id, err := strconv.Atoi(key.String())
		if err != nil {
			return true
		}
		heroes = append(heroes, HeroConstant{
			ID:            id,
			Name:          value.Get("name").String(),
			LocalizedName: value.Get("localized_name").String(),
		})
		return true
	})

	return heroes, nil
}

// get performs a GET against the API and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(endpoint, 0, started)
		return nil, fmt.Errorf("%w: request failed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.RecordProviderRequest(endpoint, resp.StatusCode, started)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: OpenDota request failed (%d): %s", ErrUnavailable, resp.StatusCode, snippet)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON from %s", ErrUnavailable, path)
	}

	return body, nil
}
