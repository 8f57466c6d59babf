// Package loopnet implements the listing source against the LoopNet
// RapidAPI. API and transport failures surface as a typed *APIError so
// callers can tell "the search failed" from "the search found nothing".
package loopnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/nivhenn/property-agency/internal/property"
)

const (
	DefaultBaseURL = "https://loopnet-api.p.rapidapi.com"
	DefaultHost    = "loopnet-api.p.rapidapi.com"
	DefaultTimeout = 30 * time.Second

	findCityPath = "/loopnet/helper/findCity"
	searchPath   = "/loopnet/sale/advanceSearch"

	maxAttempts = 3
)

// ErrMissingAPIKey is returned by NewClient when no RapidAPI key is
// configured.
var ErrMissingAPIKey = errors.New("RAPIDAPI_KEY must be set in environment variables")

// APIError is the typed failure for LoopNet requests, distinct from a
// successful search with zero results.
type APIError struct {
	Status int
	Msg    string
	Err    error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("LoopNet API error %d: %s", e.Status, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("LoopNet API error: %v", e.Err)
	}
	return "LoopNet API error: " + e.Msg
}

func (e *APIError) Unwrap() error { return e.Err }

type Config struct {
	APIKey     string
	BaseURL    string
	Host       string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

type Client struct {
	cfg   Config
	log   *zap.SugaredLogger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" || cfg.APIKey == "__SET_ME__" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Client{cfg: cfg, log: cfg.Logger, sleep: sleepCtx}, nil
}

// ResolveCityID resolves a city name to a LoopNet location id plus its
// display name, preferring an exact prefix match over the first result.
func (c *Client) ResolveCityID(ctx context.Context, cityName string) (string, string, error) {
	payload := map[string]any{"keywords": cityName}
	data, err := c.post(ctx, findCityPath, payload)
	if err != nil {
		return "", "", err
	}

	results, _ := data["data"].([]any)
	if len(results) == 0 {
		return "", "", &APIError{Msg: fmt.Sprintf("no city results found for %q", cityName)}
	}

	var best map[string]any
	for _, raw := range results {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		display := cast.ToString(m["display"])
		if strings.HasPrefix(strings.ToLower(display), strings.ToLower(cityName)) {
			best = m
			break
		}
	}
	if best == nil {
		best, _ = results[0].(map[string]any)
	}

	locationID := cast.ToString(best["id"])
	if locationID == "" {
		return "", "", &APIError{Msg: fmt.Sprintf("could not extract location ID for %q", cityName)}
	}
	return locationID, cast.ToString(best["display"]), nil
}

// SearchProperties runs an advanced sale search. When cityName is given it
// is resolved to a location id first, overriding params.LocationID. Zero
// results is a valid outcome and returns an empty, non-nil slice.
func (c *Client) SearchProperties(ctx context.Context, params property.SearchParams, cityName string) ([]property.Listing, error) {
	if cityName != "" {
		locationID, display, err := c.ResolveCityID(ctx, cityName)
		if err != nil {
			return nil, err
		}
		c.log.Infow("resolved city", "city", cityName, "location_id", locationID, "display", display)
		params.LocationID = locationID
		params.LocationType = "city"
	}
	if params.LocationID == "" {
		return nil, &APIError{Msg: "locationId is required (provide locationId or city name)"}
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}

	blob, _ := json.Marshal(params)
	payload := map[string]any{}
	_ = json.Unmarshal(blob, &payload)

	data, err := c.post(ctx, searchPath, payload)
	if err != nil {
		return nil, err
	}
	return parseListings(data), nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	body, _ := json.Marshal(payload)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, status, err := c.postOnce(ctx, path, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if retryable(status, err) && attempt < maxAttempts {
			sleep := time.Duration(attempt) * time.Second
			c.log.Debugw("retrying loopnet request", "path", path, "status", status, "attempt", attempt)
			if serr := c.sleep(ctx, sleep); serr != nil {
				return nil, &APIError{Err: serr}
			}
			continue
		}
		break
	}
	return nil, lastErr
}

func (c *Client) postOnce(ctx context.Context, path string, body []byte) (map[string]any, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, &APIError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rapidapi-host", c.cfg.Host)
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, &APIError{Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, resp.StatusCode, &APIError{Status: resp.StatusCode, Msg: "rate limit exceeded"}
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(raw))}
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, resp.StatusCode, &APIError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return data, resp.StatusCode, nil
}

func retryable(status int, err error) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == 0 && apiErr.Err != nil {
		// transport-level failure (timeout, connection reset)
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
