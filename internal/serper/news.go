// Package serper wraps the Serper news search API used by the news
// sentiment specialist. A missing API key is reported as a note on the
// response rather than an error, so callers can degrade to a neutral score
// without special-casing construction.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://google.serper.dev/news"
	DefaultTimeout  = 20 * time.Second

	maxAttempts = 3

	// NoteMissingKey is the sentinel the scheduler checks to short-circuit
	// the news specialist when the credential is absent.
	NoteMissingKey = "SERPER_API_KEY missing"
)

type NewsItem struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Source  string `json:"source"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// NewsResponse is always populated: either Items, or an empty item list and
// a Note explaining why.
type NewsResponse struct {
	Items []NewsItem `json:"items"`
	Note  string     `json:"note,omitempty"`
}

type Config struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

type Client struct {
	cfg   Config
	log   *zap.SugaredLogger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Client{cfg: cfg, log: cfg.Logger, sleep: sleepCtx}
}

// Search queries Serper news. It never returns an error: transport and API
// failures are folded into the response note so one flaky news lookup
// cannot fail a whole analysis run.
func (c *Client) Search(ctx context.Context, query string, num int) NewsResponse {
	if c.cfg.APIKey == "" {
		return NewsResponse{Items: []NewsItem{}, Note: NoteMissingKey}
	}
	if num <= 0 {
		num = 8
	}

	payload, _ := json.Marshal(map[string]any{"q": query, "num": num})

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		items, status, err := c.searchOnce(ctx, payload)
		if err == nil {
			return NewsResponse{Items: items}
		}
		if retryableStatus(status) && attempt < maxAttempts {
			sleep := time.Duration(1<<attempt)*time.Second + time.Duration(rand.Int63n(int64(time.Second)))
			c.log.Debugw("retrying serper news", "status", status, "attempt", attempt, "sleep", sleep)
			if serr := c.sleep(ctx, sleep); serr != nil {
				return NewsResponse{Items: []NewsItem{}, Note: serr.Error()}
			}
			continue
		}
		if status > 0 {
			return NewsResponse{Items: []NewsItem{}, Note: fmt.Sprintf("Serper error %d", status)}
		}
		return NewsResponse{Items: []NewsItem{}, Note: err.Error()}
	}
	return NewsResponse{Items: []NewsItem{}, Note: "Unable to fetch Serper news"}
}

func (c *Client) searchOnce(ctx context.Context, payload []byte) ([]NewsItem, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("status code: %d", resp.StatusCode)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("invalid JSON: %w", err)
	}
	return extractItems(parsed), resp.StatusCode, nil
}

// extractItems normalizes the Serper payload, which names its result list
// "news" or "items" depending on endpoint version.
func extractItems(payload map[string]any) []NewsItem {
	candidates, ok := payload["news"].([]any)
	if !ok {
		candidates, _ = payload["items"].([]any)
	}
	items := make([]NewsItem, 0, len(candidates))
	for _, raw := range candidates {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, NewsItem{
			Title:   str(m["title"]),
			Date:    firstStr(m["date"], m["publishedDate"]),
			Source:  str(m["source"]),
			Link:    str(m["link"]),
			Snippet: firstStr(m["snippet"], m["description"]),
		})
	}
	return items
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func firstStr(vals ...any) string {
	for _, v := range vals {
		if s := str(v); s != "" {
			return s
		}
	}
	return ""
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
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
