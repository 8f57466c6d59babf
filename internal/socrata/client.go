// Package socrata fetches LA City open-data records (permits, inspections,
// code enforcement) for a property address, with per-dataset failure
// isolation and bounded retry.
package socrata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHost    = "data.lacity.org"
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 2

	userAgent = "LAPropertyDataTool/1.0"
)

// ErrMissingToken is returned by NewClient when no app token is configured.
// A missing token is a fatal precondition, not a per-call degradation.
var ErrMissingToken = errors.New("SOCRATA_APP_TOKEN missing; set it in .env")

// DatasetError reports a single dataset request that failed after retries.
type DatasetError struct {
	DatasetID string
	Status    int
	Err       error
}

func (e *DatasetError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s request failed with status %d", e.DatasetID, e.Status)
	}
	return fmt.Sprintf("%s request failed: %v", e.DatasetID, e.Err)
}

func (e *DatasetError) Unwrap() error { return e.Err }

// ZipMode selects how a dataset's zip filter clause is built.
type ZipMode string

const (
	ZipEq         ZipMode = "eq"
	ZipEqNumeric  ZipMode = "eq_numeric"
	ZipLikePrefix ZipMode = "like_prefix"
)

// DatasetSpec describes one Socrata dataset to query.
type DatasetSpec struct {
	DatasetID string
	ZipField  string
	ZipMode   ZipMode
	ResultKey string
}

// DefaultDatasets are the LA City datasets queried for every listing.
var DefaultDatasets = []DatasetSpec{
	{DatasetID: "pi9x-tg5x", ZipField: "zip_code", ZipMode: ZipEq, ResultKey: "permits"},
	{DatasetID: "9w5z-rg2h", ResultKey: "inspections"},
	{DatasetID: "3f9m-afei", ZipField: "zip_code", ZipMode: ZipEqNumeric, ResultKey: "coo"},
	{DatasetID: "u82d-eh7z", ZipField: "zip", ZipMode: ZipLikePrefix, ResultKey: "code_open"},
	{DatasetID: "rken-a55j", ZipField: "zip", ZipMode: ZipLikePrefix, ResultKey: "code_closed"},
}

// BundleQuery echoes the inputs a bundle was built from.
type BundleQuery struct {
	Address string `json:"address"`
	Zip     string `json:"zip,omitempty"`
	Limit   int    `json:"limit"`
}

// Bundle is the best-effort aggregate of all configured dataset queries.
// A dataset that failed has an empty row list and an entry in Errors; rows
// already retrieved from other datasets are never invalidated.
type Bundle struct {
	Query   BundleQuery                 `json:"query"`
	Results map[string][]map[string]any `json:"results"`
	Counts  map[string]int              `json:"counts"`
	Errors  map[string]string           `json:"errors,omitempty"`
}

type Config struct {
	AppToken   string
	Host       string
	Datasets   []DatasetSpec
	Retries    int
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

type Client struct {
	cfg   Config
	log   *zap.SugaredLogger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) (*Client, error) {
	cfg.AppToken = strings.TrimSpace(cfg.AppToken)
	if cfg.AppToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if len(cfg.Datasets) == 0 {
		cfg.Datasets = DefaultDatasets
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Client{cfg: cfg, log: cfg.Logger, sleep: sleepCtx}, nil
}

// FetchAll queries every configured dataset for an address/zip pair. One
// dataset failing never aborts the bundle; its error is recorded under its
// result key and the loop continues.
func (c *Client) FetchAll(ctx context.Context, address, zipCode string, limit int) (Bundle, error) {
	bundle := Bundle{
		Query:   BundleQuery{Address: address, Zip: zipCode, Limit: limit},
		Results: map[string][]map[string]any{},
		Counts:  map[string]int{},
		Errors:  map[string]string{},
	}
	if strings.TrimSpace(address) == "" {
		return bundle, errors.New("address must be provided")
	}
	if limit <= 0 {
		return bundle, errors.New("limit must be positive")
	}

	for _, spec := range c.cfg.Datasets {
		rows, err := c.fetchDataset(ctx, spec, address, zipCode, limit)
		if err != nil {
			c.log.Warnw("socrata dataset failed", "dataset", spec.DatasetID, "key", spec.ResultKey, "err", err)
			bundle.Errors[spec.ResultKey] = err.Error()
			rows = []map[string]any{}
		}
		bundle.Results[spec.ResultKey] = rows
		bundle.Counts[spec.ResultKey] = len(rows)
	}
	return bundle, nil
}

func (c *Client) fetchDataset(ctx context.Context, spec DatasetSpec, address, zipCode string, limit int) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("$limit", fmt.Sprintf("%d", limit))
	params.Set("$q", address)
	if where := buildWhereClause(spec, zipCode); where != "" {
		params.Set("$where", where)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		rows, status, err := c.doRequest(ctx, spec, params)
		if err == nil {
			return rows, nil
		}
		lastErr = err

		if retryableStatus(status) && attempt < c.cfg.Retries {
			sleep := time.Duration(float64(attempt+1) * 1.5 * float64(time.Second))
			c.log.Debugw("retrying socrata dataset", "dataset", spec.DatasetID, "status", status, "sleep", sleep)
			if err := c.sleep(ctx, sleep); err != nil {
				return nil, err
			}
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, spec DatasetSpec, params url.Values) ([]map[string]any, int, error) {
	endpoint := fmt.Sprintf("https://%s/resource/%s.json", c.cfg.Host, spec.DatasetID)

	resp, err := c.getJSON(ctx, endpoint, params, true)
	if err != nil {
		return nil, 0, &DatasetError{DatasetID: spec.DatasetID, Err: err}
	}

	// Some Socrata hosts reject the header token; retry once with the
	// token as a query parameter before treating 403 as permanent.
	if resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		fallback := cloneValues(params)
		fallback.Set("$$app_token", c.cfg.AppToken)
		resp, err = c.getJSON(ctx, endpoint, fallback, false)
		if err != nil {
			return nil, 0, &DatasetError{DatasetID: spec.DatasetID, Err: err}
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, &DatasetError{DatasetID: spec.DatasetID, Status: resp.StatusCode}
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resp.StatusCode, &DatasetError{DatasetID: spec.DatasetID, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return rows, resp.StatusCode, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, tokenHeader bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if tokenHeader {
		req.Header.Set("X-App-Token", c.cfg.AppToken)
	}
	return c.cfg.HTTPClient.Do(req)
}

// buildWhereClause renders the zip filter for a dataset. The numeric mode is
// omitted entirely when the zip is not purely numeric, since an unquoted
// non-numeric literal would be a malformed SoQL clause.
func buildWhereClause(spec DatasetSpec, zipCode string) string {
	if zipCode == "" || spec.ZipField == "" {
		return ""
	}
	escaped := strings.ReplaceAll(zipCode, "'", "''")

	switch spec.ZipMode {
	case ZipEqNumeric:
		if isDigits(escaped) {
			return fmt.Sprintf("%s = %s", spec.ZipField, escaped)
		}
		return ""
	case ZipEq:
		return fmt.Sprintf("%s = '%s'", spec.ZipField, escaped)
	default:
		return fmt.Sprintf("%s like '%s%%'", spec.ZipField, escaped)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
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

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
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
