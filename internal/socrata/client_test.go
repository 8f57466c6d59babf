package socrata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, srv *httptest.Server, datasets []DatasetSpec) *Client {
	t.Helper()
	c, err := NewClient(Config{
		AppToken:   "token",
		Host:       strings.TrimPrefix(srv.URL, "http://"),
		Datasets:   datasets,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	// Point the client at the plain-HTTP test server.
	c.cfg.HTTPClient = &http.Client{
		Transport: rewriteTransport{base: srv.Client().Transport, target: srv.URL},
		Timeout:   5 * time.Second,
	}
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

// rewriteTransport rewrites https requests to the httptest server.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(rt.target, "http://")
	return rt.base.RoundTrip(req)
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Config{}); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := NewClient(Config{AppToken: "   "}); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken for blank token, got %v", err)
	}
}

func TestBuildWhereClause(t *testing.T) {
	cases := []struct {
		name string
		spec DatasetSpec
		zip  string
		want string
	}{
		{"prefix", DatasetSpec{ZipField: "zip", ZipMode: ZipLikePrefix}, "91403", "zip like '91403%'"},
		{"eq quoted", DatasetSpec{ZipField: "zip_code", ZipMode: ZipEq}, "91403", "zip_code = '91403'"},
		{"eq numeric", DatasetSpec{ZipField: "zip_code", ZipMode: ZipEqNumeric}, "91403", "zip_code = 91403"},
		{"eq numeric non-numeric omitted", DatasetSpec{ZipField: "zip_code", ZipMode: ZipEqNumeric}, "914O3", ""},
		{"no zip", DatasetSpec{ZipField: "zip", ZipMode: ZipLikePrefix}, "", ""},
		{"no field", DatasetSpec{ZipMode: ZipLikePrefix}, "91403", ""},
		{"escapes quotes", DatasetSpec{ZipField: "zip", ZipMode: ZipEq}, "91'403", "zip = '91''403'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := buildWhereClause(tc.spec, tc.zip); got != tc.want {
				t.Fatalf("buildWhereClause = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad-set") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{"permit": "A-1"}})
	}))
	defer srv.Close()

	datasets := []DatasetSpec{
		{DatasetID: "ok-one", ResultKey: "permits"},
		{DatasetID: "ok-two", ResultKey: "inspections"},
		{DatasetID: "ok-three", ResultKey: "coo"},
		{DatasetID: "ok-four", ResultKey: "code_open"},
		{DatasetID: "bad-set", ResultKey: "code_closed"},
	}
	c := testClient(t, srv, datasets)
	c.cfg.Retries = 1

	bundle, err := c.FetchAll(context.Background(), "123 Main St", "90012", 10)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	nonEmpty := 0
	for _, rows := range bundle.Results {
		if len(rows) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty != 4 {
		t.Fatalf("expected 4 non-empty result lists, got %d", nonEmpty)
	}
	if len(bundle.Results["code_closed"]) != 0 {
		t.Fatal("failed dataset should have empty rows")
	}
	if len(bundle.Errors) != 1 {
		t.Fatalf("expected exactly 1 error entry, got %d: %v", len(bundle.Errors), bundle.Errors)
	}
	if _, ok := bundle.Errors["code_closed"]; !ok {
		t.Fatalf("error recorded under wrong key: %v", bundle.Errors)
	}
	if bundle.Counts["permits"] != 1 || bundle.Counts["code_closed"] != 0 {
		t.Fatalf("unexpected counts: %v", bundle.Counts)
	}
}

func TestFetchDatasetRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{"row": "1"}})
	}))
	defer srv.Close()

	c := testClient(t, srv, []DatasetSpec{{DatasetID: "ds", ResultKey: "permits"}})
	bundle, err := c.FetchAll(context.Background(), "123 Main St", "", 5)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(bundle.Errors) != 0 {
		t.Fatalf("expected no errors after retry, got %v", bundle.Errors)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestFetchDatasetPermanentErrorNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv, []DatasetSpec{{DatasetID: "ds", ResultKey: "permits"}})
	bundle, err := c.FetchAll(context.Background(), "123 Main St", "", 5)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(bundle.Errors) != 1 {
		t.Fatalf("expected error entry, got %v", bundle.Errors)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("400 must not be retried, got %d calls", calls)
	}
}

func TestFetchDataset403TokenFallback(t *testing.T) {
	var headerCalls, paramCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$$app_token") == "token" {
			atomic.AddInt32(&paramCalls, 1)
			json.NewEncoder(w).Encode([]map[string]any{{"row": "1"}})
			return
		}
		atomic.AddInt32(&headerCalls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(t, srv, []DatasetSpec{{DatasetID: "ds", ResultKey: "permits"}})
	bundle, err := c.FetchAll(context.Background(), "123 Main St", "", 5)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(bundle.Errors) != 0 {
		t.Fatalf("expected token fallback to succeed, got %v", bundle.Errors)
	}
	if headerCalls != 1 || paramCalls != 1 {
		t.Fatalf("expected 1 header call and 1 param call, got %d/%d", headerCalls, paramCalls)
	}
}

func TestFetchAllValidatesInput(t *testing.T) {
	c, err := NewClient(Config{AppToken: "token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.FetchAll(context.Background(), "", "90012", 10); err == nil {
		t.Fatal("expected error for empty address")
	}
	if _, err := c.FetchAll(context.Background(), "123 Main St", "", 0); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}
