package serper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastClient(srv *httptest.Server, key string) *Client {
	c := NewClient(Config{APIKey: key, Endpoint: srv.URL, HTTPClient: srv.Client()})
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestSearchMissingKey(t *testing.T) {
	c := NewClient(Config{})
	resp := c.Search(context.Background(), "los angeles commercial real estate", 8)
	if resp.Note != NoteMissingKey {
		t.Fatalf("note = %q, want %q", resp.Note, NoteMissingKey)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(resp.Items))
	}
}

func TestSearchNormalizesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"news":[
			{"title":"Zoning update","publishedDate":"2026-05-01","source":"LA Times","link":"http://x","description":"council vote"},
			{"title":"Permit surge","date":"2026-04-20","source":"Curbed","snippet":"filings up"}
		]}`))
	}))
	defer srv.Close()

	resp := fastClient(srv, "key").Search(context.Background(), "q", 8)
	if resp.Note != "" {
		t.Fatalf("unexpected note: %q", resp.Note)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
	if resp.Items[0].Date != "2026-05-01" || resp.Items[0].Snippet != "council vote" {
		t.Fatalf("fallback fields not normalized: %+v", resp.Items[0])
	}
	if resp.Items[1].Date != "2026-04-20" || resp.Items[1].Snippet != "filings up" {
		t.Fatalf("primary fields not kept: %+v", resp.Items[1])
	}
}

func TestSearchRetriesTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"news":[{"title":"ok"}]}`))
	}))
	defer srv.Close()

	resp := fastClient(srv, "key").Search(context.Background(), "q", 4)
	if resp.Note != "" || len(resp.Items) != 1 {
		t.Fatalf("expected success after retries, got %+v", resp)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestSearchPermanentErrorNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	resp := fastClient(srv, "key").Search(context.Background(), "q", 4)
	if resp.Note != "Serper error 403" {
		t.Fatalf("note = %q, want Serper error 403", resp.Note)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("403 must not be retried, got %d calls", calls)
	}
}

func TestSearchExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp := fastClient(srv, "key").Search(context.Background(), "q", 4)
	if resp.Note != "Serper error 503" {
		t.Fatalf("note = %q, want Serper error 503", resp.Note)
	}
	if len(resp.Items) != 0 {
		t.Fatal("expected no items")
	}
}
