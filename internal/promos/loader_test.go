package promos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

const promosPayload = `{"promos":[{"id":"launch","type":"percent","activeFrom":"2026-01-01","activeTo":"2026-12-31","discountPercent":10}]}`

func TestLoaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promos.json")
	if err := os.WriteFile(path, []byte(promosPayload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l := NewLoader(path, time.Minute)
	got, err := l.Promos(context.Background())
	if err != nil {
		t.Fatalf("promos: %v", err)
	}
	if len(got) != 1 || got[0].ID != "launch" {
		t.Fatalf("promos = %+v", got)
	}
}

func TestLoaderCachesWithinTTL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(promosPayload))
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, time.Minute)
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := l.Promos(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	now = now.Add(59 * time.Second)
	if _, err := l.Promos(ctx); err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}

	now = now.Add(2 * time.Second)
	if _, err := l.Promos(ctx); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits after ttl = %d", hits.Load())
	}
}

func TestLoaderInvalidateForcesRefetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(promosPayload))
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, time.Hour)
	ctx := context.Background()
	if _, err := l.Promos(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	l.Invalidate()
	if _, err := l.Promos(ctx); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestLoaderServesStaleOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(promosPayload))
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, time.Minute)
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := l.Promos(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	fail.Store(true)
	now = now.Add(2 * time.Minute)
	got, err := l.Promos(ctx)
	if err != nil {
		t.Fatalf("stale read should not fail: %v", err)
	}
	if len(got) != 1 || got[0].ID != "launch" {
		t.Fatalf("stale promos = %+v", got)
	}
}

func TestLoaderErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, time.Minute)
	if _, err := l.Promos(context.Background()); err == nil {
		t.Fatal("expected error with no cache to fall back to")
	}
}
