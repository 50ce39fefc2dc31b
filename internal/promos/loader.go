package promos

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Loader fetches the promos payload from a local file or an HTTP URL and
// caches it for a bounded TTL. The clock is injectable so activation-window
// boundaries are testable; Invalidate forces a refetch on the next read.
type Loader struct {
	Source string
	TTL    time.Duration
	Client *http.Client
	Now    func() time.Time

	mu        sync.Mutex
	cached    []Promo
	hasCache  bool
	fetchedAt time.Time
}

func NewLoader(source string, ttl time.Duration) *Loader {
	return &Loader{
		Source: source,
		TTL:    ttl,
		Client: &http.Client{Timeout: 10 * time.Second},
		Now:    time.Now,
	}
}

// Promos returns the cached payload when fresh, refetching otherwise. On a
// refetch failure a stale cache is served rather than failing checkout.
func (l *Loader) Promos(ctx context.Context) ([]Promo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasCache && l.Now().Sub(l.fetchedAt) < l.TTL {
		return l.cached, nil
	}

	raw, err := l.fetch(ctx)
	if err != nil {
		if l.hasCache {
			log.Printf("[promos] refetch failed, serving stale payload: %v", err)
			return l.cached, nil
		}
		return nil, err
	}

	l.cached = Normalize(raw)
	l.hasCache = true
	l.fetchedAt = l.Now()
	return l.cached, nil
}

func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasCache = false
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if l.Source == "" {
		return nil, fmt.Errorf("promos source not configured")
	}
	if strings.HasPrefix(l.Source, "http://") || strings.HasPrefix(l.Source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.Client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("promos source http status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(l.Source)
}
