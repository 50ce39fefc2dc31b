package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrExhausted means the attempt budget ran out before a terminal status.
var ErrExhausted = errors.New("status polling attempts exhausted")

// Poller reconciles the browser's return from the payment gateway with the
// webhook channel. The two race with no ordering guarantee, so the only safe
// move after a redirect is to poll the order status until it turns terminal.
type Poller struct {
	BaseURL     string
	Interval    time.Duration
	ErrBackoff  time.Duration
	MaxAttempts int
	Client      *http.Client
}

func New(baseURL string) *Poller {
	return &Poller{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Interval:    2 * time.Second,
		ErrBackoff:  2500 * time.Millisecond,
		MaxAttempts: 90,
		Client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type statusResponse struct {
	OK     bool   `json:"ok"`
	Exists bool   `json:"exists"`
	Status string `json:"status"`
}

// Run polls until the order reaches a terminal status, the attempt budget is
// spent, or ctx is cancelled. A "failure" return status from the gateway
// redirect is terminal immediately; no polling happens.
func (p *Poller) Run(ctx context.Context, orderID, returnStatus string) (string, error) {
	if returnStatus == "failure" {
		return "failure", nil
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		status, err := p.fetchStatus(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Printf("poll attempt=%d order=%s error: %v", attempt, orderID, err)
			if err := sleep(ctx, p.ErrBackoff); err != nil {
				return "", err
			}
			continue
		}

		log.Printf("poll attempt=%d order=%s status=%s", attempt, orderID, status)
		if isTerminal(status) {
			return status, nil
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return "", err
		}
	}
	return "", ErrExhausted
}

func (p *Poller) fetchStatus(ctx context.Context, orderID string) (string, error) {
	endpoint := p.BaseURL + "/api/order/status?orderId=" + url.QueryEscape(orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status endpoint http %d", resp.StatusCode)
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func isTerminal(status string) bool {
	switch status {
	case "paid", "rejected", "error", "failed":
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
