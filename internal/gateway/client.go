package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.mercadopago.com"

// UpstreamError carries the provider's HTTP status and raw body for
// diagnostics. The caller decides whether the failure is retryable; this
// client never retries.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gateway http status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gateway http status %d", e.StatusCode)
}

// API is the provider surface the services depend on.
type API interface {
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error)
}

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchPayment reads the authoritative payment record. The webhook body is
// only a pointer; financial truth always comes from this lookup.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	raw, err := c.doJSON(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment)
	if err != nil {
		return nil, err
	}
	payment.Raw = raw
	return &payment, nil
}

func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	var pref Preference
	raw, err := c.doJSON(ctx, http.MethodPost, "/checkout/preferences", req, &pref)
	if err != nil {
		return nil, err
	}
	pref.Raw = raw
	return &pref, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) (json.RawMessage, error) {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// Provider types

type Payment struct {
	ID                json.Number    `json:"id"`
	Status            string         `json:"status"`
	StatusDetail      string         `json:"status_detail"`
	ExternalReference string         `json:"external_reference"`
	TransactionAmount float64        `json:"transaction_amount"`
	CurrencyID        string         `json:"currency_id"`
	Payer             PaymentPayer   `json:"payer"`
	Metadata          map[string]any `json:"metadata"`

	Raw json.RawMessage `json:"-"`
}

type PaymentPayer struct {
	Email string `json:"email"`
}

type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	Payer             *PreferencePayer `json:"payer,omitempty"`
	NotificationURL   string           `json:"notification_url"`
	BackURLs          BackURLs         `json:"back_urls"`
	ExternalReference string           `json:"external_reference"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
}

type PreferenceItem struct {
	Title      string  `json:"title"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
}

type PreferencePayer struct {
	Email string `json:"email"`
}

type BackURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending"`
	Failure string `json:"failure"`
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`

	Raw json.RawMessage `json:"-"`
}
