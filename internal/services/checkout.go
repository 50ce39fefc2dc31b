package services

import (
	"context"
	"errors"
	"log"
	"math"
	"net/url"
	"strings"

	"coursepay/internal/gateway"
	"coursepay/internal/models"
	"coursepay/internal/store"
)

// CheckoutService creates provider checkout preferences and seeds the pending
// order record the webhook later reconciles against.
type CheckoutService struct {
	Store       *store.Store
	Gateway     gateway.API
	AccessToken string
	PublicURL   string
	Currency    string
}

// InputItem is a caller-supplied cart line. Quantity arrives as a float and
// is floored; fractional quantities below 1 are rejected.
type InputItem struct {
	Title      string  `json:"title"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   float64 `json:"quantity"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

type CreatePreferenceInput struct {
	Items             []InputItem
	Email             string
	Metadata          map[string]any
	ExternalReference string

	// RequestOrigin is the scheme://host derived from the incoming request.
	// Explicit PublicURL config wins; headers can be spoofed or absent behind
	// proxies.
	RequestOrigin string
}

type CreatePreferenceResult struct {
	OrderID           string
	PreferenceID      string
	InitPoint         string
	SandboxInitPoint  string
	NotificationURL   string
	OriginUsed        string
	AutoReturnEnabled bool
}

// CheckoutURL prefers the production init point over the sandbox one.
func (r *CreatePreferenceResult) CheckoutURL() string {
	if r.InitPoint != "" {
		return r.InitPoint
	}
	return r.SandboxInitPoint
}

func (s *CheckoutService) CreatePreference(ctx context.Context, in CreatePreferenceInput) (*CreatePreferenceResult, error) {
	if s.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}

	items := make([]models.Item, 0, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.Title) == "" {
			return nil, ErrInvalidItemTitle
		}
		if it.UnitPrice <= 0 || math.IsInf(it.UnitPrice, 0) || math.IsNaN(it.UnitPrice) {
			return nil, ErrInvalidItemPrice
		}
		if it.Quantity < 1 || math.IsInf(it.Quantity, 0) || math.IsNaN(it.Quantity) {
			return nil, ErrInvalidItemQuantity
		}
		items = append(items, models.Item{
			Title:      it.Title,
			UnitPrice:  it.UnitPrice,
			Quantity:   int(math.Floor(it.Quantity)),
			CurrencyID: s.Currency,
		})
	}

	baseURL := s.resolveBaseURL(in.RequestOrigin)

	orderID := strings.TrimSpace(in.ExternalReference)
	if orderID == "" {
		orderID = NewOrderID(s.Store.Now())
	}

	now := s.Store.NowMillis()
	order := &models.Order{
		OrderID:   orderID,
		Status:    models.OrderPending,
		CreatedAt: now,
		Metadata:  in.Metadata,
		Items:     items,
	}
	// Persist before calling the provider so a fast webhook finds a record.
	if err := s.Store.PutOrder(ctx, order); err != nil {
		return nil, err
	}

	notificationURL := baseURL + "/api/mp/webhook"
	successURL := checkoutReturnURL(baseURL, "success", orderID)
	pendingURL := checkoutReturnURL(baseURL, "pending", orderID)
	failureURL := checkoutReturnURL(baseURL, "failure", orderID)

	req := &gateway.PreferenceRequest{
		Items:             toPreferenceItems(items),
		NotificationURL:   notificationURL,
		BackURLs:          gateway.BackURLs{Success: successURL, Pending: pendingURL, Failure: failureURL},
		ExternalReference: orderID,
		Metadata:          in.Metadata,
	}
	if in.Email != "" {
		req.Payer = &gateway.PreferencePayer{Email: in.Email}
	}

	// The provider only honors auto_return for https return URLs; disable it
	// instead of failing the whole request on plain-http deployments.
	autoReturn := false
	if isHTTPS(successURL) {
		req.AutoReturn = "approved"
		autoReturn = true
	} else {
		log.Printf("[checkout] auto_return disabled, success url is not https: %s", successURL)
	}

	pref, err := s.Gateway.CreatePreference(ctx, req)
	if err != nil {
		var upstream *gateway.UpstreamError
		if errors.As(err, &upstream) {
			log.Printf("[checkout] preference rejected order=%s status=%d body=%s",
				orderID, upstream.StatusCode, truncate(upstream.Body, 512))
			if _, mergeErr := s.Store.UpdateOrder(ctx, orderID, func(o *models.Order) {
				o.ApplyGatewayError(s.Store.NowMillis(), upstream.StatusCode, upstream.Body)
			}); mergeErr != nil {
				log.Printf("[checkout] error merge failed order=%s: %v", orderID, mergeErr)
			}
		}
		return nil, err
	}

	if pref.InitPoint == "" && pref.SandboxInitPoint == "" {
		log.Printf("[checkout] preference has no init_point order=%s", orderID)
		if _, mergeErr := s.Store.UpdateOrder(ctx, orderID, func(o *models.Order) {
			o.ApplyGatewayError(s.Store.NowMillis(), 0, string(pref.Raw))
		}); mergeErr != nil {
			log.Printf("[checkout] error merge failed order=%s: %v", orderID, mergeErr)
		}
		return nil, ErrNoCheckoutURL
	}

	if _, err := s.Store.UpdateOrder(ctx, orderID, func(o *models.Order) {
		o.ApplyPreference(pref.ID, s.Store.NowMillis())
	}); err != nil {
		return nil, err
	}

	return &CreatePreferenceResult{
		OrderID:           orderID,
		PreferenceID:      pref.ID,
		InitPoint:         pref.InitPoint,
		SandboxInitPoint:  pref.SandboxInitPoint,
		NotificationURL:   notificationURL,
		OriginUsed:        baseURL,
		AutoReturnEnabled: autoReturn,
	}, nil
}

func (s *CheckoutService) resolveBaseURL(requestOrigin string) string {
	if v := strings.TrimRight(strings.TrimSpace(s.PublicURL), "/"); v != "" {
		return v
	}
	return strings.TrimRight(requestOrigin, "/")
}

func checkoutReturnURL(baseURL, status, orderID string) string {
	return baseURL + "/checkout?status=" + status + "&orderId=" + url.QueryEscape(orderID)
}

func toPreferenceItems(items []models.Item) []gateway.PreferenceItem {
	out := make([]gateway.PreferenceItem, 0, len(items))
	for _, it := range items {
		out = append(out, gateway.PreferenceItem{
			Title:      it.Title,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			CurrencyID: it.CurrencyID,
		})
	}
	return out
}

func isHTTPS(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
