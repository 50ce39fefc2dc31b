package store

import (
	"context"
	"encoding/json"
	"time"

	"coursepay/internal/kv"
	"coursepay/internal/models"
)

const (
	// Dedup markers outlive the provider's redelivery window.
	PaymentEventTTL = 7 * 24 * time.Hour
	EmailMarkerTTL  = 30 * 24 * time.Hour
)

// Store persists orders and webhook markers in the shared key-value store.
// Writes are whole-record writes of a merged object; there is no optimistic
// locking, and concurrent webhooks for different payments against one order
// resolve last-write-wins.
type Store struct {
	KV kv.Store

	// Now is swappable for tests; timestamps are ms epoch.
	Now func() time.Time
}

func New(store kv.Store) *Store {
	return &Store{KV: store, Now: time.Now}
}

func (s *Store) NowMillis() int64 {
	return s.Now().UnixMilli()
}

func orderKey(orderID string) string     { return "order:" + orderID }
func paymentKey(paymentID string) string { return "mp:payment:" + paymentID }
func emailSentKey(orderID string) string { return "order:" + orderID + ":email_sent" }

// GetOrder returns nil with no error when the key is absent; a webhook may
// legitimately race ahead of preference creation.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	raw, ok, err := s.KV.Get(ctx, orderKey(orderID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var order models.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) PutOrder(ctx context.Context, order *models.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, orderKey(order.OrderID), string(raw))
}

// UpdateOrder is the read-merge-write path. When the order is absent an empty
// record is created so merges from racing channels still land somewhere.
func (s *Store) UpdateOrder(ctx context.Context, orderID string, apply func(*models.Order)) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		order = &models.Order{OrderID: orderID}
	}
	apply(order)
	if err := s.PutOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// SeenPayment reports whether a webhook for this payment id was already
// processed.
func (s *Store) SeenPayment(ctx context.Context, paymentID string) (bool, error) {
	_, ok, err := s.KV.Get(ctx, paymentKey(paymentID))
	return ok, err
}

// MarkPayment records the dedup marker. Check-then-set is not atomic; the
// provider serializes deliveries per payment id, which is the accepted guard.
func (s *Store) MarkPayment(ctx context.Context, paymentID string, event models.WebhookEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.KV.SetWithTTL(ctx, paymentKey(paymentID), string(raw), PaymentEventTTL)
}

func (s *Store) EmailSent(ctx context.Context, orderID string) (bool, error) {
	_, ok, err := s.KV.Get(ctx, emailSentKey(orderID))
	return ok, err
}

func (s *Store) MarkEmailSent(ctx context.Context, orderID string, marker models.EmailSentMarker) error {
	raw, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return s.KV.SetWithTTL(ctx, emailSentKey(orderID), string(raw), EmailMarkerTTL)
}
