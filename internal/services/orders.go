package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursepay/internal/models"
	"coursepay/internal/store"

	"github.com/google/uuid"
)

// NewOrderID keeps the sortable timestamp prefix but adds a random suffix; a
// timestamp alone collides under concurrent checkouts in the same
// millisecond.
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// OrderService serves the status-read endpoint the return poller drives, the
// debug order read, and the post-payment form capture.
type OrderService struct {
	Store *store.Store
	// RequirePaid rejects submissions with a conflict until the webhook has
	// marked the order paid.
	RequirePaid bool
}

type StatusResult struct {
	Exists      bool
	Status      string
	UpdatedAt   int64
	SubmittedAt int64
}

func (s *OrderService) Status(ctx context.Context, orderID string) (*StatusResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		// Not an error: the record may not exist yet, or the webhook may not
		// have landed.
		return &StatusResult{Exists: false, Status: "missing"}, nil
	}
	status := string(order.Status)
	if status == "" {
		status = string(models.OrderUnknown)
	}
	return &StatusResult{
		Exists:      true,
		Status:      status,
		UpdatedAt:   order.UpdatedAt,
		SubmittedAt: order.SubmittedAt,
	}, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	return s.Store.GetOrder(ctx, orderID)
}

// Submit captures the checkout form once. The first write wins; repeat calls
// report already=true and leave the stored payload untouched.
func (s *OrderService) Submit(ctx context.Context, orderID string, sub models.Submission) (already bool, err error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return false, ErrMissingOrderID
	}
	sub.FullName = strings.TrimSpace(sub.FullName)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.WhatsApp = strings.TrimSpace(sub.WhatsApp)
	if sub.FullName == "" {
		return false, ErrInvalidName
	}
	if !plausibleEmail(sub.Email) {
		return false, ErrInvalidEmail
	}

	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, ErrOrderNotFound
	}
	if s.RequirePaid && order.Status != models.OrderPaid {
		return false, ErrOrderNotPaid
	}
	if order.SubmittedAt != 0 {
		return true, nil
	}

	order.ApplySubmission(sub, s.Store.NowMillis())
	if err := s.Store.PutOrder(ctx, order); err != nil {
		return false, err
	}
	return false, nil
}

func plausibleEmail(v string) bool {
	return strings.Contains(v, "@") && strings.Contains(v, ".")
}
