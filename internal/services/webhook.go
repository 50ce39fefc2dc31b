package services

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"

	"coursepay/internal/email"
	"coursepay/internal/gateway"
	"coursepay/internal/models"
	"coursepay/internal/store"
)

// WebhookService reconciles provider payment notifications against stored
// orders. A webhook is a ping, not a payload: every decision is made from the
// fetched payment record.
type WebhookService struct {
	Store   *store.Store
	Gateway gateway.API
	Sender  email.Sender

	Secret string
	// AllowUnsigned accepts deliveries that carry no signature headers at
	// all. Sandbox-only escape hatch; every unsigned delivery is logged.
	AllowUnsigned bool

	AdminEmail string
	SiteName   string
	SiteURL    string
	// DebugRaw persists the raw provider payload on the order record.
	DebugRaw bool
}

type WebhookRequest struct {
	SignatureHeader string
	RequestID       string
	Query           url.Values
	Body            []byte
}

// WebhookResult is always a 200 once past signature and fetch; the flags tell
// the caller which soft path was taken.
type WebhookResult struct {
	Ignored  bool
	Note     string
	Dedup    bool
	Approved bool
	OrderID  string
	Status   models.OrderStatus
}

type webhookBody struct {
	ID    json.Number `json:"id"`
	Type  string      `json:"type"`
	Topic string      `json:"topic"`
	Data  struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// MapStatus translates a provider payment status into an order status. Every
// input maps; unrecognized statuses land on unknown, which stays open for
// later webhooks to resolve.
func MapStatus(providerStatus string) models.OrderStatus {
	switch providerStatus {
	case "approved":
		return models.OrderPaid
	case "rejected", "cancelled":
		return models.OrderRejected
	case "pending", "in_process":
		return models.OrderPending
	default:
		return models.OrderUnknown
	}
}

// Process runs one webhook delivery through the state machine. Returned
// errors are the two hard paths only: ErrBadSignature (401) and everything
// else (500, provider redelivers). All other outcomes are soft successes.
func (s *WebhookService) Process(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	// Malformed JSON is tolerated as an empty body; query params still carry
	// the payment id on real deliveries.
	var body webhookBody
	if len(req.Body) > 0 {
		_ = json.Unmarshal(req.Body, &body)
	}

	topic := firstNonEmpty(req.Query.Get("type"), req.Query.Get("topic"), body.Type, body.Topic)
	if topic != "" && topic != "payment" && topic != "payments" {
		return &WebhookResult{Ignored: true, Note: "ignored topic: " + topic}, nil
	}

	// Query params win over body fields; the provider has been seen sending
	// both with diverging values.
	dataID := firstNonEmpty(
		req.Query.Get("data.id"),
		req.Query.Get("id"),
		body.Data.ID.String(),
		body.ID.String(),
	)
	dataID = strings.TrimSpace(dataID)
	if dataID == "" {
		// Acknowledge malformed test pings; a non-200 only provokes a
		// redelivery storm for data that does not exist.
		return &WebhookResult{Ignored: true, Note: "no data id"}, nil
	}

	if req.SignatureHeader == "" && req.RequestID == "" && s.AllowUnsigned {
		log.Printf("[webhook] accepting unsigned delivery data_id=%s (allow_unsigned enabled)", dataID)
	} else if !gateway.VerifySignature(req.SignatureHeader, req.RequestID, dataID, s.Secret) {
		return nil, ErrBadSignature
	}

	payment, err := s.Gateway.FetchPayment(ctx, dataID)
	if err != nil {
		// Hard failure on purpose: the lookup is retryable and the provider
		// will redeliver on a 500.
		return nil, err
	}

	approved := payment.Status == "approved"
	paymentID := payment.ID.String()
	if paymentID == "" {
		paymentID = dataID
	}

	orderID := strings.TrimSpace(payment.ExternalReference)
	if orderID == "" {
		return &WebhookResult{Approved: approved, Note: "no external_reference"}, nil
	}

	// Idempotency boundary. Check-then-set is not atomic; deliveries for one
	// payment id are serialized by the provider, which is the accepted guard.
	seen, err := s.Store.SeenPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if seen {
		return &WebhookResult{Approved: approved, Dedup: true, OrderID: orderID}, nil
	}
	if err := s.Store.MarkPayment(ctx, paymentID, models.WebhookEvent{
		SeenAt:  s.Store.NowMillis(),
		OrderID: orderID,
		Status:  payment.Status,
	}); err != nil {
		return nil, err
	}

	prev, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var prevStatus models.OrderStatus
	if prev != nil {
		prevStatus = prev.Status
	}

	nextStatus := MapStatus(payment.Status)
	update := models.GatewayInfo{
		PaymentID:         paymentID,
		PaymentStatus:     payment.Status,
		StatusDetail:      payment.StatusDetail,
		TransactionAmount: payment.TransactionAmount,
		CurrencyID:        payment.CurrencyID,
		PayerEmail:        payment.Payer.Email,
	}
	if s.DebugRaw {
		update.Raw = payment.Raw
	}
	order, err := s.Store.UpdateOrder(ctx, orderID, func(o *models.Order) {
		o.ApplyGatewayUpdate(nextStatus, s.Store.NowMillis(), update)
	})
	if err != nil {
		return nil, err
	}

	if nextStatus == models.OrderPaid && prevStatus != models.OrderPaid {
		sent, err := s.Store.EmailSent(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !sent {
			// Notification failures never fail the webhook: the provider must
			// see a 200 or it redelivers and risks duplicate side effects.
			if err := s.sendApprovedEmails(ctx, order, payment); err != nil {
				log.Printf("[webhook] email send failed order=%s: %v", orderID, err)
			} else if err := s.Store.MarkEmailSent(ctx, orderID, models.EmailSentMarker{
				At:        s.Store.NowMillis(),
				PaymentID: paymentID,
			}); err != nil {
				log.Printf("[webhook] email marker write failed order=%s: %v", orderID, err)
			}
		}
	}

	return &WebhookResult{Approved: approved, OrderID: orderID, Status: nextStatus}, nil
}

func (s *WebhookService) sendApprovedEmails(ctx context.Context, order *models.Order, payment *gateway.Payment) error {
	msg := email.Approved{
		OrderID:  order.OrderID,
		Licenses: order.Licenses,
		SiteName: s.SiteName,
		SiteURL:  s.SiteURL,
	}
	if order.Customer != nil {
		msg.FullName = order.Customer.FullName
		msg.WhatsApp = order.Customer.WhatsApp
	}
	if msg.FullName == "" {
		msg.FullName = metadataString(payment.Metadata, "fullName")
	}
	if msg.WhatsApp == "" {
		msg.WhatsApp = metadataString(payment.Metadata, "whatsApp")
	}
	for course := range order.Entitlements {
		msg.Courses = append(msg.Courses, course)
	}

	html := email.BuildApprovedHTML(msg)

	var firstErr error
	for _, to := range s.buyerRecipients(order, payment) {
		if err := s.Sender.Send(ctx, to, msg.Subject(), html); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.AdminEmail != "" {
		if err := s.Sender.Send(ctx, s.AdminEmail, msg.AdminSubject(), html); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buyerRecipients merges the provider payer email with the email captured at
// checkout, deduplicated case-insensitively. The admin copy is separate.
func (s *WebhookService) buyerRecipients(order *models.Order, payment *gateway.Payment) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		key := strings.ToLower(addr)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, addr)
	}
	add(payment.Payer.Email)
	if order.Customer != nil {
		add(order.Customer.Email)
	}
	return out
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
