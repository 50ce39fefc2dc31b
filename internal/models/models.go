package models

import "encoding/json"

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderRejected OrderStatus = "rejected"
	OrderUnknown  OrderStatus = "unknown"
	OrderError    OrderStatus = "error"
)

// Terminal reports whether the webhook pipeline expects further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderRejected
}

type Item struct {
	Title      string  `json:"title"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

type Customer struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsApp"`
}

// GatewayInfo is the nested provider sub-record of an order. It is always
// merged, never replaced, so fields written by one webhook survive the next.
type GatewayInfo struct {
	PaymentID         string          `json:"paymentId,omitempty"`
	PaymentStatus     string          `json:"paymentStatus,omitempty"`
	StatusDetail      string          `json:"statusDetail,omitempty"`
	TransactionAmount float64         `json:"transaction_amount,omitempty"`
	CurrencyID        string          `json:"currency_id,omitempty"`
	PayerEmail        string          `json:"payer_email,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
	ErrorStatus       int             `json:"errorStatus,omitempty"`
	ErrorBody         string          `json:"errorBody,omitempty"`
}

// Order is the stored checkout record, keyed by order:<orderId>. Timestamps
// are milliseconds since epoch; zero means unset.
type Order struct {
	OrderID      string              `json:"orderId"`
	Status       OrderStatus         `json:"status"`
	CreatedAt    int64               `json:"createdAt,omitempty"`
	UpdatedAt    int64               `json:"updatedAt,omitempty"`
	SubmittedAt  int64               `json:"submittedAt,omitempty"`
	Items        []Item              `json:"items,omitempty"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
	PreferenceID string              `json:"preferenceId,omitempty"`
	Gateway      *GatewayInfo        `json:"gateway,omitempty"`
	Customer     *Customer           `json:"customer,omitempty"`
	Entitlements map[string]int      `json:"entitlements,omitempty"`
	Licenses     map[string][]string `json:"licenses,omitempty"`
	Totals       json.RawMessage     `json:"totals,omitempty"`
	Lines        json.RawMessage     `json:"lines,omitempty"`
}

// ApplyGatewayUpdate merges a webhook-derived update into the order. Incoming
// non-empty fields win; everything else on the record is preserved.
func (o *Order) ApplyGatewayUpdate(next OrderStatus, now int64, update GatewayInfo) {
	o.Status = next
	o.UpdatedAt = now
	if o.Gateway == nil {
		o.Gateway = &GatewayInfo{}
	}
	g := o.Gateway
	if update.PaymentID != "" {
		g.PaymentID = update.PaymentID
	}
	if update.PaymentStatus != "" {
		g.PaymentStatus = update.PaymentStatus
	}
	if update.StatusDetail != "" {
		g.StatusDetail = update.StatusDetail
	}
	if update.TransactionAmount != 0 {
		g.TransactionAmount = update.TransactionAmount
	}
	if update.CurrencyID != "" {
		g.CurrencyID = update.CurrencyID
	}
	if update.PayerEmail != "" {
		g.PayerEmail = update.PayerEmail
	}
	if update.Raw != nil {
		g.Raw = update.Raw
	}
}

// ApplyGatewayError records a failed provider call against the order.
func (o *Order) ApplyGatewayError(now int64, httpStatus int, body string) {
	o.Status = OrderError
	o.UpdatedAt = now
	if o.Gateway == nil {
		o.Gateway = &GatewayInfo{}
	}
	o.Gateway.ErrorStatus = httpStatus
	o.Gateway.ErrorBody = body
}

func (o *Order) ApplyPreference(preferenceID string, now int64) {
	o.PreferenceID = preferenceID
	o.UpdatedAt = now
}

// Submission is the post-payment checkout form payload.
type Submission struct {
	FullName     string              `json:"fullName"`
	Email        string              `json:"email"`
	WhatsApp     string              `json:"whatsApp"`
	Licenses     map[string][]string `json:"licenses"`
	Entitlements map[string]int      `json:"entitlements"`
	Totals       json.RawMessage     `json:"totals"`
	Lines        json.RawMessage     `json:"lines"`
}

// ApplySubmission captures the form data. First write wins; callers check
// SubmittedAt before invoking.
func (o *Order) ApplySubmission(sub Submission, now int64) {
	o.SubmittedAt = now
	o.Customer = &Customer{
		FullName: sub.FullName,
		Email:    sub.Email,
		WhatsApp: sub.WhatsApp,
	}
	if sub.Entitlements != nil {
		o.Entitlements = sub.Entitlements
	}
	if sub.Licenses != nil {
		o.Licenses = sub.Licenses
	}
	if sub.Totals != nil {
		o.Totals = sub.Totals
	}
	if sub.Lines != nil {
		o.Lines = sub.Lines
	}
}

// WebhookEvent marks a payment id as processed. Presence alone is the dedup
// signal; the fields are diagnostic.
type WebhookEvent struct {
	SeenAt  int64  `json:"seenAt"`
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
}

// EmailSentMarker prevents re-sending the paid-confirmation email.
type EmailSentMarker struct {
	At        int64  `json:"at"`
	PaymentID string `json:"paymentId,omitempty"`
}
