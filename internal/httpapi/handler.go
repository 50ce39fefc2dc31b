package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"coursepay/internal/catalog"
	"coursepay/internal/gateway"
	"coursepay/internal/models"
	"coursepay/internal/promos"
	"coursepay/internal/services"

	"github.com/go-chi/chi/v5"
)

// timeNow is swappable so quote tests can pin promo windows.
var timeNow = time.Now

type Handler struct {
	Checkout *services.CheckoutService
	Webhook  *services.WebhookService
	Orders   *services.OrderService
	Promos   *promos.Loader
	Catalog  *catalog.Catalog
}

func NewHandler(
	checkout *services.CheckoutService,
	webhook *services.WebhookService,
	orders *services.OrderService,
	loader *promos.Loader,
	cat *catalog.Catalog,
) *Handler {
	return &Handler{
		Checkout: checkout,
		Webhook:  webhook,
		Orders:   orders,
		Promos:   loader,
		Catalog:  cat,
	}
}

type createPreferenceRequest struct {
	Items             []services.InputItem `json:"items"`
	Email             string               `json:"email"`
	Metadata          map[string]any       `json:"metadata"`
	ExternalReference string               `json:"external_reference"`
}

func (h *Handler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	var req createPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.Checkout.CreatePreference(r.Context(), services.CreatePreferenceInput{
		Items:             req.Items,
		Email:             req.Email,
		Metadata:          req.Metadata,
		ExternalReference: req.ExternalReference,
		RequestOrigin:     requestOrigin(r),
	})
	if err != nil {
		var upstream *gateway.UpstreamError
		switch {
		case errors.Is(err, services.ErrMissingAccessToken):
			writeError(w, http.StatusInternalServerError, "missing gateway access token")
		case errors.Is(err, services.ErrNoItems),
			errors.Is(err, services.ErrInvalidItemTitle),
			errors.Is(err, services.ErrInvalidItemPrice),
			errors.Is(err, services.ErrInvalidItemQuantity):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &upstream):
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"ok":        false,
				"error":     "gateway rejected the preference",
				"mp_status": upstream.StatusCode,
				"mp_body":   upstream.Body,
			})
		case errors.Is(err, services.ErrNoCheckoutURL):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			log.Printf("[http] create preference failed: %v", err)
			writeError(w, http.StatusInternalServerError, "create preference failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                  true,
		"orderId":             result.OrderID,
		"id":                  result.PreferenceID,
		"init_point":          result.InitPoint,
		"sandbox_init_point":  result.SandboxInitPoint,
		"external_reference":  result.OrderID,
		"notification_url":    result.NotificationURL,
		"origin_used":         result.OriginUsed,
		"auto_return_enabled": result.AutoReturnEnabled,
	})
}

func (h *Handler) WebhookDelivery(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	result, err := h.Webhook.Process(r.Context(), services.WebhookRequest{
		SignatureHeader: r.Header.Get("x-signature"),
		RequestID:       r.Header.Get("x-request-id"),
		Query:           r.URL.Query(),
		Body:            body,
	})
	if err != nil {
		if errors.Is(err, services.ErrBadSignature) {
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		// Upstream fetch and store failures are retryable; a 500 makes the
		// provider redeliver.
		log.Printf("[http] webhook processing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}

	resp := map[string]any{"ok": true, "approved": result.Approved}
	if result.Ignored {
		resp["ignored"] = true
	}
	if result.Note != "" {
		resp["note"] = result.Note
	}
	if result.Dedup {
		resp["dedup"] = true
	}
	if result.OrderID != "" {
		resp["orderId"] = result.OrderID
	}
	if result.Status != "" {
		resp["status"] = result.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.Orders.Status(r.Context(), r.URL.Query().Get("orderId"))
	if err != nil {
		if errors.Is(err, services.ErrMissingOrderID) {
			writeError(w, http.StatusBadRequest, "missing orderId")
			return
		}
		log.Printf("[http] order status failed: %v", err)
		writeError(w, http.StatusInternalServerError, "order status failed")
		return
	}

	resp := map[string]any{
		"ok":          true,
		"exists":      result.Exists,
		"status":      result.Status,
		"updatedAt":   nullableMillis(result.UpdatedAt),
		"submittedAt": nullableMillis(result.SubmittedAt),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		if errors.Is(err, services.ErrMissingOrderID) {
			writeError(w, http.StatusBadRequest, "missing order id")
			return
		}
		log.Printf("[http] order read failed: %v", err)
		writeError(w, http.StatusInternalServerError, "order read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "order": order})
}

type submitRequest struct {
	OrderID string            `json:"orderId"`
	Payload models.Submission `json:"payload"`
}

func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	already, err := h.Orders.Submit(r.Context(), req.OrderID, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingOrderID),
			errors.Is(err, services.ErrInvalidName),
			errors.Is(err, services.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrOrderNotPaid):
			writeError(w, http.StatusConflict, "order not paid yet")
		default:
			log.Printf("[http] checkout submit failed: %v", err)
			writeError(w, http.StatusInternalServerError, "checkout submit failed")
		}
		return
	}

	if already {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "already": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type quoteRequest struct {
	Items []promos.CartItem `json:"items"`
}

func (h *Handler) QuoteCheckout(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing items")
		return
	}
	for _, it := range req.Items {
		if it.Qty < 1 {
			writeError(w, http.StatusBadRequest, "invalid item quantity: "+it.Slug)
			return
		}
		if _, ok := h.Catalog.Get(it.Slug); !ok {
			writeError(w, http.StatusBadRequest, "unknown course: "+it.Slug)
			return
		}
	}

	active, err := h.Promos.Promos(r.Context())
	if err != nil {
		log.Printf("[http] promos load failed: %v", err)
		writeError(w, http.StatusInternalServerError, "promos unavailable")
		return
	}

	totals := promos.ComputeCheckoutTotals(req.Items, h.Catalog.Prices(), h.Catalog.Titles(), active, timeNow())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "totals": totals})
}

// requestOrigin derives scheme://host from forwarding headers. Only used when
// no explicit public URL is configured.
func requestOrigin(r *http.Request) string {
	proto := r.Header.Get("x-forwarded-proto")
	if proto == "" {
		proto = "http"
	}
	host := r.Header.Get("x-forwarded-host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		host = "localhost"
	}
	return proto + "://" + host
}

func nullableMillis(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
