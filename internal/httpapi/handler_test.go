package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coursepay/internal/catalog"
	"coursepay/internal/email"
	"coursepay/internal/gateway"
	"coursepay/internal/kv"
	"coursepay/internal/models"
	"coursepay/internal/promos"
	"coursepay/internal/services"
	"coursepay/internal/store"
)

type stubGateway struct {
	payment *gateway.Payment
	pref    *gateway.Preference
	err     error
}

func (s *stubGateway) FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payment, nil
}

func (s *stubGateway) CreatePreference(ctx context.Context, req *gateway.PreferenceRequest) (*gateway.Preference, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pref, nil
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, gw gateway.API) (*Server, *store.Store) {
	t.Helper()
	mem := kv.NewMemory()
	st := store.New(mem)

	cat, err := catalog.Load(writeFixture(t, "courses.yaml", `
courses:
  - slug: ccna-200-301
    title: "CCNA 200-301"
    price_pen: 200
  - slug: cyberops-associate
    title: "CyberOps Associate"
    price_pen: 200
`))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	loader := promos.NewLoader(writeFixture(t, "promos.json", `{"promos":[
		{"id":"launch","type":"percent","badge":"10% OFF","activeFrom":"2026-01-01","activeTo":"2026-12-31","discountPercent":10}
	]}`), time.Minute)

	handler := NewHandler(
		&services.CheckoutService{Store: st, Gateway: gw, AccessToken: "token-1", PublicURL: "https://site.test", Currency: "PEN"},
		&services.WebhookService{Store: st, Gateway: gw, Sender: email.Disabled(), Secret: "wh-secret"},
		&services.OrderService{Store: st},
		loader,
		cat,
	)
	return NewServer(handler), st
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})
	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreatePreferenceEndpoint(t *testing.T) {
	gw := &stubGateway{pref: &gateway.Preference{ID: "pref-1", InitPoint: "https://mp.example/init"}}
	srv, st := newTestServer(t, gw)

	rec := doJSON(t, srv, http.MethodPost, "/api/mp/preference",
		`{"items":[{"title":"CCNA 200-301","unit_price":200,"quantity":1}],"email":"a@b.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["ok"] != true || body["id"] != "pref-1" || body["init_point"] != "https://mp.example/init" {
		t.Errorf("body = %v", body)
	}
	orderID, _ := body["orderId"].(string)
	if orderID == "" {
		t.Fatal("missing orderId")
	}
	if order, _ := st.GetOrder(context.Background(), orderID); order == nil {
		t.Error("pending order not persisted")
	}

	// Validation failures map to 400.
	rec = doJSON(t, srv, http.MethodPost, "/api/mp/preference", `{"items":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty items: status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/mp/preference", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rec.Code)
	}
}

func TestCreatePreferenceUpstreamErrorEndpoint(t *testing.T) {
	gw := &stubGateway{err: &gateway.UpstreamError{StatusCode: 400, Body: `{"message":"bad items"}`}}
	srv, _ := newTestServer(t, gw)

	rec := doJSON(t, srv, http.MethodPost, "/api/mp/preference",
		`{"items":[{"title":"A","unit_price":100,"quantity":1}]}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["mp_status"] != float64(400) || body["mp_body"] != `{"message":"bad items"}` {
		t.Errorf("body = %v", body)
	}
}

func TestWebhookEndpointBadSignature(t *testing.T) {
	gw := &stubGateway{payment: &gateway.Payment{ID: "1", Status: "approved"}}
	srv, _ := newTestServer(t, gw)

	req := httptest.NewRequest(http.MethodPost, "/api/mp/webhook?type=payment&data.id=1", strings.NewReader(`{}`))
	req.Header.Set("x-signature", "ts=1,v1=deadbeef")
	req.Header.Set("x-request-id", "req-1")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookEndpointIgnoredTopic(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})
	rec := doJSON(t, srv, http.MethodPost, "/api/mp/webhook?topic=merchant_order&id=5", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ignored"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestOrderStatusEndpoint(t *testing.T) {
	srv, st := newTestServer(t, &stubGateway{})
	_ = st.PutOrder(context.Background(), &models.Order{
		OrderID:   "order_1",
		Status:    models.OrderPaid,
		UpdatedAt: 1768046400000,
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/order/status?orderId=order_1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["exists"] != true || body["status"] != "paid" || body["updatedAt"] != float64(1768046400000) {
		t.Errorf("body = %v", body)
	}
	if body["submittedAt"] != nil {
		t.Errorf("submittedAt = %v", body["submittedAt"])
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/order/status?orderId=order_none", "")
	body = decodeBody(t, rec)
	if body["exists"] != false || body["status"] != "missing" {
		t.Errorf("body = %v", body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/order/status", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing orderId: status = %d", rec.Code)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	srv, st := newTestServer(t, &stubGateway{})
	_ = st.PutOrder(context.Background(), &models.Order{OrderID: "order_1", Status: models.OrderPending})

	rec := doJSON(t, srv, http.MethodGet, "/api/orders/order_1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	order, _ := body["order"].(map[string]any)
	if order == nil || order["orderId"] != "order_1" {
		t.Errorf("body = %v", body)
	}
}

func TestSubmitCheckoutEndpoint(t *testing.T) {
	srv, st := newTestServer(t, &stubGateway{})
	_ = st.PutOrder(context.Background(), &models.Order{OrderID: "order_1", Status: models.OrderPaid})

	rec := doJSON(t, srv, http.MethodPost, "/api/checkout/submit",
		`{"orderId":"order_1","payload":{"fullName":"Ana","email":"a@b.com"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/checkout/submit",
		`{"orderId":"order_1","payload":{"fullName":"Ana","email":"a@b.com"}}`)
	body := decodeBody(t, rec)
	if body["already"] != true {
		t.Errorf("body = %v", body)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/checkout/submit",
		`{"orderId":"order_ghost","payload":{"fullName":"Ana","email":"a@b.com"}}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing order: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/checkout/submit",
		`{"orderId":"order_1","payload":{"fullName":"","email":"a@b.com"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid name: status = %d", rec.Code)
	}
}

func TestQuoteCheckoutEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	restore := timeNow
	timeNow = func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) }
	defer func() { timeNow = restore }()

	rec := doJSON(t, srv, http.MethodPost, "/api/checkout/quote",
		`{"items":[{"slug":"ccna-200-301","qty":1}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	totals, _ := body["totals"].(map[string]any)
	if totals == nil || totals["subtotalPEN"] != float64(200) || totals["totalPEN"] != float64(180) {
		t.Errorf("totals = %v", totals)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/checkout/quote",
		`{"items":[{"slug":"no-such-course","qty":1}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown course: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/checkout/quote",
		`{"items":[{"slug":"ccna-200-301","qty":0}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero qty: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/checkout/quote", `{"items":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no items: status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})
	req := httptest.NewRequest(http.MethodOptions, "/api/mp/preference", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("cors header missing")
	}
}
