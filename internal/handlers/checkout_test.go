package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/urbenshop/storefront/internal/cart"
	"github.com/urbenshop/storefront/internal/catalog"
	"github.com/urbenshop/storefront/internal/checkout"
	"github.com/urbenshop/storefront/internal/kvstore"
	"github.com/urbenshop/storefront/internal/validation"
)

const validCheckoutBody = `{
	"firstName": "Jane",
	"lastName": "Doe",
	"email": "jane@example.com",
	"phone": "(555) 123-4567",
	"address": "1 Main St",
	"city": "Springfield",
	"state": "IL",
	"zip": "62701",
	"cardName": "Jane Doe",
	"cardNumber": "4111 1111 1111 1111",
	"expiryDate": "12/30",
	"cvv": "123"
}`

func newCheckoutTestRouter(t *testing.T) http.Handler {
	t.Helper()
	now := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)
	products := catalog.Default()
	sessions, err := NewCartSessions(cart.StoreDeps{Storage: kvstore.NewMemory(), Catalog: products})
	if err != nil {
		t.Fatalf("NewCartSessions: %v", err)
	}
	svc, err := checkout.NewService(checkout.ServiceDeps{
		Validator:   validation.New(func() time.Time { return now }),
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "ord_01" },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewRouter(
		WithMiddlewares(SessionMiddleware(SessionOptions{})),
		WithCartRoutes(NewCartHandlers(sessions, products).Routes),
		WithCheckoutRoutes(NewCheckoutHandlers(sessions, svc, products).Routes),
	)
}

func sessionRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: defaultSessionCookie, Value: testSessionID})
	return req
}

func TestCheckoutHandlers_PlaceOrder(t *testing.T) {
	router := newCheckoutTestRouter(t)

	add := httptest.NewRecorder()
	router.ServeHTTP(add, sessionRequest(http.MethodPost, "/api/v1/cart/items", `{"name":"Diamond Necklace"}`))
	if add.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", add.Code)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, sessionRequest(http.MethodPost, "/api/v1/checkout", validCheckoutBody))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var order orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if order.OrderID != "ord_01" || order.Message != checkout.MsgOrderPlaced {
		t.Fatalf("unexpected order %+v", order)
	}
	// 499.99 + 40.00 tax + 10.00 shipping
	if order.Totals.Total != "549.99" || len(order.Items) != 1 || order.Items[0].Image != "images/product5.jpg" {
		t.Fatalf("unexpected order contents %+v", order)
	}
	if order.PlacedAt != "2026-10-14T08:00:00Z" {
		t.Fatalf("unexpected placed_at %s", order.PlacedAt)
	}
	if rr.Header().Get(cartCountHeader) != "0" {
		t.Fatalf("expected cart counter reset, got %q", rr.Header().Get(cartCountHeader))
	}

	again := httptest.NewRecorder()
	router.ServeHTTP(again, sessionRequest(http.MethodPost, "/api/v1/checkout", validCheckoutBody))
	if again.Code != http.StatusConflict {
		t.Fatalf("second checkout: expected 409, got %d", again.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(again.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != checkout.MsgEmptyCart {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestCheckoutHandlers_ValidationError(t *testing.T) {
	router := newCheckoutTestRouter(t)
	payload := strings.Replace(validCheckoutBody, `"cvv": "123"`, `"cvv": "12"`, 1)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, sessionRequest(http.MethodPost, "/api/v1/checkout", payload))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "validation_failed" || body["field"] != "cvv" || body["message"] != validation.MsgCVV {
		t.Fatalf("unexpected error body %v", body)
	}
}
