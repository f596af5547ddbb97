package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/urbenshop/storefront/internal/cart"
	"github.com/urbenshop/storefront/internal/catalog"
	"github.com/urbenshop/storefront/internal/checkout"
	"github.com/urbenshop/storefront/internal/platform/httpx"
	"github.com/urbenshop/storefront/internal/validation"
)

// OrderPlacer places an order from the session cart.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, store *cart.Store, form validation.CheckoutForm) (checkout.Confirmation, error)
}

// CheckoutHandlers exposes the checkout endpoint.
type CheckoutHandlers struct {
	sessions *CartSessions
	orders   OrderPlacer
	catalog  *catalog.Catalog
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(sessions *CartSessions, orders OrderPlacer, products *catalog.Catalog) *CheckoutHandlers {
	return &CheckoutHandlers{sessions: sessions, orders: orders, catalog: products}
}

// Routes wires POST /checkout onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
}

type orderResponse struct {
	OrderID  string            `json:"order_id"`
	Items    []cartItemPayload `json:"items"`
	Totals   totalsPayload     `json:"totals"`
	PlacedAt string            `json:"placed_at"`
	Message  string            `json:"message"`
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is unavailable", http.StatusServiceUnavailable))
		return
	}

	var form validation.CheckoutForm
	if !decodeBody(ctx, w, r, &form) {
		return
	}
	store, ok := openSessionCart(w, r, h.sessions)
	if !ok {
		return
	}

	confirmation, err := h.orders.PlaceOrder(ctx, store, form)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{
		OrderID:  confirmation.OrderID,
		Items:    itemPayloads(confirmation.Items, h.catalog),
		Totals:   totalsToPayload(confirmation.Totals),
		PlacedAt: confirmation.PlacedAt.UTC().Format(time.RFC3339),
		Message:  confirmation.Message,
	})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if fieldErr, ok := validation.AsFieldError(err); ok {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", fieldErr.Message, http.StatusBadRequest).WithField(fieldErr.Field))
		return
	}
	if errors.Is(err, checkout.ErrEmptyCart) {
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", checkout.MsgEmptyCart, http.StatusConflict))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", "order could not be placed", http.StatusInternalServerError))
}
