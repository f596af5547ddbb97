// Package checkout turns a validated checkout form and a non-empty cart into an
// order confirmation. There is no payment step and orders are not persisted.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/urbenshop/storefront/internal/cart"
	"github.com/urbenshop/storefront/internal/validation"
)

const orderIDPrefix = "ord_"

// Shopper facing messages.
const (
	MsgEmptyCart   = "Your cart is empty. Please add items before checkout."
	MsgOrderPlaced = "Order placed successfully! Thank you for shopping with UrbenShop."
)

var (
	// ErrEmptyCart indicates a checkout attempt without line items.
	ErrEmptyCart = errors.New("checkout: cart is empty")

	errValidatorRequired = errors.New("checkout service: validator is required")
	errStoreRequired     = errors.New("checkout: cart store is required")
)

// FormValidator checks the checkout form and reports the first violation.
type FormValidator interface {
	Checkout(form validation.CheckoutForm) error
}

// OrderRecorder counts confirmed orders.
type OrderRecorder interface {
	OrderPlaced()
}

// ServiceDeps wires the collaborators of the checkout service.
type ServiceDeps struct {
	Validator   FormValidator
	Clock       func() time.Time
	IDGenerator func() string
	Metrics     OrderRecorder
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// Confirmation is the snapshot of the cart taken when the order was placed.
type Confirmation struct {
	OrderID  string
	Items    []cart.LineItem
	Totals   cart.Totals
	PlacedAt time.Time
	Message  string
}

// Service places orders.
type Service struct {
	validator FormValidator
	now       func() time.Time
	newID     func() string
	metrics   OrderRecorder
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewService constructs a Service validating required dependencies.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Validator == nil {
		return nil, errValidatorRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return orderIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Service{
		validator: deps.Validator,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		metrics: deps.Metrics,
		logger:  logger,
	}, nil
}

// PlaceOrder validates the form, snapshots the cart with its totals and then
// clears it. A *validation.FieldError or ErrEmptyCart leaves the cart untouched.
func (s *Service) PlaceOrder(ctx context.Context, store *cart.Store, form validation.CheckoutForm) (Confirmation, error) {
	if store == nil {
		return Confirmation{}, errStoreRequired
	}

	if err := s.validator.Checkout(form); err != nil {
		fields := map[string]any{"error": err.Error()}
		if fieldErr, ok := validation.AsFieldError(err); ok {
			fields["field"] = fieldErr.Field
		}
		s.logger(ctx, "checkout.order_rejected", fields)
		return Confirmation{}, err
	}

	if store.Len() == 0 {
		s.logger(ctx, "checkout.order_rejected", map[string]any{"error": ErrEmptyCart.Error()})
		return Confirmation{}, ErrEmptyCart
	}

	confirmation := Confirmation{
		OrderID:  s.newID(),
		Items:    store.Items(),
		Totals:   store.Totals(),
		PlacedAt: s.now(),
		Message:  MsgOrderPlaced,
	}
	store.Clear(ctx)

	if s.metrics != nil {
		s.metrics.OrderPlaced()
	}
	s.logger(ctx, "checkout.order_placed", map[string]any{
		"orderId":   confirmation.OrderID,
		"lineItems": len(confirmation.Items),
		"total":     confirmation.Totals.Total.StringFixed(2),
	})
	return confirmation, nil
}
