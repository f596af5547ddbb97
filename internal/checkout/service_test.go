package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/urbenshop/storefront/internal/cart"
	"github.com/urbenshop/storefront/internal/catalog"
	"github.com/urbenshop/storefront/internal/kvstore"
	"github.com/urbenshop/storefront/internal/validation"
)

var placedAt = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

type orderCounter struct {
	count int
}

func (o *orderCounter) OrderPlaced() { o.count++ }

type validatorStub struct {
	err error
}

func (v validatorStub) Checkout(validation.CheckoutForm) error { return v.err }

func newTestService(t *testing.T, deps ServiceDeps) *Service {
	t.Helper()
	if deps.Validator == nil {
		deps.Validator = validation.New(func() time.Time { return placedAt })
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return placedAt }
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "ord_test" }
	}
	svc, err := NewService(deps)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func newCart(t *testing.T, storage cart.Storage) *cart.Store {
	t.Helper()
	store, err := cart.NewStore(cart.StoreDeps{Storage: storage, Catalog: catalog.Default()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.Load(context.Background())
	return store
}

func validForm() validation.CheckoutForm {
	return validation.CheckoutForm{
		FirstName:  "Jane",
		LastName:   "Doe",
		Email:      "jane@example.com",
		Phone:      "555-123-4567",
		Address:    "1 Main St",
		City:       "Springfield",
		State:      "IL",
		Zip:        "62701",
		CardName:   "Jane Doe",
		CardNumber: "4111111111111111",
		ExpiryDate: "01/28",
		CVV:        "123",
	}
}

func TestNewServiceRequiresValidator(t *testing.T) {
	if _, err := NewService(ServiceDeps{}); err == nil {
		t.Fatal("expected error without validator")
	}
}

func TestPlaceOrderSnapshotsAndClearsCart(t *testing.T) {
	ctx := context.Background()
	storage := kvstore.NewMemory()
	store := newCart(t, storage)
	if _, err := store.Add(ctx, "Luxury Gold Watch", 0); err != nil {
		t.Fatalf("add watch: %v", err)
	}
	if _, err := store.Add(ctx, "Luxury Gold Watch", 0); err != nil {
		t.Fatalf("add watch: %v", err)
	}
	if _, err := store.Add(ctx, "Premium Sunglasses", 0); err != nil {
		t.Fatalf("add sunglasses: %v", err)
	}

	counter := &orderCounter{}
	var events []string
	svc := newTestService(t, ServiceDeps{
		Metrics: counter,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			events = append(events, event)
		},
	})

	confirmation, err := svc.PlaceOrder(ctx, store, validForm())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if confirmation.OrderID != "ord_test" {
		t.Fatalf("unexpected order id %q", confirmation.OrderID)
	}
	if !confirmation.PlacedAt.Equal(placedAt) {
		t.Fatalf("unexpected placed at %s", confirmation.PlacedAt)
	}
	if confirmation.Message != MsgOrderPlaced {
		t.Fatalf("unexpected message %q", confirmation.Message)
	}
	if len(confirmation.Items) != 2 || confirmation.Items[0].Quantity != 2 {
		t.Fatalf("unexpected snapshot %+v", confirmation.Items)
	}
	// 2 x 299.99 + 149.99 = 749.97; tax 60.00; shipping 10.00
	if got := confirmation.Totals.Total.StringFixed(2); got != "819.97" {
		t.Fatalf("expected total 819.97, got %s", got)
	}

	if store.Len() != 0 {
		t.Fatalf("expected cart cleared, got %d items", store.Len())
	}
	raw, err := storage.Get(ctx, cart.DefaultStorageKey)
	if err != nil || raw != "[]" {
		t.Fatalf("expected persisted empty cart, got %q (%v)", raw, err)
	}
	if counter.count != 1 {
		t.Fatalf("expected one order counted, got %d", counter.count)
	}
	if len(events) != 1 || events[0] != "checkout.order_placed" {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	store := newCart(t, kvstore.NewMemory())
	counter := &orderCounter{}
	svc := newTestService(t, ServiceDeps{Metrics: counter})

	_, err := svc.PlaceOrder(context.Background(), store, validForm())
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if counter.count != 0 {
		t.Fatalf("expected no order counted")
	}
}

func TestPlaceOrderValidatesBeforeCheckingCart(t *testing.T) {
	store := newCart(t, kvstore.NewMemory())
	form := validForm()
	form.CVV = "12"
	svc := newTestService(t, ServiceDeps{})

	_, err := svc.PlaceOrder(context.Background(), store, form)
	fieldErr, ok := validation.AsFieldError(err)
	if !ok {
		t.Fatalf("expected field error, got %v", err)
	}
	if fieldErr.Field != "cvv" || fieldErr.Message != validation.MsgCVV {
		t.Fatalf("unexpected field error %+v", fieldErr)
	}
}

func TestPlaceOrderInvalidFormKeepsCart(t *testing.T) {
	ctx := context.Background()
	store := newCart(t, kvstore.NewMemory())
	if _, err := store.Add(ctx, "Silver Watch", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	rejection := &validation.FieldError{Field: "email", Message: validation.MsgEmail}
	var fields map[string]any
	svc := newTestService(t, ServiceDeps{
		Validator: validatorStub{err: rejection},
		Logger: func(_ context.Context, event string, f map[string]any) {
			if event == "checkout.order_rejected" {
				fields = f
			}
		},
	})

	if _, err := svc.PlaceOrder(ctx, store, validForm()); !errors.Is(err, rejection) {
		t.Fatalf("expected validator error, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected cart kept, got %d items", store.Len())
	}
	if fields["field"] != "email" {
		t.Fatalf("expected rejected field logged, got %v", fields)
	}
}

func TestPlaceOrderRequiresStore(t *testing.T) {
	svc := newTestService(t, ServiceDeps{})
	if _, err := svc.PlaceOrder(context.Background(), nil, validForm()); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestDefaultOrderIDIsPrefixedULID(t *testing.T) {
	svc, err := NewService(ServiceDeps{Validator: validatorStub{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	id := svc.newID()
	if len(id) != len(orderIDPrefix)+26 || id[:len(orderIDPrefix)] != orderIDPrefix {
		t.Fatalf("unexpected order id %q", id)
	}
}
