// Package cart holds the shopper's line items for one page session, keeps them
// in sync with key-value storage and derives order totals.
package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/urbenshop/storefront/internal/catalog"
)

// DefaultStorageKey is the storage key the line items are persisted under.
const DefaultStorageKey = "cart"

// MaxQuantity is the largest quantity a line item can hold. Mutations saturate
// at it and Load rejects anything above it.
const MaxQuantity = math.MaxInt32

var errStorageRequired = errors.New("cart: storage is required")

var (
	// ErrInvalidProduct indicates an add without a product name.
	ErrInvalidProduct = errors.New("cart: invalid product")
	// ErrInvalidPrice indicates an add for an unknown product whose fallback price is not a finite non-negative number.
	ErrInvalidPrice = errors.New("cart: invalid price")
	// ErrItemNotFound indicates an index outside the current line items.
	ErrItemNotFound = errors.New("cart: item not found")
)

// LineItem is one distinct product in the cart. Name is the de-duplication key
// and Price the unit price captured when the product was first added.
type LineItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Pricing holds the flat shipping charge and the tax rate applied to the subtotal.
type Pricing struct {
	TaxRate  decimal.Decimal
	Shipping decimal.Decimal
}

// DefaultPricing is 8% tax and 10.00 shipping.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:  decimal.RequireFromString("0.08"),
		Shipping: decimal.RequireFromString("10.00"),
	}
}

// QuantityPolicy decides what happens when a quantity update reaches zero or below.
type QuantityPolicy int

const (
	// RemoveOnZero removes the line item.
	RemoveOnZero QuantityPolicy = iota
	// ClampToOne keeps the line item with quantity 1.
	ClampToOne
)

// ParseQuantityPolicy accepts "remove" and "clamp".
func ParseQuantityPolicy(value string) (QuantityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "remove":
		return RemoveOnZero, nil
	case "clamp":
		return ClampToOne, nil
	default:
		return RemoveOnZero, fmt.Errorf("cart: unknown quantity policy %q", value)
	}
}

func (p QuantityPolicy) String() string {
	if p == ClampToOne {
		return "clamp"
	}
	return "remove"
}

// Storage is the key-value collaborator. A missing key is reported as kvstore.ErrNotFound.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Catalog resolves authoritative prices by product name.
type Catalog interface {
	FindByName(name string) (catalog.Product, bool)
}

// CounterSink receives the total item count after every load and mutation.
type CounterSink interface {
	SetCount(n int)
}

// CounterSinkFunc adapts a function to CounterSink.
type CounterSinkFunc func(n int)

// SetCount calls f(n).
func (f CounterSinkFunc) SetCount(n int) { f(n) }

// MutationRecorder counts mutations by operation and result ("ok" or "rejected").
type MutationRecorder interface {
	CartMutation(op, result string)
}

// StoreDeps wires the collaborators of a Store.
type StoreDeps struct {
	Storage Storage
	Catalog Catalog
	Counter CounterSink
	Metrics MutationRecorder
	Key     string
	Pricing *Pricing
	Policy  QuantityPolicy
	Logger  func(context.Context, string, map[string]any)
}

// Store is the cart of a single page session. It is not safe for concurrent
// use; construct one per session and discard it afterwards.
type Store struct {
	storage Storage
	catalog Catalog
	counter CounterSink
	metrics MutationRecorder
	key     string
	pricing Pricing
	policy  QuantityPolicy
	logger  func(context.Context, string, map[string]any)

	items  []LineItem
	synced bool
}

// NewStore constructs an empty Store. Call Load to hydrate it from storage.
func NewStore(deps StoreDeps) (*Store, error) {
	if deps.Storage == nil {
		return nil, errStorageRequired
	}

	key := strings.TrimSpace(deps.Key)
	if key == "" {
		key = DefaultStorageKey
	}

	pricing := DefaultPricing()
	if deps.Pricing != nil {
		pricing = *deps.Pricing
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	counter := deps.Counter
	if counter == nil {
		counter = CounterSinkFunc(func(int) {})
	}

	return &Store{
		storage: deps.Storage,
		catalog: deps.Catalog,
		counter: counter,
		metrics: deps.Metrics,
		key:     key,
		pricing: pricing,
		policy:  deps.Policy,
		logger:  logger,
	}, nil
}
