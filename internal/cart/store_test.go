package cart

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/urbenshop/storefront/internal/catalog"
	"github.com/urbenshop/storefront/internal/kvstore"
)

type storageStub struct {
	values map[string]string
	getFn  func(ctx context.Context, key string) (string, error)
	setFn  func(ctx context.Context, key, value string) error
	writes []string
}

func newStorageStub() *storageStub {
	return &storageStub{values: map[string]string{}}
}

func (s *storageStub) Get(ctx context.Context, key string) (string, error) {
	if s.getFn != nil {
		return s.getFn(ctx, key)
	}
	value, ok := s.values[key]
	if !ok {
		return "", kvstore.ErrNotFound
	}
	return value, nil
}

func (s *storageStub) Set(ctx context.Context, key, value string) error {
	s.writes = append(s.writes, value)
	if s.setFn != nil {
		return s.setFn(ctx, key, value)
	}
	s.values[key] = value
	return nil
}

type catalogStub struct {
	products map[string]catalog.Product
}

func (c catalogStub) FindByName(name string) (catalog.Product, bool) {
	p, ok := c.products[name]
	return p, ok
}

type eventRecorder struct {
	events []string
}

func (r *eventRecorder) log(_ context.Context, event string, _ map[string]any) {
	r.events = append(r.events, event)
}

type mutationRecorder struct {
	calls []string
}

func (m *mutationRecorder) CartMutation(op, result string) {
	m.calls = append(m.calls, op+":"+result)
}

func newTestStore(t *testing.T, storage Storage, opts ...func(*StoreDeps)) *Store {
	t.Helper()
	deps := StoreDeps{Storage: storage, Catalog: catalog.Default()}
	for _, opt := range opts {
		opt(&deps)
	}
	store, err := NewStore(deps)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.Load(context.Background())
	return store
}

func TestNewStoreRequiresStorage(t *testing.T) {
	if _, err := NewStore(StoreDeps{}); err == nil {
		t.Fatalf("expected error without storage")
	}
}

func TestAddSameProductTwiceIncrementsQuantity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newStorageStub())

	if _, err := store.Add(ctx, "Designer Belt", 79.99); err != nil {
		t.Fatalf("first add: %v", err)
	}
	item, err := store.Add(ctx, "Designer Belt", 79.99)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected one line item, got %d", store.Len())
	}
	if item.Quantity != 2 || store.Items()[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %+v", store.Items())
	}
}

func TestAddPrefersCatalogPrice(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newStorageStub())

	item, err := store.Add(ctx, "Silver Watch", 1.00)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.Price != 399.99 {
		t.Fatalf("expected catalog price 399.99, got %v", item.Price)
	}
}

func TestAddUnknownProductUsesValidFallback(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newStorageStub())

	item, err := store.Add(ctx, "Gift Card", 25)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item != (LineItem{Name: "Gift Card", Price: 25, Quantity: 1}) {
		t.Fatalf("unexpected item %+v", item)
	}

	free, err := store.Add(ctx, "Sticker", 0)
	if err != nil || free.Price != 0 {
		t.Fatalf("expected zero fallback price to be accepted, got %+v, %v", free, err)
	}
}

func TestAddRejectsInvalidInputWithoutTouchingStorage(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	events := &eventRecorder{}
	metrics := &mutationRecorder{}
	store := newTestStore(t, storage, func(d *StoreDeps) {
		d.Logger = events.log
		d.Metrics = metrics
	})

	for _, price := range []float64{-0.01, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := store.Add(ctx, "Gift Card", price); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %v: expected ErrInvalidPrice, got %v", price, err)
		}
	}
	if _, err := store.Add(ctx, "   ", 10); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}

	if store.Len() != 0 {
		t.Fatalf("expected empty cart, got %+v", store.Items())
	}
	if len(storage.writes) != 0 {
		t.Fatalf("rejected adds must not write storage, got %v", storage.writes)
	}
	if len(events.events) != 5 || events.events[0] != "cart.add_rejected" {
		t.Fatalf("expected five add_rejected events, got %v", events.events)
	}
	if len(metrics.calls) != 5 || metrics.calls[0] != "add:rejected" {
		t.Fatalf("unexpected metrics %v", metrics.calls)
	}
}

func TestSetQuantityNonPositiveRemovesItem(t *testing.T) {
	for _, quantity := range []int{0, -3} {
		ctx := context.Background()
		store := newTestStore(t, newStorageStub())
		_, _ = store.Add(ctx, "Designer Belt", 79.99)
		_, _ = store.Add(ctx, "Leather Tote", 249.99)

		if err := store.SetQuantity(ctx, 0, quantity); err != nil {
			t.Fatalf("quantity %d: %v", quantity, err)
		}
		items := store.Items()
		if len(items) != 1 || items[0].Name != "Leather Tote" {
			t.Fatalf("quantity %d: expected belt removed, got %+v", quantity, items)
		}
	}
}

func TestSetQuantityClampPolicyKeepsItem(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newStorageStub(), func(d *StoreDeps) { d.Policy = ClampToOne })
	_, _ = store.Add(ctx, "Designer Belt", 79.99)
	_ = store.SetQuantity(ctx, 0, 5)

	if err := store.SetQuantity(ctx, 0, -2); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if items := store.Items(); len(items) != 1 || items[0].Quantity != 1 {
		t.Fatalf("expected clamp to 1, got %+v", items)
	}
	if err := store.AdjustQuantity(ctx, 0, -1); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if store.Items()[0].Quantity != 1 {
		t.Fatalf("expected clamp to hold after adjust, got %+v", store.Items())
	}
}

func TestSetQuantityUpdatesValue(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	store := newTestStore(t, storage)
	_, _ = store.Add(ctx, "Luxury Perfume", 89.99)

	if err := store.SetQuantity(ctx, 0, 4); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if store.ItemCount() != 4 {
		t.Fatalf("expected item count 4, got %d", store.ItemCount())
	}
	if got := storage.values[DefaultStorageKey]; got != `[{"name":"Luxury Perfume","price":89.99,"quantity":4}]` {
		t.Fatalf("unexpected persisted value %s", got)
	}
}

func TestOutOfRangeOperationsAreNoOps(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	store := newTestStore(t, storage)
	_, _ = store.Add(ctx, "Designer Belt", 79.99)
	_, _ = store.Add(ctx, "Leather Tote", 249.99)
	before := store.Items()
	writes := len(storage.writes)

	for _, index := range []int{-1, 99, 2} {
		if err := store.Remove(ctx, index); !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("remove(%d): expected ErrItemNotFound, got %v", index, err)
		}
		if err := store.SetQuantity(ctx, index, 3); !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("setQuantity(%d): expected ErrItemNotFound, got %v", index, err)
		}
		if err := store.AdjustQuantity(ctx, index, 1); !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("adjustQuantity(%d): expected ErrItemNotFound, got %v", index, err)
		}
	}

	if !reflect.DeepEqual(before, store.Items()) {
		t.Fatalf("cart changed: before %+v after %+v", before, store.Items())
	}
	if len(storage.writes) != writes {
		t.Fatalf("out of range operations must not write storage")
	}
}

func TestTotalsDerivation(t *testing.T) {
	store := newTestStore(t, newStorageStub())
	store.items = []LineItem{{Name: "A", Price: 10, Quantity: 2}, {Name: "B", Price: 5, Quantity: 1}}

	totals := store.Totals()
	assertMoney(t, "subtotal", totals.Subtotal, "25.00")
	assertMoney(t, "shipping", totals.Shipping, "10.00")
	assertMoney(t, "tax", totals.Tax, "2.00")
	assertMoney(t, "total", totals.Total, "37.00")
}

func TestTotalsEmptyCart(t *testing.T) {
	store := newTestStore(t, newStorageStub())

	totals := store.Totals()
	for name, value := range map[string]decimal.Decimal{
		"subtotal": totals.Subtotal,
		"shipping": totals.Shipping,
		"tax":      totals.Tax,
		"total":    totals.Total,
	} {
		assertMoney(t, name, value, "0.00")
	}
}

func TestTotalsRoundTaxToCents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newStorageStub())
	_, _ = store.Add(ctx, "Luxury Gold Watch", 299.99)

	totals := store.Totals()
	assertMoney(t, "subtotal", totals.Subtotal, "299.99")
	assertMoney(t, "tax", totals.Tax, "24.00")
	assertMoney(t, "total", totals.Total, "333.99")
}

func TestTotalsCustomPricing(t *testing.T) {
	pricing := Pricing{TaxRate: decimal.RequireFromString("0.1"), Shipping: decimal.Zero}
	store := newTestStore(t, newStorageStub(), func(d *StoreDeps) { d.Pricing = &pricing })
	store.items = []LineItem{{Name: "A", Price: 0.15, Quantity: 3}}

	totals := store.Totals()
	assertMoney(t, "subtotal", totals.Subtotal, "0.45")
	assertMoney(t, "shipping", totals.Shipping, "0.00")
	assertMoney(t, "tax", totals.Tax, "0.05")
	assertMoney(t, "total", totals.Total, "0.50")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	store := newTestStore(t, storage)
	_, _ = store.Add(ctx, "Diamond Necklace", 499.99)
	_, _ = store.Add(ctx, "Gift Card", 25.5)
	_, _ = store.Add(ctx, "Diamond Necklace", 499.99)
	_ = store.SetQuantity(ctx, 1, 3)

	fresh := newTestStore(t, storage)
	if !reflect.DeepEqual(store.Items(), fresh.Items()) {
		t.Fatalf("round trip mismatch: saved %+v loaded %+v", store.Items(), fresh.Items())
	}
	if !fresh.Synced() {
		t.Fatalf("expected synced after successful load")
	}
}

func TestQuantityCeilingSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	store := newTestStore(t, storage)
	_, _ = store.Add(ctx, "Luxury Gold Watch", 0)

	if err := store.SetQuantity(ctx, 0, MaxQuantity); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if err := store.AdjustQuantity(ctx, 0, 1); err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	_, _ = store.Add(ctx, "Luxury Gold Watch", 0)
	if got := store.Items()[0].Quantity; got != MaxQuantity {
		t.Fatalf("expected quantity capped at %d, got %d", MaxQuantity, got)
	}

	fresh := newTestStore(t, storage)
	if !reflect.DeepEqual(store.Items(), fresh.Items()) {
		t.Fatalf("round trip mismatch: saved %+v loaded %+v", store.Items(), fresh.Items())
	}
}

func TestSetQuantityCapsLargeValues(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	store := newTestStore(t, storage)
	_, _ = store.Add(ctx, "Silver Watch", 0)

	if err := store.SetQuantity(ctx, 0, math.MaxInt); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if got := store.Items()[0].Quantity; got != MaxQuantity {
		t.Fatalf("expected %d, got %d", MaxQuantity, got)
	}
	if fresh := newTestStore(t, storage); fresh.Len() != 1 {
		t.Fatalf("expected item to survive reload, got %d items", fresh.Len())
	}
}

func TestLoadMalformedStorageYieldsEmptyCart(t *testing.T) {
	cases := map[string]string{
		"not json":        "not json",
		"invalid entries": `[{"name":1,"price":-5,"quantity":0}]`,
		"object":          `{"name":"Silver Watch","price":1,"quantity":1}`,
		"empty string":    "",
		"null":            "null",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			storage := newStorageStub()
			storage.values[DefaultStorageKey] = raw
			counts := []int{}
			store := newTestStore(t, storage, func(d *StoreDeps) {
				d.Counter = CounterSinkFunc(func(n int) { counts = append(counts, n) })
			})

			if store.Len() != 0 {
				t.Fatalf("expected empty cart, got %+v", store.Items())
			}
			if !reflect.DeepEqual(counts, []int{0}) {
				t.Fatalf("expected one counter refresh with 0, got %v", counts)
			}
		})
	}
}

func TestLoadDiscardsInvalidEntriesIndividually(t *testing.T) {
	storage := newStorageStub()
	storage.values[DefaultStorageKey] = `[
		{"name":"Silver Watch","price":399.99,"quantity":2},
		{"name":"","price":10,"quantity":1},
		{"name":"Bad Price","price":"10","quantity":1},
		{"name":"Negative","price":-1,"quantity":1},
		{"name":"Fraction","price":5,"quantity":1.5},
		{"name":"Zero","price":5,"quantity":0},
		{"name":"Missing quantity","price":5},
		"Luxury Perfume",
		{"name":"Designer Belt","price":79.99,"quantity":1},
		{"name":"Silver Watch","price":1,"quantity":3}
	]`
	events := &eventRecorder{}
	store := newTestStore(t, storage, func(d *StoreDeps) { d.Logger = events.log })

	want := []LineItem{
		{Name: "Silver Watch", Price: 399.99, Quantity: 5},
		{Name: "Designer Belt", Price: 79.99, Quantity: 1},
	}
	if !reflect.DeepEqual(store.Items(), want) {
		t.Fatalf("expected %+v, got %+v", want, store.Items())
	}
	if len(events.events) != 7 {
		t.Fatalf("expected 7 rejected entries logged, got %v", events.events)
	}
	for _, event := range events.events {
		if event != "cart.entry_rejected" {
			t.Fatalf("unexpected event %s", event)
		}
	}
}

func TestLoadStorageFailureYieldsEmptyCart(t *testing.T) {
	storage := newStorageStub()
	storage.getFn = func(context.Context, string) (string, error) {
		return "", kvstore.ErrUnavailable
	}
	events := &eventRecorder{}
	store := newTestStore(t, storage, func(d *StoreDeps) { d.Logger = events.log })

	if store.Len() != 0 || store.Synced() {
		t.Fatalf("expected empty unsynced cart, got %+v synced=%v", store.Items(), store.Synced())
	}
	if !reflect.DeepEqual(events.events, []string{"cart.load_failed"}) {
		t.Fatalf("unexpected events %v", events.events)
	}
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	storage.setFn = func(context.Context, string, string) error {
		return kvstore.ErrQuotaExceeded
	}
	events := &eventRecorder{}
	store := newTestStore(t, storage, func(d *StoreDeps) { d.Logger = events.log })

	if _, err := store.Add(ctx, "Leather Tote", 249.99); err != nil {
		t.Fatalf("add must succeed despite storage failure: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected item kept in memory")
	}
	if store.Synced() {
		t.Fatalf("expected unsynced after failed save")
	}
	if !reflect.DeepEqual(events.events, []string{"cart.save_failed"}) {
		t.Fatalf("unexpected events %v", events.events)
	}

	storage.setFn = nil
	_ = store.AdjustQuantity(ctx, 0, 1)
	if !store.Synced() {
		t.Fatalf("expected synced after storage recovers")
	}
}

func TestEveryMutationSavesOnceAndRefreshesCounter(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	var counts []int
	metrics := &mutationRecorder{}
	store := newTestStore(t, storage, func(d *StoreDeps) {
		d.Counter = CounterSinkFunc(func(n int) { counts = append(counts, n) })
		d.Metrics = metrics
	})

	_, _ = store.Add(ctx, "Designer Belt", 79.99)
	_, _ = store.Add(ctx, "Leather Tote", 249.99)
	_ = store.AdjustQuantity(ctx, 1, 2)
	_ = store.SetQuantity(ctx, 0, 4)
	_ = store.Remove(ctx, 0)
	store.Clear(ctx)

	if len(storage.writes) != 6 {
		t.Fatalf("expected 6 writes, got %d", len(storage.writes))
	}
	if want := []int{0, 1, 2, 4, 7, 3, 0}; !reflect.DeepEqual(counts, want) {
		t.Fatalf("expected counter updates %v, got %v", want, counts)
	}
	if storage.values[DefaultStorageKey] != "[]" {
		t.Fatalf("expected cleared cart persisted as [], got %s", storage.values[DefaultStorageKey])
	}
	wantMetrics := []string{"add:ok", "add:ok", "set_quantity:ok", "set_quantity:ok", "remove:ok", "clear:ok"}
	if !reflect.DeepEqual(metrics.calls, wantMetrics) {
		t.Fatalf("expected metrics %v, got %v", wantMetrics, metrics.calls)
	}
}

func TestCustomKeyAndCatalog(t *testing.T) {
	ctx := context.Background()
	storage := newStorageStub()
	store := newTestStore(t, storage, func(d *StoreDeps) {
		d.Key = "basket"
		d.Catalog = catalogStub{products: map[string]catalog.Product{"Mug": {ID: 1, Name: "Mug", Price: 12}}}
	})

	item, _ := store.Add(ctx, "Mug", 99)
	if item.Price != 12 {
		t.Fatalf("expected stub catalog price, got %v", item.Price)
	}
	if _, ok := storage.values["basket"]; !ok {
		t.Fatalf("expected value under custom key, got %v", storage.values)
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	storage := kvstore.NewMemory()
	store := newTestStore(t, storage)

	if _, err := store.Add(ctx, "Luxury Gold Watch", 299.99); err != nil {
		t.Fatalf("add: %v", err)
	}
	want := []LineItem{{Name: "Luxury Gold Watch", Price: 299.99, Quantity: 1}}
	if !reflect.DeepEqual(store.Items(), want) {
		t.Fatalf("expected %+v, got %+v", want, store.Items())
	}

	_, _ = store.Add(ctx, "Luxury Gold Watch", 299.99)
	if store.Items()[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %+v", store.Items())
	}

	if err := store.AdjustQuantity(ctx, 0, -1); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if store.Items()[0].Quantity != 1 {
		t.Fatalf("expected quantity 1, got %+v", store.Items())
	}

	if err := store.Remove(ctx, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty cart")
	}
	raw, err := storage.Get(ctx, DefaultStorageKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if raw != "[]" {
		t.Fatalf("expected storage to hold an empty sequence, got %s", raw)
	}
}

func TestCoerceQuantity(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{2, 2},
		{2.9, 2},
		{-0.5, -1},
		{0, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{1e12, math.MaxInt32},
	}
	for _, tc := range cases {
		if got := CoerceQuantity(tc.in); got != tc.want {
			t.Errorf("CoerceQuantity(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseQuantityPolicy(t *testing.T) {
	if p, err := ParseQuantityPolicy("clamp"); err != nil || p != ClampToOne {
		t.Fatalf("expected ClampToOne, got %v %v", p, err)
	}
	if p, err := ParseQuantityPolicy(""); err != nil || p != RemoveOnZero {
		t.Fatalf("expected RemoveOnZero default, got %v %v", p, err)
	}
	if _, err := ParseQuantityPolicy("ignore"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func assertMoney(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if got.StringFixed(2) != want {
		t.Fatalf("%s: expected %s, got %s", name, want, got.StringFixed(2))
	}
}
