package cart

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/urbenshop/storefront/internal/kvstore"
)

const (
	resultOK       = "ok"
	resultRejected = "rejected"
)

// Load replaces the in-memory items with the persisted sequence. It never
// fails: a missing, unreadable or undecodable value yields an empty cart, and
// invalid records are dropped one by one.
func (s *Store) Load(ctx context.Context) {
	s.items = nil
	defer s.refreshCounter()

	raw, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.synced = true
		return
	}
	if err != nil {
		s.synced = false
		s.logger(ctx, "cart.load_failed", map[string]any{"key": s.key, "error": err.Error()})
		return
	}
	s.synced = true
	if strings.TrimSpace(raw) == "" {
		return
	}

	items, rejected, err := decodeItems(raw)
	if err != nil {
		s.logger(ctx, "cart.decode_failed", map[string]any{"key": s.key, "error": err.Error()})
		return
	}
	for _, entry := range rejected {
		s.logger(ctx, "cart.entry_rejected", map[string]any{
			"key":    s.key,
			"index":  entry.Index,
			"reason": entry.Reason,
		})
	}
	s.items = items
}

// Save writes the current sequence to storage. Failures, quota exhaustion
// included, are logged and reflected by Synced; memory stays authoritative.
func (s *Store) Save(ctx context.Context) {
	raw, err := encodeItems(s.items)
	if err == nil {
		err = s.storage.Set(ctx, s.key, raw)
	}
	if err != nil {
		s.synced = false
		fields := map[string]any{"key": s.key, "error": err.Error()}
		if errors.Is(err, kvstore.ErrQuotaExceeded) {
			fields["quota_exceeded"] = true
		}
		s.logger(ctx, "cart.save_failed", fields)
		return
	}
	s.synced = true
}

// Synced reports whether the last storage read or write succeeded.
func (s *Store) Synced() bool { return s.synced }

// Add puts one unit of the named product in the cart. The catalog price wins
// over fallbackPrice; without a catalog entry fallbackPrice must be finite and
// non-negative.
func (s *Store) Add(ctx context.Context, name string, fallbackPrice float64) (LineItem, error) {
	if strings.TrimSpace(name) == "" {
		s.reject(ctx, "add", ErrInvalidProduct, map[string]any{})
		return LineItem{}, ErrInvalidProduct
	}

	price, ok := s.catalogPrice(name)
	if !ok {
		if math.IsNaN(fallbackPrice) || math.IsInf(fallbackPrice, 0) || fallbackPrice < 0 {
			s.reject(ctx, "add", ErrInvalidPrice, map[string]any{"name": name})
			return LineItem{}, ErrInvalidPrice
		}
		price = fallbackPrice
	}

	var item LineItem
	if idx := s.indexOf(name); idx >= 0 {
		s.items[idx].Quantity = addQuantity(s.items[idx].Quantity, 1)
		item = s.items[idx]
	} else {
		item = LineItem{Name: name, Price: price, Quantity: 1}
		s.items = append(s.items, item)
	}

	s.commit(ctx, "add")
	return item, nil
}

// SetQuantity replaces the quantity at index. A quantity of zero or less
// removes the item, or keeps it at 1 under ClampToOne. Larger quantities are
// capped at MaxQuantity.
func (s *Store) SetQuantity(ctx context.Context, index, quantity int) error {
	if !s.inRange(index) {
		s.reject(ctx, "set_quantity", ErrItemNotFound, map[string]any{"index": index})
		return ErrItemNotFound
	}

	if quantity <= 0 {
		if s.policy == ClampToOne {
			s.items[index].Quantity = 1
		} else {
			s.items = append(s.items[:index], s.items[index+1:]...)
		}
	} else {
		s.items[index].Quantity = min(quantity, MaxQuantity)
	}

	s.commit(ctx, "set_quantity")
	return nil
}

// AdjustQuantity adds delta to the quantity at index, then behaves as SetQuantity.
func (s *Store) AdjustQuantity(ctx context.Context, index, delta int) error {
	if !s.inRange(index) {
		s.reject(ctx, "adjust_quantity", ErrItemNotFound, map[string]any{"index": index})
		return ErrItemNotFound
	}
	current := s.items[index].Quantity
	next := current + delta
	if delta > 0 && current > MaxQuantity-delta {
		next = MaxQuantity
	}
	return s.SetQuantity(ctx, index, next)
}

// Remove deletes the line item at index.
func (s *Store) Remove(ctx context.Context, index int) error {
	if !s.inRange(index) {
		s.reject(ctx, "remove", ErrItemNotFound, map[string]any{"index": index})
		return ErrItemNotFound
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	s.commit(ctx, "remove")
	return nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.items = nil
	s.commit(ctx, "clear")
}

// Items returns a copy of the line items in display order.
func (s *Store) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len reports the number of distinct line items.
func (s *Store) Len() int { return len(s.items) }

// ItemCount sums the quantities of all line items.
func (s *Store) ItemCount() int {
	count := 0
	for _, item := range s.items {
		count = addQuantity(count, item.Quantity)
	}
	return count
}

// CoerceQuantity converts free-form numeric input to a quantity by flooring.
// NaN and infinities become 0 and the result is clamped to the int range.
func CoerceQuantity(value float64) int {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	floored := math.Floor(value)
	if floored >= MaxQuantity {
		return MaxQuantity
	}
	if floored <= math.MinInt32 {
		return math.MinInt32
	}
	return int(floored)
}

func (s *Store) commit(ctx context.Context, op string) {
	s.Save(ctx)
	s.refreshCounter()
	if s.metrics != nil {
		s.metrics.CartMutation(op, resultOK)
	}
}

func (s *Store) reject(ctx context.Context, op string, err error, fields map[string]any) {
	fields["error"] = err.Error()
	s.logger(ctx, "cart."+op+"_rejected", fields)
	if s.metrics != nil {
		s.metrics.CartMutation(op, resultRejected)
	}
}

func (s *Store) refreshCounter() {
	s.counter.SetCount(s.ItemCount())
}

func (s *Store) catalogPrice(name string) (float64, bool) {
	if s.catalog == nil {
		return 0, false
	}
	product, ok := s.catalog.FindByName(name)
	if !ok {
		return 0, false
	}
	return product.Price, true
}

func (s *Store) indexOf(name string) int {
	for i, item := range s.items {
		if item.Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) inRange(index int) bool {
	return index >= 0 && index < len(s.items)
}
