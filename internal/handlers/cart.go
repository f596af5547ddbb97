package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/urbenshop/storefront/internal/cart"
	"github.com/urbenshop/storefront/internal/catalog"
	"github.com/urbenshop/storefront/internal/kvstore"
	"github.com/urbenshop/storefront/internal/platform/httpx"
	"github.com/urbenshop/storefront/internal/platform/requestctx"
)

const cartCountHeader = httpx.CartCountHeader

var errNoSession = errors.New("handlers: request has no shopper session")

// CartSessions opens the cart of the current shopper session. Every store it
// returns reads and writes under the session's own key namespace.
type CartSessions struct {
	base cart.StoreDeps
}

// NewCartSessions constructs a CartSessions. base.Storage is the shared backend;
// base.Counter is ignored because the count is reported per response.
func NewCartSessions(base cart.StoreDeps) (*CartSessions, error) {
	if base.Storage == nil {
		return nil, errors.New("cart sessions: storage is required")
	}
	return &CartSessions{base: base}, nil
}

// Open loads the session cart. The item count is published on the X-Cart-Count
// header of w after the load and after every mutation.
func (s *CartSessions) Open(ctx context.Context, w http.ResponseWriter) (*cart.Store, error) {
	sessionID := requestctx.SessionID(ctx)
	if sessionID == "" {
		return nil, errNoSession
	}
	deps := s.base
	deps.Storage = kvstore.Namespace(s.base.Storage, sessionID)
	deps.Counter = cart.CounterSinkFunc(func(n int) {
		w.Header().Set(cartCountHeader, strconv.Itoa(n))
	})
	store, err := cart.NewStore(deps)
	if err != nil {
		return nil, err
	}
	store.Load(ctx)
	return store, nil
}

// CartHandlers exposes the session cart endpoints.
type CartHandlers struct {
	sessions *CartSessions
	catalog  *catalog.Catalog
}

// NewCartHandlers constructs cart handlers. catalog supplies item images and may be nil.
func NewCartHandlers(sessions *CartSessions, products *catalog.Catalog) *CartHandlers {
	return &CartHandlers{sessions: sessions, catalog: products}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{index}", h.setQuantity)
	r.Post("/items/{index}/adjust", h.adjustQuantity)
	r.Delete("/items/{index}", h.removeItem)
}

type addItemRequest struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

type setQuantityRequest struct {
	Quantity *float64 `json:"quantity"`
}

type adjustQuantityRequest struct {
	Delta *float64 `json:"delta"`
}

type cartItemPayload struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal string  `json:"line_total"`
	Image     string  `json:"image"`
}

type totalsPayload struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type cartResponse struct {
	Items     []cartItemPayload `json:"items"`
	ItemCount int               `json:"item_count"`
	Totals    totalsPayload     `json:"totals"`
	Synced    bool              `json:"synced"`
	Message   string            `json:"message,omitempty"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.open(w, r)
	if !ok {
		return
	}
	h.writeCart(w, store, "")
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.open(w, r)
	if !ok {
		return
	}
	store.Clear(r.Context())
	h.writeCart(w, store, "Cart cleared")
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addItemRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	store, ok := h.open(w, r)
	if !ok {
		return
	}

	fallback := math.NaN()
	if req.Price != nil {
		fallback = *req.Price
	}
	item, err := store.Add(ctx, req.Name, fallback)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	h.writeCart(w, store, fmt.Sprintf("%s added to cart!", httpx.PlainText(item.Name)))
}

func (h *CartHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	index, ok := indexParam(ctx, w, r)
	if !ok {
		return
	}
	var req setQuantityRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest).WithField("quantity"))
		return
	}
	store, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := store.SetQuantity(ctx, index, cart.CoerceQuantity(*req.Quantity)); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	h.writeCart(w, store, "")
}

func (h *CartHandlers) adjustQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	index, ok := indexParam(ctx, w, r)
	if !ok {
		return
	}
	var req adjustQuantityRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Delta == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "delta is required", http.StatusBadRequest).WithField("delta"))
		return
	}
	store, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := store.AdjustQuantity(ctx, index, cart.CoerceQuantity(*req.Delta)); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	h.writeCart(w, store, "")
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	index, ok := indexParam(ctx, w, r)
	if !ok {
		return
	}
	store, ok := h.open(w, r)
	if !ok {
		return
	}
	name := ""
	if items := store.Items(); index >= 0 && index < len(items) {
		name = items[index].Name
	}
	if err := store.Remove(ctx, index); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	h.writeCart(w, store, fmt.Sprintf("%s removed from cart", httpx.PlainText(name)))
}

func (h *CartHandlers) open(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	return openSessionCart(w, r, h.sessions)
}

func openSessionCart(w http.ResponseWriter, r *http.Request, sessions *CartSessions) (*cart.Store, bool) {
	ctx := r.Context()
	if sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	store, err := sessions.Open(ctx, w)
	if err != nil {
		if errors.Is(err, errNoSession) {
			httpx.WriteError(ctx, w, httpx.NewError("session_required", "a shopper session is required", http.StatusBadRequest))
			return nil, false
		}
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	return store, true
}

func (h *CartHandlers) writeCart(w http.ResponseWriter, store *cart.Store, message string) {
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(store, h.catalog, message))
}

func buildCartResponse(store *cart.Store, products *catalog.Catalog, message string) cartResponse {
	return cartResponse{
		Items:     itemPayloads(store.Items(), products),
		ItemCount: store.ItemCount(),
		Totals:    totalsToPayload(store.Totals()),
		Synced:    store.Synced(),
		Message:   message,
	}
}

func itemPayloads(items []cart.LineItem, products *catalog.Catalog) []cartItemPayload {
	out := make([]cartItemPayload, 0, len(items))
	for i, item := range items {
		lineTotal := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		out = append(out, cartItemPayload{
			Index:     i,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			LineTotal: lineTotal.StringFixed(2),
			Image:     itemImage(products, item.Name, i),
		})
	}
	return out
}

func totalsToPayload(t cart.Totals) totalsPayload {
	return totalsPayload{
		Subtotal: t.Subtotal.StringFixed(2),
		Shipping: t.Shipping.StringFixed(2),
		Tax:      t.Tax.StringFixed(2),
		Total:    t.Total.StringFixed(2),
	}
}

// itemImage prefers the catalog image and otherwise cycles through the eight
// stock product images by position.
func itemImage(products *catalog.Catalog, name string, index int) string {
	if products != nil {
		if product, ok := products.FindByName(name); ok && strings.TrimSpace(product.Image) != "" {
			return product.Image
		}
	}
	return fmt.Sprintf("images/product%d.jpg", (index%8)+1)
}

func indexParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "index"))
	index, err := strconv.Atoi(raw)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_index", fmt.Sprintf("item index %q is not a number", raw), http.StatusBadRequest))
		return 0, false
	}
	return index, true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidProduct):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_product", "product name is required", http.StatusBadRequest).WithField("name"))
	case errors.Is(err, cart.ErrInvalidPrice):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_price", "price must be a non-negative number for products outside the catalog", http.StatusBadRequest).WithField("price"))
	case errors.Is(err, cart.ErrItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "cart item not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}
