package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/urbenshop/storefront/internal/catalog"
	"github.com/urbenshop/storefront/internal/platform/httpx"
)

// ProductHandlers serves the read-only catalog.
type ProductHandlers struct {
	catalog *catalog.Catalog
}

// NewProductHandlers constructs catalog handlers.
func NewProductHandlers(products *catalog.Catalog) *ProductHandlers {
	return &ProductHandlers{catalog: products}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)
}

type productListResponse struct {
	Products   []catalog.Product `json:"products"`
	Categories []string          `json:"categories"`
	Count      int               `json:"count"`
}

type productResponse struct {
	Product catalog.Product `json:"product"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	products := h.catalog.Search(catalog.ParseFilter(r.URL.Query()))
	if products == nil {
		products = []catalog.Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, productListResponse{
		Products:   products,
		Categories: h.catalog.Categories(),
		Count:      len(products),
	})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	raw := strings.TrimSpace(chi.URLParam(r, "productID"))
	id, err := strconv.Atoi(raw)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_product_id", "product id must be a number", http.StatusBadRequest))
		return
	}
	product, ok := h.catalog.FindByID(id)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productResponse{Product: product})
}
