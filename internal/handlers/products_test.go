package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/urbenshop/storefront/internal/catalog"
)

func TestProductHandlers(t *testing.T) {
	router := NewRouter(WithProductRoutes(NewProductHandlers(catalog.Default()).Routes))

	t.Run("filter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products?category=watches&price=high", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var payload productListResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Count != 1 || payload.Products[0].Name != "Silver Watch" {
			t.Fatalf("unexpected products %+v", payload.Products)
		}
		if len(payload.Categories) != 4 {
			t.Fatalf("unexpected categories %v", payload.Categories)
		}
	})

	t.Run("no match", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products?q=umbrella", nil))
		var payload productListResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Count != 0 || payload.Products == nil {
			t.Fatalf("expected empty product list, got %+v", payload)
		}
	})

	t.Run("by id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/3", nil))
		var payload productResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rr.Code != http.StatusOK || payload.Product.Name != "Premium Sunglasses" {
			t.Fatalf("unexpected product %d %+v", rr.Code, payload.Product)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/42", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})
}
