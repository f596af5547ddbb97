package catalog

import (
	"math"
	"net/url"
	"strings"
)

// Price range keys accepted by Filter.PriceRange.
const (
	PriceLow    = "low"
	PriceMedium = "medium"
	PriceHigh   = "high"

	filterAll = "all"
)

type priceRange struct {
	min float64
	max float64
}

var priceRanges = map[string]priceRange{
	PriceLow:    {min: 0, max: 99.99},
	PriceMedium: {min: 100, max: 300},
	PriceHigh:   {min: 300.01, max: math.Inf(1)},
}

// Filter narrows the product listing. Zero values match everything.
type Filter struct {
	Search     string
	Category   string
	PriceRange string
}

// ParseFilter reads the q, category and price query parameters.
func ParseFilter(values url.Values) Filter {
	return Filter{
		Search:     values.Get("q"),
		Category:   values.Get("category"),
		PriceRange: values.Get("price"),
	}
}

// Matches reports whether p satisfies every active criterion. Search is a
// case-insensitive substring match on the name. An unknown price range key
// matches all prices.
func (f Filter) Matches(p Product) bool {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(p.Name), term) {
			return false
		}
	}

	if category := strings.ToLower(strings.TrimSpace(f.Category)); category != "" && category != filterAll {
		if p.Category != category {
			return false
		}
	}

	if key := strings.ToLower(strings.TrimSpace(f.PriceRange)); key != "" && key != filterAll {
		if r, ok := priceRanges[key]; ok {
			if p.Price < r.min || p.Price > r.max {
				return false
			}
		}
	}
	return true
}
