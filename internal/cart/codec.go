package cart

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

var errUndecodable = errors.New("cart: stored value is not a JSON array")

// rejectedEntry describes a persisted record dropped during decoding.
type rejectedEntry struct {
	Index  int
	Reason string
}

// decodeItems validates every record of the persisted array on its own.
// Records sharing a name are merged: quantities add up and the first price wins.
func decodeItems(raw string) ([]LineItem, []rejectedEntry, error) {
	if !gjson.Valid(raw) {
		return nil, nil, errUndecodable
	}
	root := gjson.Parse(raw)
	if !root.IsArray() {
		return nil, nil, errUndecodable
	}

	var (
		items    []LineItem
		rejected []rejectedEntry
		byName   = make(map[string]int)
		index    = -1
	)
	root.ForEach(func(_, value gjson.Result) bool {
		index++
		item, reason := decodeItem(value)
		if reason != "" {
			rejected = append(rejected, rejectedEntry{Index: index, Reason: reason})
			return true
		}
		if pos, ok := byName[item.Name]; ok {
			items[pos].Quantity = addQuantity(items[pos].Quantity, item.Quantity)
			return true
		}
		byName[item.Name] = len(items)
		items = append(items, item)
		return true
	})
	return items, rejected, nil
}

func decodeItem(value gjson.Result) (LineItem, string) {
	if !value.IsObject() {
		return LineItem{}, "not an object"
	}

	name := value.Get("name")
	if name.Type != gjson.String {
		return LineItem{}, "name is not a string"
	}
	if strings.TrimSpace(name.Str) == "" {
		return LineItem{}, "name is empty"
	}

	price := value.Get("price")
	if price.Type != gjson.Number {
		return LineItem{}, "price is not a number"
	}
	p := price.Float()
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return LineItem{}, "price is out of range"
	}

	quantity := value.Get("quantity")
	if quantity.Type != gjson.Number {
		return LineItem{}, "quantity is not a number"
	}
	q := quantity.Float()
	if q != math.Trunc(q) {
		return LineItem{}, "quantity is not an integer"
	}
	if q < 1 || q > MaxQuantity {
		return LineItem{}, "quantity is out of range"
	}

	return LineItem{Name: name.Str, Price: p, Quantity: int(q)}, ""
}

// encodeItems renders the sequence as the persisted JSON array. An empty cart is "[]".
func encodeItems(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// addQuantity adds two non-negative quantities, saturating at MaxQuantity.
func addQuantity(a, b int) int {
	if b > 0 && a > MaxQuantity-b {
		return MaxQuantity
	}
	return a + b
}
