package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"optimeal/models"
)

// State is an immutable snapshot of the cart. Every transition builds a new
// State; a State handed out is never modified afterwards.
type State struct {
	items    map[string]models.CartItem
	order    []string
	subtotal int64
}

// Empty returns the empty cart.
func Empty() State {
	return State{}
}

// build derives the subtotal from the item set. The zero State stands for
// every empty cart so that empty snapshots compare equal.
func build(items map[string]models.CartItem, order []string) State {
	if len(items) == 0 {
		return State{}
	}
	var subtotal int64
	for _, it := range items {
		subtotal += it.LineTotal()
	}
	return State{items: items, order: order, subtotal: subtotal}
}

// Subtotal is the sum of price * quantity over all lines.
func (s State) Subtotal() int64 { return s.subtotal }

// Len returns the number of lines.
func (s State) Len() int { return len(s.items) }

// IsEmpty reports whether the cart has no lines.
func (s State) IsEmpty() bool { return len(s.items) == 0 }

// Keys returns the line keys in the order the lines were first added.
func (s State) Keys() []string { return slices.Clone(s.order) }

// Item returns the line stored under key.
func (s State) Item(key string) (models.CartItem, bool) {
	it, ok := s.items[key]
	if !ok {
		return models.CartItem{}, false
	}
	return copyItem(it), true
}

// Items returns the lines in insertion order.
func (s State) Items() []models.CartItem {
	out := make([]models.CartItem, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, copyItem(s.items[k]))
	}
	return out
}

// ItemMap returns the lines keyed by line key.
func (s State) ItemMap() map[string]models.CartItem {
	out := make(map[string]models.CartItem, len(s.items))
	for k, it := range s.items {
		out[k] = copyItem(it)
	}
	return out
}

// ItemsForProduct returns every variant line of a product.
func (s State) ItemsForProduct(productID string) []models.CartItem {
	var out []models.CartItem
	for _, k := range s.order {
		if it := s.items[k]; it.ProductID == productID {
			out = append(out, copyItem(it))
		}
	}
	return out
}

// TotalQuantityForProduct sums quantities across the variants of a product.
func (s State) TotalQuantityForProduct(productID string) int {
	total := 0
	for _, it := range s.items {
		if it.ProductID == productID {
			total += it.Quantity
		}
	}
	return total
}

// Equal compares two snapshots by value.
func (s State) Equal(o State) bool {
	return s.subtotal == o.subtotal &&
		slices.Equal(s.order, o.order) &&
		reflect.DeepEqual(s.items, o.items)
}

func (s State) with(key string, it models.CartItem) State {
	items := make(map[string]models.CartItem, len(s.items)+1)
	for k, v := range s.items {
		items[k] = v
	}
	order := slices.Clone(s.order)
	if _, ok := s.items[key]; !ok {
		order = append(order, key)
	}
	items[key] = copyItem(it)
	return build(items, order)
}

func (s State) without(key string) State {
	if _, ok := s.items[key]; !ok {
		return s
	}
	items := make(map[string]models.CartItem, len(s.items))
	for k, v := range s.items {
		if k != key {
			items[k] = v
		}
	}
	order := slices.DeleteFunc(slices.Clone(s.order), func(k string) bool { return k == key })
	return build(items, order)
}

// replace stores it under newKey in the position oldKey occupied, dropping
// oldKey.
func (s State) replace(oldKey, newKey string, it models.CartItem) State {
	if _, ok := s.items[oldKey]; !ok || oldKey == newKey {
		return s.with(newKey, it)
	}
	items := make(map[string]models.CartItem, len(s.items))
	for k, v := range s.items {
		if k != oldKey {
			items[k] = v
		}
	}
	_, existed := items[newKey]
	items[newKey] = copyItem(it)
	order := make([]string, 0, len(s.order))
	for _, k := range s.order {
		switch {
		case k == oldKey:
			order = append(order, newKey)
		case k == newKey && existed:
			// moved to oldKey's slot
		default:
			order = append(order, k)
		}
	}
	return build(items, order)
}

// copyItem detaches the sides slice so stored lines never share memory with
// callers.
func copyItem(it models.CartItem) models.CartItem {
	it.Sides = slices.Clone(it.Sides)
	return it
}

// ErrMalformedState is returned when a serialized cart does not have the
// {items, subtotal} shape.
var ErrMalformedState = errors.New("malformed cart snapshot")

// MarshalJSON writes {"items": {<key>: item}, "subtotal": n} with the items
// in insertion order.
func (s State) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"items":{`)
	for i, k := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		ib, err := json.Marshal(s.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(ib)
	}
	fmt.Fprintf(&buf, `},"subtotal":%d}`, s.subtotal)
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a snapshot written by MarshalJSON. Lines that cannot be
// stored (no product, quantity below one, quantity above stock, ids holding
// the key separator) are dropped, lines are re-keyed from their own product
// and side, and the subtotal is recomputed rather than trusted.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw struct {
		Items    json.RawMessage `json:"items"`
		Subtotal *float64        `json:"subtotal"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if raw.Subtotal == nil || len(raw.Items) == 0 || bytes.Equal(raw.Items, []byte("null")) {
		return ErrMalformedState
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Items))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: items is not an object", ErrMalformedState)
	}

	items := make(map[string]models.CartItem)
	var order []string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedState, err)
		}
		var it models.CartItem
		if err := dec.Decode(&it); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedState, err)
		}
		if it.ProductID == "" || it.Quantity < 1 || it.Quantity > it.Stock ||
			!ValidID(it.ProductID) || !ValidID(it.SelectedSide) {
			continue
		}
		key := ItemKey(it.ProductID, it.SelectedSide)
		if _, dup := items[key]; !dup {
			order = append(order, key)
		}
		items[key] = it
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}

	*s = build(items, order)
	return nil
}
