package cart

import (
	"reflect"
	"slices"

	"optimeal/models"
)

// Command is a cart transition. The set of commands is closed: Add, AddItem,
// UpdateItem, Increase, Decrease, SetQuantity, Remove and Clear.
type Command interface {
	command()
}

// Add puts one unit of a product without a side into the cart.
type Add struct {
	Product models.Product
}

// AddItem upserts a configured line. Merging sums quantities up to the stored
// stock ceiling; side and clarification of the incoming line win.
// Restored marks a line replayed from storage: its side was selectable when
// it was chosen, so a side retired since then is kept.
type AddItem struct {
	Item     models.CartItem
	Restored bool
}

// UpdateItem replaces the line at the item's own key. When the edit changed
// the side, PreviousKey names the line being rewritten so it is dropped in
// the same transition.
type UpdateItem struct {
	Item        models.CartItem
	PreviousKey string
}

// Increase adds one unit to an existing line.
type Increase struct {
	Key string
}

// Decrease removes one unit; the line disappears when it reaches zero.
type Decrease struct {
	Key string
}

// SetQuantity sets an absolute quantity; zero removes the line.
type SetQuantity struct {
	Key      string
	Quantity int
}

// Remove deletes a line.
type Remove struct {
	Key string
}

// Clear empties the cart.
type Clear struct{}

func (Add) command()         {}
func (AddItem) command()     {}
func (UpdateItem) command()  {}
func (Increase) command()    {}
func (Decrease) command()    {}
func (SetQuantity) command() {}
func (Remove) command()      {}
func (Clear) command()       {}

// Reduce applies cmd to s. It reports false, and returns s itself, when the
// command is rejected or changes nothing: exceeding stock, touching a missing
// line, selecting a side that is not active, ids that cannot form a key, or
// an unknown command.
func Reduce(s State, cmd Command) (State, bool) {
	switch c := cmd.(type) {
	case Add:
		return reduceAdd(s, c.Product)
	case AddItem:
		return reduceAddItem(s, c.Item, c.Restored)
	case UpdateItem:
		return reduceUpdate(s, c.Item, c.PreviousKey)
	case Increase:
		it, ok := s.items[c.Key]
		if !ok || it.Quantity >= it.Stock {
			return s, false
		}
		it.Quantity++
		return s.with(c.Key, it), true
	case Decrease:
		it, ok := s.items[c.Key]
		if !ok {
			return s, false
		}
		if it.Quantity <= 1 {
			return s.without(c.Key), true
		}
		it.Quantity--
		return s.with(c.Key, it), true
	case SetQuantity:
		it, ok := s.items[c.Key]
		if !ok || c.Quantity < 0 || c.Quantity > it.Stock {
			return s, false
		}
		if c.Quantity == 0 {
			return s.without(c.Key), true
		}
		if c.Quantity == it.Quantity {
			return s, false
		}
		it.Quantity = c.Quantity
		return s.with(c.Key, it), true
	case Remove:
		if _, ok := s.items[c.Key]; !ok {
			return s, false
		}
		return s.without(c.Key), true
	case Clear:
		if s.IsEmpty() {
			return s, false
		}
		return Empty(), true
	}
	return s, false
}

// sideAllowed accepts no side, an active side of the line, or the side the
// line being rewritten already carries, so legacy lines can be saved again.
func sideAllowed(s State, in models.CartItem, keys ...string) bool {
	if in.SelectedSide == "" || in.CanSelectSide(in.SelectedSide) {
		return true
	}
	for _, k := range keys {
		if it, ok := s.items[k]; ok && it.SelectedSide == in.SelectedSide {
			return true
		}
	}
	return false
}

func reduceAdd(s State, p models.Product) (State, bool) {
	if !ValidID(p.ID) {
		return s, false
	}
	key := ItemKey(p.ID, "")
	if it, ok := s.items[key]; ok {
		if it.Quantity >= it.Stock {
			return s, false
		}
		it.Quantity++
		return s.with(key, it), true
	}
	if p.ID == "" || p.Stock < 1 {
		return s, false
	}
	return s.with(key, models.CartItem{
		ProductID: p.ID,
		Quantity:  1,
		Price:     p.Price,
		Name:      p.Name,
		Photo:     p.Photo,
		Sides:     slices.Clone(p.Sides),
		Stock:     p.Stock,
	}), true
}

func reduceAddItem(s State, in models.CartItem, restored bool) (State, bool) {
	if in.ProductID == "" || in.Quantity < 1 || !ValidID(in.ProductID) || !ValidID(in.SelectedSide) {
		return s, false
	}
	key := ItemKey(in.ProductID, in.SelectedSide)
	if !restored && !sideAllowed(s, in, key) {
		return s, false
	}
	existing, ok := s.items[key]
	if !ok {
		in.Quantity = min(in.Quantity, in.Stock)
		if in.Quantity < 1 {
			return s, false
		}
		return s.with(key, in), true
	}

	merged := existing
	merged.Quantity = min(existing.Quantity+in.Quantity, existing.Stock)
	merged.SelectedSide = in.SelectedSide
	merged.Clarification = in.Clarification
	if reflect.DeepEqual(merged, existing) {
		return s, false
	}
	return s.with(key, merged), true
}

func reduceUpdate(s State, in models.CartItem, previousKey string) (State, bool) {
	key := ItemKey(in.ProductID, in.SelectedSide)
	if in.ProductID == "" || in.Quantity < 0 || in.Quantity > in.Stock ||
		!ValidID(in.ProductID) || !ValidID(in.SelectedSide) {
		return s, false
	}
	if in.Quantity > 0 && !sideAllowed(s, in, key, previousKey) {
		return s, false
	}
	if in.Quantity == 0 {
		next := s.without(key)
		if previousKey != "" {
			next = next.without(previousKey)
		}
		return next, !next.Equal(s)
	}
	if previousKey != "" && previousKey != key {
		return s.replace(previousKey, key, in), true
	}
	if existing, ok := s.items[key]; ok && reflect.DeepEqual(existing, in) {
		return s, false
	}
	return s.with(key, in), true
}
