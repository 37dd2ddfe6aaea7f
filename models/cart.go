package models

import "slices"

// ProductType classifies catalog entries (FOOD, BEVERAGE, ...). The core
// carries it through untouched.
type ProductType string

// Side is a selectable variant of a product (e.g. a garnish).
type Side struct {
	ID       string `json:"id" bson:"id"`
	Name     string `json:"name" bson:"name"`
	IsActive bool   `json:"isActive" bson:"isActive"`
}

// Product is a catalog entry as returned by the catalog service.
type Product struct {
	ID                   string      `json:"id" bson:"id"`
	Name                 string      `json:"name" bson:"name"`
	Description          string      `json:"description,omitempty" bson:"description,omitempty"`
	Price                int64       `json:"price" bson:"price"` // whole currency units, no decimals
	Photo                string      `json:"photo,omitempty" bson:"photo,omitempty"`
	Restrictions         []string    `json:"restrictions,omitempty" bson:"restrictions,omitempty"`
	Sides                []Side      `json:"sides,omitempty" bson:"sides,omitempty"`
	AdmitsClarifications bool        `json:"admitsClarifications" bson:"admitsClarifications"`
	Type                 ProductType `json:"type,omitempty" bson:"type,omitempty"`
	Stock                int         `json:"stock" bson:"stock"`
}

// MaxClarificationLen bounds the free-text note attached to a cart line.
const MaxClarificationLen = 200

// CartItem is one line of the cart. Name, price, photo, sides and stock are
// snapshots taken when the line was added or merged.
type CartItem struct {
	ProductID     string `json:"productId" bson:"productId"`
	Quantity      int    `json:"quantity" bson:"quantity"`
	Price         int64  `json:"price" bson:"price"`
	Name          string `json:"name" bson:"name"`
	Photo         string `json:"photo,omitempty" bson:"photo,omitempty"`
	Sides         []Side `json:"sides" bson:"sides"`
	SelectedSide  string `json:"selectedSide,omitempty" bson:"selectedSide,omitempty"`
	Clarification string `json:"clarification,omitempty" bson:"clarification,omitempty"`
	Stock         int    `json:"stock" bson:"stock"`
}

// ActiveSides returns the sides of the line that may still be selected.
// Inactive sides stay in Sides so legacy selections keep their names.
func (c CartItem) ActiveSides() []Side {
	var out []Side
	for _, s := range c.Sides {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

// HasActiveSides reports whether the line offers at least one selectable side.
func (c CartItem) HasActiveSides() bool { return len(c.ActiveSides()) > 0 }

// CanSelectSide reports whether id is an active side of the line.
func (c CartItem) CanSelectSide(id string) bool {
	return slices.ContainsFunc(c.ActiveSides(), func(s Side) bool { return s.ID == id })
}

// SideName resolves the display name of the selected side, including
// inactive sides chosen before they were retired.
func (c CartItem) SideName() string {
	for _, s := range c.Sides {
		if s.ID == c.SelectedSide {
			return s.Name
		}
	}
	return ""
}

// LineTotal is price * quantity.
func (c CartItem) LineTotal() int64 {
	return c.Price * int64(c.Quantity)
}
