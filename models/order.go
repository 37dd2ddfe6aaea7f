package models

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var statusRank = map[OrderStatus]int{
	OrderPending:   0,
	OrderPreparing: 1,
	OrderReady:     2,
	OrderDelivered: 3,
	OrderCancelled: 3,
}

// Known reports whether s is one of the lifecycle statuses.
func (s OrderStatus) Known() bool {
	_, ok := statusRank[s]
	return ok
}

// IsActive is true for orders still moving through the kitchen.
func (s OrderStatus) IsActive() bool {
	return s == OrderPending || s == OrderPreparing || s == OrderReady
}

// IsHistorical is true for delivered and cancelled orders.
func (s OrderStatus) IsHistorical() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransition reports whether an order in status s may move to next.
// Forward moves may skip steps, since pushes can be missed. Cancelling is only
// possible before the order is ready, and terminal statuses never change.
// An order whose current status is unrecognized accepts any known status.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	from, ok := statusRank[s]
	if !ok || s == next {
		return true
	}
	if s.IsHistorical() {
		return false
	}
	if next == OrderCancelled {
		return s == OrderPending || s == OrderPreparing
	}
	return to > from
}

type OrderSide struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrderProduct is the product snapshot stored on an order line.
type OrderProduct struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
	Price int64  `json:"price,omitempty"`
}

type OrderItem struct {
	ProductID string       `json:"productId"`
	Product   OrderProduct `json:"product"`
	Quantity  int          `json:"quantity"`
	SideID    string       `json:"sideId,omitempty"`
	Side      *OrderSide   `json:"side,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	Price     int64        `json:"price"`
}

// Order is the server's order record as mirrored by the client.
type Order struct {
	ID         int64       `json:"id"`
	UserID     string      `json:"userId,omitempty"`
	Status     OrderStatus `json:"status"`
	TotalPrice int64       `json:"totalPrice"`
	Shift      string      `json:"shift,omitempty"`
	PickUpTime time.Time   `json:"pickUpTime"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	OrderItems []OrderItem `json:"orderItems"`
}
