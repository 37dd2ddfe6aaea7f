// Package realtime carries order events between the server and the local
// order mirror: redis pub/sub, a websocket client, an in-process channel and
// a websocket hub that fans events out to UI clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

const (
	DefaultChannel = "orders-realtime"

	EventNewOrder           = "new-order"
	EventOrderStatusUpdated = "order-status-updated"
)

var ErrClosed = errors.New("realtime: subscription closed")

// Event is the broadcast envelope: {"event": name, "payload": {...}}.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// OrderPayload is the payload shape of both order events.
type OrderPayload struct {
	Order json.RawMessage `json:"order"`
}

// NewOrderEvent wraps a marshalled order into an event.
func NewOrderEvent(name string, order any) (Event, error) {
	raw, err := json.Marshal(order)
	if err != nil {
		return Event{}, err
	}
	payload, err := json.Marshal(OrderPayload{Order: raw})
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Payload: payload}, nil
}

// Subscription delivers the events of one channel. Events is closed once the
// subscription ends. Close may be called any number of times.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Channel opens subscriptions to a named broadcast channel.
type Channel interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Publisher sends an event to every subscriber of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event) error
}
