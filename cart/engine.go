package cart

import (
	"sync"

	"optimeal/models"
)

// Listener observes every accepted transition. Listeners run synchronously,
// in transition order, and must not dispatch commands themselves.
type Listener func(State)

// Engine owns the authoritative cart. All mutation goes through Dispatch.
type Engine struct {
	dispatchMu sync.Mutex // serializes transitions and their notifications
	mu         sync.RWMutex
	state      State
	listeners  map[int]Listener
	nextID     int
}

// NewEngine returns an engine holding an empty cart.
func NewEngine() *Engine {
	return &Engine{listeners: make(map[int]Listener)}
}

// Dispatch applies cmd and reports whether the cart changed.
func (e *Engine) Dispatch(cmd Command) bool { return e.Apply(cmd) }

// Apply runs cmds as one transition: no other command interleaves and
// listeners see only the final state. It reports whether that state differs
// from the one it started from.
func (e *Engine) Apply(cmds ...Command) bool {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	return e.apply(cmds)
}

// Exclusive runs fn with dispatch held. fn must use the apply it is given;
// calling Dispatch or Apply from fn deadlocks.
func (e *Engine) Exclusive(fn func(apply func(cmds ...Command) bool)) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	fn(func(cmds ...Command) bool { return e.apply(cmds) })
}

func (e *Engine) apply(cmds []Command) bool {
	e.mu.Lock()
	next, changed := e.state, false
	for _, cmd := range cmds {
		if s, ok := Reduce(next, cmd); ok {
			next, changed = s, true
		}
	}
	changed = changed && !next.Equal(e.state)
	if changed {
		e.state = next
	}
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(next)
		}
	}
	return changed
}

// Subscribe registers fn and returns a function removing it. Calling the
// returned function more than once is harmless.
func (e *Engine) Subscribe(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) Add(p models.Product) bool { return e.Dispatch(Add{Product: p}) }

func (e *Engine) AddItem(it models.CartItem) bool { return e.Dispatch(AddItem{Item: it}) }

func (e *Engine) UpdateItem(it models.CartItem, previousKey string) bool {
	return e.Dispatch(UpdateItem{Item: it, PreviousKey: previousKey})
}

func (e *Engine) Increase(key string) bool { return e.Dispatch(Increase{Key: key}) }

func (e *Engine) Decrease(key string) bool { return e.Dispatch(Decrease{Key: key}) }

func (e *Engine) SetQuantity(key string, n int) bool {
	return e.Dispatch(SetQuantity{Key: key, Quantity: n})
}

func (e *Engine) Remove(key string) bool { return e.Dispatch(Remove{Key: key}) }

func (e *Engine) Clear() bool { return e.Dispatch(Clear{}) }

// Subtotal of the current cart.
func (e *Engine) Subtotal() int64 { return e.State().Subtotal() }

// ItemsForProduct returns every variant line of a product.
func (e *Engine) ItemsForProduct(productID string) []models.CartItem {
	return e.State().ItemsForProduct(productID)
}

// TotalQuantityForProduct sums a product's quantity across its variants.
func (e *Engine) TotalQuantityForProduct(productID string) int {
	return e.State().TotalQuantityForProduct(productID)
}
