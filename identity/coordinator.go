package identity

import (
	"context"
	"log"
	"sync"

	"optimeal/cart"
)

// Source is the authentication collaborator: the current identity (signed-in
// email, "" when signed out) and change notifications.
type Source interface {
	Current() string
	Subscribe(fn func(identity string)) (unsubscribe func())
}

// CartStore is the persistence the coordinator swaps carts through.
type CartStore interface {
	Save(state cart.State, identity string)
	Load(ctx context.Context, identity string) cart.State
}

// Coordinator keeps the engine holding the cart of whoever is signed in and
// writes every accepted transition to that identity's namespace.
type Coordinator struct {
	engine *cart.Engine
	store  CartStore
	source Source

	swapMu    sync.Mutex
	mu        sync.Mutex
	observed  string
	started   bool
	switching bool

	stopEngine func()
	stopSource func()
	stopOnce   sync.Once
}

func NewCoordinator(engine *cart.Engine, store CartStore, source Source) *Coordinator {
	return &Coordinator{engine: engine, store: store, source: source}
}

// Start loads the cart of the current identity and begins following
// identity changes.
func (c *Coordinator) Start(ctx context.Context) {
	c.stopEngine = c.engine.Subscribe(c.persist)
	c.swap(ctx, c.source.Current(), true)
	c.stopSource = c.source.Subscribe(func(id string) {
		c.swap(context.Background(), id, false)
	})
}

// Stop detaches from the engine and the identity source.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		if c.stopSource != nil {
			c.stopSource()
		}
		if c.stopEngine != nil {
			c.stopEngine()
		}
	})
}

// Observed returns the identity whose cart is loaded.
func (c *Coordinator) Observed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observed
}

func (c *Coordinator) persist(s cart.State) {
	c.mu.Lock()
	switching, id := c.switching, c.observed
	c.mu.Unlock()
	if switching {
		return
	}
	c.store.Save(s, id)
}

// swap replaces the engine's cart with identity's saved cart. The replacement
// and the change of identity happen with dispatch held, so every command lands
// wholly in one cart and is saved under that cart's identity. The swap itself
// is not saved back.
func (c *Coordinator) swap(ctx context.Context, id string, initial bool) {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	c.mu.Lock()
	if c.started && !initial && id == c.observed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	saved := c.store.Load(ctx, id)
	cmds := []cart.Command{cart.Clear{}}
	for _, it := range saved.Items() {
		cmds = append(cmds, cart.AddItem{Item: it, Restored: true})
	}

	c.engine.Exclusive(func(apply func(...cart.Command) bool) {
		c.mu.Lock()
		c.switching = true
		c.mu.Unlock()

		apply(cmds...)

		c.mu.Lock()
		c.observed = id
		c.started = true
		c.switching = false
		c.mu.Unlock()
	})

	log.Printf("[Identity] cart swapped signedIn=%t lines=%d", id != "", saved.Len())
}
