package cartstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"optimeal/cart"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"
)

const (
	// KeyPrefix namespaces every cart snapshot.
	KeyPrefix = "optimeal.cart.v1:"
	// AnonymousNamespace holds the cart of a signed-out device.
	AnonymousNamespace = KeyPrefix + "anonymous"
)

// Namespace maps an identity (signed-in email, or "" when signed out) to its
// storage key. Emails are digested so they never appear in keys.
func Namespace(identity string) string {
	id := strings.ToLower(strings.TrimSpace(identity))
	if id == "" {
		return AnonymousNamespace
	}
	sum := blake2b.Sum256([]byte(id))
	return KeyPrefix + "user:" + hex.EncodeToString(sum[:16])
}

// Options tune the deferred writer.
type Options struct {
	// IdleDelay is the quiet period a snapshot waits for before it is written;
	// every Save restarts it.
	IdleDelay time.Duration
	// WritesPerSecond throttles backend writes.
	WritesPerSecond float64
	// Timeout bounds a single backend call.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.IdleDelay <= 0 {
		o.IdleDelay = 50 * time.Millisecond
	}
	if o.WritesPerSecond <= 0 {
		o.WritesPerSecond = 20
	}
	if o.Timeout <= 0 {
		o.Timeout = 3 * time.Second
	}
	return o
}

type pendingWrite struct {
	data []byte
	seq  uint64
}

// Store persists cart snapshots per identity. Saves are fire-and-forget:
// they are queued, coalesced per key (last write wins) and written once the
// store has been idle for IdleDelay. Failures are logged, never returned.
type Store struct {
	backend Backend
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]pendingWrite
	seq     uint64
	closed  bool

	// flushMu serializes backend mutations so a Clear cannot be overtaken by
	// a write of the snapshot it cleared.
	flushMu sync.Mutex

	kick      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New starts a store writing through b.
func New(b Backend, opts Options) *Store {
	opts = opts.withDefaults()
	s := &Store{
		backend: b,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.WritesPerSecond), 1),
		pending: make(map[string]pendingWrite),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Save schedules a write of state under identity's namespace.
func (s *Store) Save(state cart.State, identity string) {
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("[CartStore] encode cart: %v", err)
		return
	}
	key := Namespace(identity)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Printf("[CartStore] save after close dropped for %s", key)
		return
	}
	s.seq++
	s.pending[key] = pendingWrite{data: data, seq: s.seq}
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Load returns the saved cart of identity. Missing, unreadable or malformed
// data yields the empty cart. A snapshot still waiting to be written wins
// over the backend copy.
func (s *Store) Load(ctx context.Context, identity string) cart.State {
	key := Namespace(identity)

	s.mu.Lock()
	p, queued := s.pending[key]
	s.mu.Unlock()

	data := p.data
	if !queued {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
		var err error
		data, err = s.backend.Get(opCtx, key)
		if errors.Is(err, ErrNotFound) {
			return cart.Empty()
		}
		if err != nil {
			log.Printf("[CartStore] load %s: %v", key, err)
			return cart.Empty()
		}
	}

	var state cart.State
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("[CartStore] discarding malformed cart %s: %v", key, err)
		return cart.Empty()
	}
	return state
}

// Clear removes identity's saved cart, including any queued write.
func (s *Store) Clear(ctx context.Context, identity string) {
	key := Namespace(identity)

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.backend.Delete(opCtx, key); err != nil {
		log.Printf("[CartStore] clear %s: %v", key, err)
	}
}

// ClearAll removes every namespaced cart. Used on full sign-out cleanup.
func (s *Store) ClearAll(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	s.pending = make(map[string]pendingWrite)
	s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	keys, err := s.backend.Keys(opCtx, KeyPrefix)
	if err != nil {
		log.Printf("[CartStore] list carts: %v", err)
		return
	}
	for _, k := range keys {
		if err := s.backend.Delete(opCtx, k); err != nil {
			log.Printf("[CartStore] clear %s: %v", k, err)
		}
	}
	log.Printf("[CartStore] cleared %d carts", len(keys))
}

// Flush writes every queued snapshot now.
func (s *Store) Flush(ctx context.Context) error {
	s.flush(ctx)
	return ctx.Err()
}

// Close flushes queued snapshots and stops the writer. Later calls are no-ops.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.kick:
		case <-s.done:
			s.flush(context.Background())
			return
		}

		timer := time.NewTimer(s.opts.IdleDelay)
	idle:
		for {
			select {
			case <-s.kick:
				timer.Reset(s.opts.IdleDelay)
			case <-timer.C:
				break idle
			case <-s.done:
				timer.Stop()
				s.flush(context.Background())
				return
			}
		}
		s.flush(context.Background())
	}
}

func (s *Store) flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := make(map[string]pendingWrite, len(s.pending))
	for k, p := range s.pending {
		batch[k] = p
	}
	s.mu.Unlock()

	for key, p := range batch {
		if err := s.limiter.Wait(ctx); err != nil {
			log.Printf("[CartStore] write %s deferred: %v", key, err)
			return
		}
		opCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		err := s.backend.Set(opCtx, key, p.data)
		cancel()
		if err != nil {
			log.Printf("[CartStore] write %s: %v", key, err)
			continue
		}

		s.mu.Lock()
		if cur, ok := s.pending[key]; ok && cur.seq == p.seq {
			delete(s.pending, key)
		}
		s.mu.Unlock()
	}
}
