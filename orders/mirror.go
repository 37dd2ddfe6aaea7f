package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"optimeal/models"
	"optimeal/realtime"
)

// maxHeld bounds status updates kept for orders the initial fetch has not
// delivered yet.
const maxHeld = 256

// FetchError is what FetchError reports after a failed authoritative fetch.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "could not load orders: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher is the order-fetch collaborator.
type Fetcher interface {
	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (models.Order, error)
}

// Listener receives the mirrored list after every change. It runs on the
// mirror's goroutine and must not call Lookup or Refetch synchronously.
type Listener func([]models.Order)

type view struct {
	orders  []models.Order
	loading bool
	err     error
}

// book is the state owned by a session goroutine.
type book struct {
	orders  []models.Order
	loading bool
	err     error
	held    []json.RawMessage
}

type op struct {
	apply   func(*book) bool
	applied chan struct{}
}

type session struct {
	ops    chan op
	cancel context.CancelFunc
	done   chan struct{}
	sub    realtime.Subscription
}

// post runs fn on the session goroutine and waits until its result is
// visible to readers. It reports false once the session has ended.
func (s *session) post(fn func(*book) bool) bool {
	o := op{apply: fn, applied: make(chan struct{})}
	select {
	case s.ops <- o:
	case <-s.done:
		return false
	}
	select {
	case <-o.applied:
		return true
	case <-s.done:
		return false
	}
}

// Mirror is the in-memory replica of the current user's orders. Push events
// and fetch results are applied one at a time by a single goroutine per
// signed-in session; readers see immutable snapshots.
type Mirror struct {
	fetcher Fetcher
	source  realtime.Channel
	channel string
	now     func() time.Time

	view atomic.Pointer[view]

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int

	life sync.Mutex // serializes Start and Stop
	mu   sync.Mutex
	run  *session
}

func NewMirror(fetcher Fetcher, source realtime.Channel, channel string) *Mirror {
	if channel == "" {
		channel = realtime.DefaultChannel
	}
	m := &Mirror{
		fetcher:   fetcher,
		source:    source,
		channel:   channel,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	m.view.Store(&view{})
	return m
}

// Start binds the mirror to a session. Signed out, the mirror stays empty and
// idle. Signed in, it subscribes to the order channel and fetches all orders.
// A failed subscription is returned but the mirror keeps running on fetches
// alone. Any previous session is stopped first.
func (m *Mirror) Start(ctx context.Context, signedIn bool) error {
	m.life.Lock()
	defer m.life.Unlock()
	m.stop()
	if !signedIn {
		log.Println("[Orders] signed out, mirror idle")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		ops:    make(chan op),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	var subErr error
	if m.source != nil {
		sub, err := m.source.Subscribe(runCtx, m.channel)
		if err != nil {
			log.Printf("[Orders] subscribe %s: %v", m.channel, err)
			subErr = fmt.Errorf("order events unavailable: %w", err)
		} else {
			s.sub = sub
		}
	}

	b := &book{loading: true}
	m.publish(b)

	m.mu.Lock()
	m.run = s
	m.mu.Unlock()

	go m.loop(runCtx, s, b)
	go m.fetchInto(runCtx, s)
	return subErr
}

// Stop releases the subscription and empties the mirror. Safe to call at any
// time and any number of times.
func (m *Mirror) Stop() {
	m.life.Lock()
	defer m.life.Unlock()
	m.stop()
}

func (m *Mirror) stop() {
	m.mu.Lock()
	s := m.run
	m.run = nil
	m.mu.Unlock()
	if s == nil {
		return
	}
	s.cancel()
	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			log.Printf("[Orders] closing subscription: %v", err)
		}
	}
	<-s.done
	m.publish(&book{})
}

func (m *Mirror) current() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run
}

func (m *Mirror) loop(ctx context.Context, s *session, b *book) {
	defer close(s.done)
	var events <-chan realtime.Event
	if s.sub != nil {
		events = s.sub.Events()
	}
	for {
		changed := false
		select {
		case <-ctx.Done():
			return
		case o := <-s.ops:
			if o.apply(b) {
				m.publish(b)
			}
			close(o.applied)
			continue
		case ev, ok := <-events:
			if !ok {
				log.Printf("[Orders] channel %s closed", m.channel)
				events = nil
				continue
			}
			changed = m.handle(b, ev)
		}
		if changed {
			m.publish(b)
		}
	}
}

func (m *Mirror) handle(b *book, ev realtime.Event) bool {
	var p realtime.OrderPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || len(p.Order) == 0 {
		log.Printf("[Orders] %s without order payload", ev.Name)
		return false
	}

	switch ev.Name {
	case realtime.EventNewOrder:
		o, err := decodeOrder(p.Order)
		if err != nil {
			log.Printf("[Orders] new-order: %v", err)
			return false
		}
		var added bool
		b.orders, added = InsertNew(b.orders, o)
		return added

	case realtime.EventOrderStatusUpdated:
		next, changed, err := ApplyStatusUpdate(b.orders, p.Order, m.now())
		if err != nil {
			log.Printf("[Orders] order-status-updated: %v", err)
			return false
		}
		if !changed && b.loading && len(b.held) < maxHeld {
			b.held = append(b.held, p.Order)
		}
		b.orders = next
		return changed
	}
	return false
}

func decodeOrder(raw json.RawMessage) (models.Order, error) {
	var head struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return models.Order{}, err
	}
	if head.ID == nil {
		return models.Order{}, ErrMissingID
	}
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (m *Mirror) fetchInto(ctx context.Context, s *session) error {
	list, err := m.fetcher.GetOrders(ctx)
	s.post(func(b *book) bool {
		b.loading = false
		if err != nil {
			b.err = &FetchError{Err: err}
			b.held = nil
			log.Printf("[Orders] fetch failed: %v", err)
			return true
		}
		b.err = nil
		b.orders = MergeSnapshot(b.orders, list)
		for _, raw := range b.held {
			b.orders, _, _ = ApplyStatusUpdate(b.orders, raw, m.now())
		}
		b.held = nil
		return true
	})
	return err
}

// Refetch runs the authoritative fetch again and merges it. It is a no-op
// while signed out.
func (m *Mirror) Refetch(ctx context.Context) error {
	s := m.current()
	if s == nil {
		return nil
	}
	if !s.post(func(b *book) bool {
		b.loading = true
		return true
	}) {
		return nil
	}
	return m.fetchInto(ctx, s)
}

// Lookup prefers the mirrored copy and falls back to a direct fetch, whose
// result is merged into the mirror while a session is running.
func (m *Mirror) Lookup(ctx context.Context, id int64) (models.Order, error) {
	if o, ok := m.OrderByID(id); ok {
		return o, nil
	}
	o, err := m.fetcher.GetOrderByID(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if s := m.current(); s != nil {
		s.post(func(b *book) bool {
			var changed bool
			b.orders, changed = Upsert(b.orders, o)
			return changed
		})
	}
	return o, nil
}

func (m *Mirror) publish(b *book) {
	v := &view{
		orders:  slices.Clone(b.orders),
		loading: b.loading,
		err:     b.err,
	}
	m.view.Store(v)

	m.lmu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lmu.Unlock()
	for _, fn := range fns {
		fn(slices.Clone(v.orders))
	}
}

// Subscribe registers fn for change notifications and returns its remover.
func (m *Mirror) Subscribe(fn Listener) func() {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.lmu.Unlock()
	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

// Orders returns every mirrored order, most recent first.
func (m *Mirror) Orders() []models.Order {
	return slices.Clone(m.view.Load().orders)
}

func (m *Mirror) ActiveOrders() []models.Order {
	return Active(m.view.Load().orders)
}

func (m *Mirror) HistoricalOrders() []models.Order {
	return Historical(m.view.Load().orders)
}

func (m *Mirror) OrderByID(id int64) (models.Order, bool) {
	list := m.view.Load().orders
	if i := indexOf(list, id); i >= 0 {
		return list[i], true
	}
	return models.Order{}, false
}

// Loading is true while an authoritative fetch is in flight.
func (m *Mirror) Loading() bool { return m.view.Load().loading }

// FetchError is the error of the last fetch, nil after a successful one.
func (m *Mirror) FetchError() error { return m.view.Load().err }
