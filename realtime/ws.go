package realtime

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// WSChannel subscribes to a websocket endpoint that streams Event envelopes,
// such as the one served by WebSocketHandler. Dropped connections are
// redialled, at most once per ReconnectEvery.
type WSChannel struct {
	URL            string
	Dialer         *websocket.Dialer
	ReconnectEvery time.Duration
}

func NewWSChannel(rawURL string) *WSChannel {
	return &WSChannel{
		URL:            rawURL,
		Dialer:         websocket.DefaultDialer,
		ReconnectEvery: 2 * time.Second,
	}
}

func (c *WSChannel) endpoint(channel string) (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("channel", channel)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *WSChannel) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	target, err := c.endpoint(channel)
	if err != nil {
		return nil, fmt.Errorf("realtime url: %w", err)
	}
	conn, _, err := c.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	every := c.ReconnectEvery
	if every <= 0 {
		every = 2 * time.Second
	}
	subCtx, cancel := context.WithCancel(ctx)
	s := &wsSubscription{
		dialer:  c.Dialer,
		target:  target,
		conn:    conn,
		out:     make(chan Event, 64),
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
	go s.pump(subCtx)
	log.Printf("[Realtime] listening on %s", target)
	return s, nil
}

type wsSubscription struct {
	dialer  *websocket.Dialer
	target  string
	out     chan Event
	cancel  context.CancelFunc
	limiter *rate.Limiter
	once    sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscription) pump(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		s.read(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if !s.redial(ctx) {
			return
		}
	}
}

func (s *wsSubscription) read(ctx context.Context, conn *websocket.Conn) {
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Realtime] read %s: %v", s.target, err)
			}
			return
		}
		select {
		case s.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *wsSubscription) redial(ctx context.Context) bool {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return false
		}
		conn, _, err := s.dialer.DialContext(ctx, s.target, nil)
		if err != nil {
			log.Printf("[Realtime] reconnect %s: %v", s.target, err)
			continue
		}
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			conn.Close()
			return false
		}
		s.conn = conn
		s.mu.Unlock()
		log.Printf("[Realtime] reconnected to %s", s.target)
		return true
	}
}

func (s *wsSubscription) Events() <-chan Event { return s.out }

func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.conn.Close()
		s.mu.Unlock()
	})
	return nil
}
