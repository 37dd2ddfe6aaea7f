package realtime

import (
	"context"
	"sync"
)

// LocalChannel is an in-process Channel and Publisher. Publish blocks until
// every current subscriber took the event or went away.
type LocalChannel struct {
	mu   sync.Mutex
	subs map[string]map[*localSubscription]struct{}
}

func NewLocalChannel() *LocalChannel {
	return &LocalChannel{subs: make(map[string]map[*localSubscription]struct{})}
}

func (c *LocalChannel) Subscribe(_ context.Context, channel string) (Subscription, error) {
	s := &localSubscription{
		owner:   c,
		channel: channel,
		out:     make(chan Event, 16),
		done:    make(chan struct{}),
	}
	c.mu.Lock()
	if c.subs[channel] == nil {
		c.subs[channel] = make(map[*localSubscription]struct{})
	}
	c.subs[channel][s] = struct{}{}
	c.mu.Unlock()
	return s, nil
}

func (c *LocalChannel) Publish(ctx context.Context, channel string, ev Event) error {
	c.mu.Lock()
	targets := make([]*localSubscription, 0, len(c.subs[channel]))
	for s := range c.subs[channel] {
		targets = append(targets, s)
	}
	c.mu.Unlock()

	for _, s := range targets {
		if err := s.deliver(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions on channel.
func (c *LocalChannel) Subscribers(channel string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[channel])
}

type localSubscription struct {
	owner   *LocalChannel
	channel string
	out     chan Event
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

func (s *localSubscription) deliver(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.out <- ev:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *localSubscription) Events() <-chan Event { return s.out }

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.owner.mu.Lock()
		delete(s.owner.subs[s.channel], s)
		s.owner.mu.Unlock()

		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
	return nil
}
