package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisChannel is a Channel and Publisher over redis pub/sub.
type RedisChannel struct {
	client *redis.Client
}

func NewRedisChannel(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

func (c *RedisChannel) Publish(ctx context.Context, channel string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[Emit] Failed to publish %s to %s: %v", ev.Name, channel, err)
		return err
	}
	log.Printf("[Emit] %s published to channel '%s'", ev.Name, channel)
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := c.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	s := &redisSubscription{
		ps:   ps,
		out:  make(chan Event, 64),
		done: make(chan struct{}),
	}
	go s.pump(channel)
	context.AfterFunc(ctx, func() { _ = s.Close() })
	log.Printf("[Realtime] listening on redis channel '%s'", channel)
	return s, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan Event
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) pump(channel string) {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("[Realtime] bad event on %s: %v", channel, err)
			continue
		}
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan Event { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
