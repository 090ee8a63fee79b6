package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"poker_arena/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker fans events out through Redis pub/sub so that every node of a
// clustered deployment sees every topic. Topic names map 1:1 to channels.
type RedisBroker struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*redisSub
}

type redisSub struct {
	pubsub   *redis.PubSub
	handlers map[int]Handler
	seq      int
	done     chan struct{}
}

// NewRedisBroker connects to Redis and verifies the connection.
func NewRedisBroker(addr, password string, db int) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisBroker{client: client, subs: make(map[string]*redisSub)}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, data).Err()
}

func (b *RedisBroker) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	sub, ok := b.subs[topic]
	if !ok {
		ps := b.client.Subscribe(context.Background(), topic)
		sub = &redisSub{
			pubsub:   ps,
			handlers: make(map[int]Handler),
			done:     make(chan struct{}),
		}
		b.subs[topic] = sub
		go b.pump(topic, sub)
	}
	sub.seq++
	id := sub.seq
	sub.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			cur, ok := b.subs[topic]
			if !ok || cur != sub {
				return
			}
			delete(cur.handlers, id)
			if len(cur.handlers) == 0 {
				close(cur.done)
				_ = cur.pubsub.Close()
				delete(b.subs, topic)
			}
		})
	}
}

// pump forwards redis messages to the topic's current handlers until the last
// subscriber leaves.
func (b *RedisBroker) pump(topic string, sub *redisSub) {
	ch := sub.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("pubsub: dropping malformed event", "topic", topic, "error", err)
				continue
			}
			b.mu.Lock()
			handlers := make([]Handler, 0, len(sub.handlers))
			for _, h := range sub.handlers {
				handlers = append(handlers, h)
			}
			b.mu.Unlock()
			for _, h := range handlers {
				h(ev)
			}
		case <-sub.done:
			return
		}
	}
}

// Close tears down every subscription and the underlying client.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for topic, sub := range b.subs {
		close(sub.done)
		_ = sub.pubsub.Close()
		delete(b.subs, topic)
	}
	b.mu.Unlock()
	return b.client.Close()
}
