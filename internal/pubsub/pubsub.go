// Package pubsub is the synchronization channel between the authoritative
// engine and client sessions: a named topic per queue entry and per battle,
// carrying authoritative state snapshots. Delivery is best-effort and
// at-least-once; subscribers must apply snapshots idempotently.
package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event types delivered to subscribed clients.
const (
	EventQueueMatched  = "queue.matched"
	EventBattleUpdated = "battle.updated"
	EventRoundsUpdated = "battle.rounds.updated"
)

// Event is the envelope published on a topic. At orders snapshots of the same
// logical state: subscribers keep whichever snapshot is freshest and drop the
// rest, so duplicates and reordering are harmless.
type Event struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives events for a subscribed topic.
type Handler func(ev Event)

// Broker is the transport-agnostic publish/subscribe contract. Subscribe
// returns an unsubscribe handle; calling it more than once is safe.
type Broker interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(topic string, h Handler) (unsubscribe func())
}

// QueueTopic names the per-entry topic a waiting player listens on.
func QueueTopic(entryID string) string {
	return "queue." + entryID
}

// BattleTopic names the per-battle topic both participants listen on.
func BattleTopic(battleID string) string {
	return "battle." + battleID
}

// NewEvent builds an envelope with the payload marshalled to JSON.
func NewEvent(eventType, topic string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Topic: topic, At: time.Now().UTC(), Payload: raw}, nil
}
