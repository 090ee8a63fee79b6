package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerDeliversToTopicSubscribers(t *testing.T) {
	b := NewMemoryBroker()

	var got []Event
	unsub := b.Subscribe("battle.b1", func(ev Event) {
		got = append(got, ev)
	})
	defer unsub()

	var other []Event
	unsubOther := b.Subscribe("battle.b2", func(ev Event) {
		other = append(other, ev)
	})
	defer unsubOther()

	ev, err := NewEvent(EventBattleUpdated, "battle.b1", map[string]string{"id": "b1"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "battle.b1", ev))

	require.Len(t, got, 1)
	assert.Equal(t, EventBattleUpdated, got[0].Type)
	assert.JSONEq(t, `{"id":"b1"}`, string(got[0].Payload))
	assert.Empty(t, other)
}

func TestMemoryBrokerUnsubscribeIsIdempotent(t *testing.T) {
	b := NewMemoryBroker()

	calls := 0
	unsub := b.Subscribe("queue.e1", func(Event) { calls++ })

	ev, err := NewEvent(EventQueueMatched, "queue.e1", map[string]string{"battle_id": "b1"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "queue.e1", ev))
	assert.Equal(t, 1, calls)

	unsub()
	unsub() // second call must be a no-op

	require.NoError(t, b.Publish(context.Background(), "queue.e1", ev))
	assert.Equal(t, 1, calls)
}

func TestMemoryBrokerPublishWithoutSubscribers(t *testing.T) {
	b := NewMemoryBroker()
	ev, err := NewEvent(EventRoundsUpdated, "battle.none", nil)
	require.NoError(t, err)
	assert.NoError(t, b.Publish(context.Background(), "battle.none", ev))
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "queue.e42", QueueTopic("e42"))
	assert.Equal(t, "battle.b42", BattleTopic("b42"))
}
