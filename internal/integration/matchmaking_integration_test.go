package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"poker_arena/internal/domain"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueuePairsTwoPlayers(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	b, u1, u2 := f.pairUp(t, 1000)

	assert.Equal(t, domain.BattleActive, b.Status)
	assert.Equal(t, 1, b.CurrentRound)
	assert.Equal(t, 3, b.TotalRounds)

	snap, err := f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	require.Len(t, snap.Rounds, 3)

	assert.Equal(t, domain.RoundActive, snap.Rounds[0].Status)
	assert.NotNil(t, snap.Rounds[0].StartedAt)
	for _, r := range snap.Rounds[1:] {
		assert.Equal(t, domain.RoundPending, r.Status)
		assert.Nil(t, r.StartedAt)
	}

	require.NotNil(t, snap.Opponent)
	assert.Equal(t, u2.ID, snap.Opponent.ID)
	assert.Equal(t, u2.Username, snap.Opponent.Username)

	// the same seed reproduces the same scenarios for both participants
	snap2, err := f.battles.Load(ctx, b.ID, u2.ID)
	require.NoError(t, err)
	for i := range snap.Rounds {
		assert.Equal(t, snap.Rounds[i].HeroHand, snap2.Rounds[i].HeroHand)
		assert.Equal(t, snap.Rounds[i].Scenario, snap2.Rounds[i].Scenario)
	}
}

func TestEnqueueNotifiesWaitingSide(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	u1 := createUser(t, f.pool, 1200)
	u2 := createUser(t, f.pool, 1210)

	res1, err := f.matchmaking.Enqueue(ctx, u1.ID, domain.ModeRanked, u1.Rating)
	require.NoError(t, err)
	require.False(t, res1.Matched())

	got := make(chan pubsub.Event, 1)
	unsub := f.broker.Subscribe(pubsub.QueueTopic(res1.Entry.ID), func(ev pubsub.Event) {
		got <- ev
	})
	defer unsub()

	res2, err := f.matchmaking.Enqueue(ctx, u2.ID, domain.ModeRanked, u2.Rating)
	require.NoError(t, err)
	require.True(t, res2.Matched())

	select {
	case ev := <-got:
		assert.Equal(t, pubsub.EventQueueMatched, ev.Type)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		assert.Equal(t, res2.Battle.ID, payload["battle_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("queue.matched was never delivered")
	}

	entry, err := f.matchmaking.Entry(ctx, res1.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueMatched, entry.Status)
	require.NotNil(t, entry.MatchedBattleID)
	assert.Equal(t, res2.Battle.ID, *entry.MatchedBattleID)
}

func TestEnqueueRespectsRatingBound(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	low := createUser(t, f.pool, 800)
	high := createUser(t, f.pool, 1600)

	res1, err := f.matchmaking.Enqueue(ctx, low.ID, domain.ModeRanked, low.Rating)
	require.NoError(t, err)
	assert.False(t, res1.Matched())

	// 800 points apart is far outside the ranked bound
	res2, err := f.matchmaking.Enqueue(ctx, high.ID, domain.ModeRanked, high.Rating)
	require.NoError(t, err)
	assert.False(t, res2.Matched())

	require.NoError(t, f.matchmaking.Cancel(ctx, low.ID))
	require.NoError(t, f.matchmaking.Cancel(ctx, high.ID))
}

func TestEnqueuePracticeIgnoresRating(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	low := createUser(t, f.pool, 800)
	high := createUser(t, f.pool, 2400)

	res1, err := f.matchmaking.Enqueue(ctx, low.ID, domain.ModePractice, low.Rating)
	require.NoError(t, err)
	require.False(t, res1.Matched())

	res2, err := f.matchmaking.Enqueue(ctx, high.ID, domain.ModePractice, high.Rating)
	require.NoError(t, err)
	require.True(t, res2.Matched())
	assert.Equal(t, domain.ModePractice, res2.Battle.Mode)
}

func TestEnqueueTwiceReturnsSameEntry(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	u := createUser(t, f.pool, 1000)

	res1, err := f.matchmaking.Enqueue(ctx, u.ID, domain.ModeRanked, u.Rating)
	require.NoError(t, err)
	require.False(t, res1.Matched())

	res2, err := f.matchmaking.Enqueue(ctx, u.ID, domain.ModeRanked, u.Rating)
	require.NoError(t, err)
	require.False(t, res2.Matched())
	assert.Equal(t, res1.Entry.ID, res2.Entry.ID)

	require.NoError(t, f.matchmaking.Cancel(ctx, u.ID))
}

func TestEnqueueInvalidMode(t *testing.T) {
	f := newFixture(t, 2)

	u := createUser(t, f.pool, 1000)
	_, err := f.matchmaking.Enqueue(context.Background(), u.ID, domain.Mode("tournament"), u.Rating)
	assert.ErrorIs(t, err, service.ErrInvalidMode)
}

func TestConcurrentEnqueuesPairEveryone(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	const players = 8
	users := make([]*domain.User, players)
	for i := range users {
		users[i] = createUser(t, f.pool, 1000+i)
	}

	results := make([]*domain.MatchResult, players)
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u *domain.User) {
			defer wg.Done()
			res, err := f.matchmaking.Enqueue(ctx, u.ID, domain.ModeRanked, u.Rating)
			assert.NoError(t, err)
			results[i] = res
		}(i, u)
	}
	wg.Wait()

	// every enqueue either matched immediately or its entry got claimed by
	// a later one, so in the end nobody is left waiting
	matched := 0
	for i, res := range results {
		require.NotNil(t, res)
		if res.Matched() {
			matched++
			continue
		}
		entry, err := f.matchmaking.Entry(ctx, res.Entry.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueueMatched, entry.Status, "player %d still waiting", i)
	}
	assert.Equal(t, players/2, matched)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	u := createUser(t, f.pool, 1000)

	// nothing enqueued yet
	require.NoError(t, f.matchmaking.Cancel(ctx, u.ID))

	res, err := f.matchmaking.Enqueue(ctx, u.ID, domain.ModeRanked, u.Rating)
	require.NoError(t, err)
	require.False(t, res.Matched())

	require.NoError(t, f.matchmaking.Cancel(ctx, u.ID))
	require.NoError(t, f.matchmaking.Cancel(ctx, u.ID))

	entry, err := f.matchmaking.Entry(ctx, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueCancelled, entry.Status)
}

func TestWatchdogExpiresStaleEntries(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	// a queue where entries are stale the moment they are created
	impatient := service.NewMatchmakingService(f.pool, f.battles, f.broker, service.MatchmakingOptions{
		MatchTimeout: -time.Second,
		RatingRange:  200,
		TotalRounds:  2,
	})

	u := createUser(t, f.pool, 1000)
	res, err := impatient.Enqueue(ctx, u.ID, domain.ModeRanked, u.Rating)
	require.NoError(t, err)
	require.False(t, res.Matched())

	w := service.NewWatchdog(f.pool, f.battles, 45*time.Second)
	w.Sweep(ctx)

	entry, err := f.matchmaking.Entry(ctx, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueCancelled, entry.Status)
}
