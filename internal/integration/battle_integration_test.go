package integration

import (
	"context"
	"testing"
	"time"

	"poker_arena/internal/domain"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAnswerFullBattle(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	b, u1, u2 := f.pairUp(t, 1400)

	// first answer of round 1 changes nothing visible on the battle
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 1, "raise", 1500, 80))
	snap, err := f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Battle.CurrentRound)
	assert.Equal(t, domain.RoundActive, snap.Rounds[0].Status)
	require.NotNil(t, snap.Rounds[0].Player1Action)
	assert.Equal(t, "raise", *snap.Rounds[0].Player1Action)
	assert.Nil(t, snap.Rounds[0].Player2Action)

	// the second answer resolves the round and opens the next one
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u2.ID, 1, "fold", 2100, 60))
	snap, err = f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundCompleted, snap.Rounds[0].Status)
	assert.Equal(t, domain.RoundActive, snap.Rounds[1].Status)
	assert.NotNil(t, snap.Rounds[1].StartedAt)
	assert.Equal(t, 2, snap.Battle.CurrentRound)
	assert.Equal(t, 80, snap.Battle.Player1Score)
	assert.Equal(t, 60, snap.Battle.Player2Score)

	// last round resolves the battle and decides the winner
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 2, "call", 900, 40))
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u2.ID, 2, "raise", 1100, 100))
	snap, err = f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleCompleted, snap.Battle.Status)
	assert.Equal(t, 120, snap.Battle.Player1Score)
	assert.Equal(t, 160, snap.Battle.Player2Score)
	require.NotNil(t, snap.Battle.WinnerID)
	assert.Equal(t, u2.ID, *snap.Battle.WinnerID)

	// a finished battle refuses further answers
	err = f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 2, "fold", 100, 0)
	assert.ErrorIs(t, err, service.ErrBattleClosed)
}

func TestSubmitAnswerDuplicateIsNoOp(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	b, u1, _ := f.pairUp(t, 1400)

	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 1, "raise", 1500, 80))
	// retry with a different payload must not overwrite the committed answer
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 1, "fold", 100, 0))

	snap, err := f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.Rounds[0].Player1Action)
	assert.Equal(t, "raise", *snap.Rounds[0].Player1Action)
	require.NotNil(t, snap.Rounds[0].Player1Score)
	assert.Equal(t, 80, *snap.Rounds[0].Player1Score)
}

func TestSubmitAnswerPendingRoundIsIgnored(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	b, u1, _ := f.pairUp(t, 1400)

	// round 2 is still pending; the submission is dropped, not recorded
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 2, "raise", 500, 90))

	snap, err := f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundPending, snap.Rounds[1].Status)
	assert.Nil(t, snap.Rounds[1].Player1Action)
	assert.Equal(t, 1, snap.Battle.CurrentRound)
}

func TestSubmitAnswerTieLeavesNoWinner(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	b, u1, u2 := f.pairUp(t, 1400)

	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 1, "raise", 900, 70))
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u2.ID, 1, "raise", 950, 70))

	snap, err := f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleCompleted, snap.Battle.Status)
	assert.Nil(t, snap.Battle.WinnerID)
}

func TestSubmitAnswerRejectsOutsiders(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	b, _, _ := f.pairUp(t, 1400)
	stranger := createUser(t, f.pool, 1400)

	err := f.battles.SubmitAnswer(ctx, b.ID, stranger.ID, 1, "raise", 500, 50)
	assert.ErrorIs(t, err, service.ErrNotParticipant)

	_, err = f.battles.Load(ctx, b.ID, stranger.ID)
	assert.ErrorIs(t, err, service.ErrNotParticipant)

	err = f.battles.SubmitAnswer(ctx, "00000000-0000-0000-0000-000000000000", stranger.ID, 1, "raise", 500, 50)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSubmitAnswerPublishesCommittedState(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	b, u1, u2 := f.pairUp(t, 1400)

	events := make(chan pubsub.Event, 16)
	unsub := f.broker.Subscribe(pubsub.BattleTopic(b.ID), func(ev pubsub.Event) {
		events <- ev
	})
	defer unsub()

	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 1, "raise", 800, 50))
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u2.ID, 1, "call", 900, 30))

	deadline := time.After(2 * time.Second)
	seen := map[string]int{}
	for len(seen) < 2 {
		select {
		case ev := <-events:
			seen[ev.Type]++
		case <-deadline:
			t.Fatalf("missing battle events, saw %v", seen)
		}
	}
	assert.GreaterOrEqual(t, seen[pubsub.EventBattleUpdated], 1)
}

func TestLeaveAwardsOpponent(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	b, u1, u2 := f.pairUp(t, 1400)

	require.NoError(t, f.battles.Leave(ctx, b.ID, u1.ID))

	snap, err := f.battles.Load(ctx, b.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleAbandoned, snap.Battle.Status)
	require.NotNil(t, snap.Battle.WinnerID)
	assert.Equal(t, u2.ID, *snap.Battle.WinnerID)

	// leaving a battle that is already over stays quiet
	require.NoError(t, f.battles.Leave(ctx, b.ID, u2.ID))
	snap, err = f.battles.Load(ctx, b.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, u2.ID, *snap.Battle.WinnerID)
}

func TestWatchdogAbandonsStalledBattle(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	b, u1, _ := f.pairUp(t, 1400)

	// only one side answered before the round stalled
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 1, "raise", 700, 60))

	// backdate the active round past the timeout window
	_, err := f.pool.Exec(ctx,
		`UPDATE battle_rounds SET started_at = now() - interval '10 minutes'
		 WHERE battle_id = $1 AND round_number = 1`, b.ID)
	require.NoError(t, err)

	w := service.NewWatchdog(f.pool, f.battles, time.Second)
	w.Sweep(ctx)

	snap, err := f.battles.Load(ctx, b.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleAbandoned, snap.Battle.Status)
	require.NotNil(t, snap.Battle.WinnerID)
	assert.Equal(t, u1.ID, *snap.Battle.WinnerID)
}

func TestHistoryListsRecentBattles(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	b, u1, u2 := f.pairUp(t, 1400)
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u1.ID, 1, "raise", 500, 80))
	require.NoError(t, f.battles.SubmitAnswer(ctx, b.ID, u2.ID, 1, "fold", 600, 20))

	history, err := f.battles.History(ctx, u1.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, b.ID, history[0].ID)
	assert.Equal(t, domain.BattleCompleted, history[0].Status)
}
