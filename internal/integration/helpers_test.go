package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"poker_arena/internal/domain"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/repository"
	"poker_arena/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var userSeq atomic.Int64

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applyMigrations(t, pool)

	// leftovers from an aborted run would get paired with this run's users
	_, err = pool.Exec(context.Background(),
		`UPDATE queue_entries SET status = 'cancelled' WHERE status = 'waiting'`)
	require.NoError(t, err)

	return pool
}

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	require.NoError(t, err)

	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		require.NoError(t, err)
		_, err = db.Exec(context.Background(), string(b))
		require.NoError(t, err, "apply migration %s", f.Name())
	}
}

func createUser(t *testing.T, pool *pgxpool.Pool, rating int) *domain.User {
	t.Helper()

	users := repository.NewUserRepository(pool)
	u := &domain.User{
		Username: fmt.Sprintf("it_%d_%d", time.Now().UnixNano(), userSeq.Add(1)),
		Rating:   rating,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

type fixture struct {
	pool        *pgxpool.Pool
	broker      *pubsub.MemoryBroker
	battles     *service.BattleService
	matchmaking *service.MatchmakingService
	engine      *service.Engine
}

func newFixture(t *testing.T, totalRounds int) *fixture {
	t.Helper()

	pool := testPool(t)
	broker := pubsub.NewMemoryBroker()
	battles := service.NewBattleService(pool, broker)
	matchmaking := service.NewMatchmakingService(pool, battles, broker, service.MatchmakingOptions{
		MatchTimeout: 2 * time.Minute,
		RatingRange:  200,
		TotalRounds:  totalRounds,
	})
	return &fixture{
		pool:        pool,
		broker:      broker,
		battles:     battles,
		matchmaking: matchmaking,
		engine:      service.NewEngine(matchmaking, battles),
	}
}

// pairUp enqueues two fresh compatible users and returns the created battle.
func (f *fixture) pairUp(t *testing.T, rating int) (*domain.Battle, *domain.User, *domain.User) {
	t.Helper()
	ctx := context.Background()

	u1 := createUser(t, f.pool, rating)
	u2 := createUser(t, f.pool, rating+10)

	res1, err := f.matchmaking.Enqueue(ctx, u1.ID, domain.ModeRanked, u1.Rating)
	require.NoError(t, err)
	require.False(t, res1.Matched())

	res2, err := f.matchmaking.Enqueue(ctx, u2.ID, domain.ModeRanked, u2.Rating)
	require.NoError(t, err)
	require.True(t, res2.Matched())
	require.Equal(t, u1.ID, res2.Battle.Player1ID)
	require.Equal(t, u2.ID, res2.Battle.Player2ID)

	return res2.Battle, u1, u2
}
