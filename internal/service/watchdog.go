package service

import (
	"context"
	"time"

	"poker_arena/internal/domain"
	"poker_arena/internal/logger"
	"poker_arena/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Watchdog sweeps the store in the background: expired queue entries are
// cancelled and battles whose active round overran the round timeout are
// abandoned. It is the only collaborator allowed to abandon a battle without
// a participant asking for it.
type Watchdog struct {
	queueRepo    *repository.QueueRepository
	battleRepo   *repository.BattleRepository
	battles      *BattleService
	roundTimeout time.Duration
	interval     time.Duration
}

func NewWatchdog(db *pgxpool.Pool, battles *BattleService, roundTimeout time.Duration) *Watchdog {
	return &Watchdog{
		queueRepo:    repository.NewQueueRepository(db),
		battleRepo:   repository.NewBattleRepository(db),
		battles:      battles,
		roundTimeout: roundTimeout,
		interval:     5 * time.Second,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *Watchdog) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sweep performs one pass. Exported so tests can drive it without the timer.
func (w *Watchdog) Sweep(ctx context.Context) {
	if ids, err := w.queueRepo.ExpireStale(ctx); err != nil {
		logger.Error("queue expiry sweep failed", "error", err)
	} else if len(ids) > 0 {
		logger.Info("expired stale queue entries", "count", len(ids))
	}

	// Grace on top of the round timeout: clients get the full window before
	// the server gives up on the round.
	cutoff := int(w.roundTimeout.Seconds()) + 5
	ids, err := w.battleRepo.FindTimedOut(ctx, cutoff)
	if err != nil {
		logger.Error("battle timeout sweep failed", "error", err)
		return
	}
	for _, id := range ids {
		if err := w.battles.Abandon(ctx, id); err != nil {
			logger.Error("abandoning stalled battle failed", "battle", id, "error", err)
		} else {
			logger.Info("stalled battle abandoned", "battle", id)
		}
	}

	for _, mode := range []domain.Mode{domain.ModeRanked, domain.ModePractice} {
		if n, err := w.queueRepo.WaitingDepth(ctx, mode); err == nil {
			QueueDepth.WithLabelValues(string(mode)).Set(float64(n))
		}
	}
}
