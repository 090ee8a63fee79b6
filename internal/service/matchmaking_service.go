package service

import (
	"context"
	"time"

	"poker_arena/internal/domain"
	"poker_arena/internal/logger"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchmakingOptions are the deployment constants of the queue.
type MatchmakingOptions struct {
	MatchTimeout time.Duration
	RatingRange  int // ranked mode only; practice pairs regardless of rating
	TotalRounds  int
}

// MatchmakingService owns the waiting queue and the atomic pair-and-create
// step. Pairing, battle creation and round generation commit in one
// transaction: either both players end up in the same battle or neither does.
type MatchmakingService struct {
	db        *pgxpool.Pool
	queueRepo *repository.QueueRepository
	battles   *BattleService
	broker    pubsub.Broker
	opts      MatchmakingOptions
}

func NewMatchmakingService(db *pgxpool.Pool, battles *BattleService, broker pubsub.Broker, opts MatchmakingOptions) *MatchmakingService {
	return &MatchmakingService{
		db:        db,
		queueRepo: repository.NewQueueRepository(db),
		battles:   battles,
		broker:    broker,
		opts:      opts,
	}
}

// Enqueue puts the user into the queue for mode. If a compatible partner is
// already waiting the match commits atomically and the battle is returned;
// the partner learns about it on their queue topic. Otherwise the caller
// receives their waiting entry and must subscribe to its topic.
func (s *MatchmakingService) Enqueue(ctx context.Context, userID int64, mode domain.Mode, rating int) (*domain.MatchResult, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}

	var (
		result  *domain.MatchResult
		partner *domain.QueueEntry
		rounds  []*domain.BattleRound
	)

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		result, partner, rounds = nil, nil, nil

		// All pairing for one mode goes through this lock; two concurrent
		// enqueues can never both claim the same waiting entry.
		if err := s.queueRepo.LockModeTx(ctx, tx, mode); err != nil {
			return err
		}

		ratingRange := -1
		if mode == domain.ModeRanked {
			ratingRange = s.opts.RatingRange
		}

		found, err := s.queueRepo.FindPartnerTx(ctx, tx, mode, userID, rating, ratingRange)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		entry, err := s.queueRepo.InsertWaitingTx(ctx, tx, &domain.QueueEntry{
			ID:         uuid.NewString(),
			UserID:     userID,
			Mode:       mode,
			Rating:     rating,
			EnqueuedAt: now,
			ExpiresAt:  now.Add(s.opts.MatchTimeout),
		})
		if err != nil {
			return err
		}

		if found == nil {
			result = &domain.MatchResult{Entry: entry}
			return nil
		}

		b := &domain.Battle{
			ID:           uuid.NewString(),
			Player1ID:    found.UserID,
			Player2ID:    userID,
			Mode:         mode,
			Status:       domain.BattleActive,
			CurrentRound: 1,
			TotalRounds:  s.opts.TotalRounds,
		}
		if err := s.battles.battleRepo.InsertTx(ctx, tx, b); err != nil {
			return err
		}
		if rounds, err = s.battles.generateRoundsTx(ctx, tx, b); err != nil {
			return err
		}

		if err := s.queueRepo.MarkMatchedTx(ctx, tx, found.ID, b.ID); err != nil {
			return err
		}
		if err := s.queueRepo.MarkMatchedTx(ctx, tx, entry.ID, b.ID); err != nil {
			return err
		}

		partner = found
		result = &domain.MatchResult{Battle: b}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Matched() {
		BattlesCreated.WithLabelValues(string(mode)).Inc()
		logger.Info("players matched",
			"battle", result.Battle.ID, "mode", mode,
			"player1", result.Battle.Player1ID, "player2", result.Battle.Player2ID)

		s.notifyMatched(ctx, partner.ID, result.Battle.ID)
		s.battles.publishBattle(ctx, result.Battle, rounds)
	}

	return result, nil
}

// Cancel withdraws the user's waiting entry. Cancelling without one is a
// deliberate no-op so client retries and timeouts never error.
func (s *MatchmakingService) Cancel(ctx context.Context, userID int64) error {
	cancelled, err := s.queueRepo.CancelWaiting(ctx, userID)
	if err != nil {
		return err
	}
	if cancelled != nil {
		logger.Debug("queue entry cancelled", "user", userID, "entry", cancelled.ID)
	}
	return nil
}

// Entry loads a queue entry by id, for clients re-checking their wait state.
func (s *MatchmakingService) Entry(ctx context.Context, id string) (*domain.QueueEntry, error) {
	e, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// notifyMatched tells the waiting side which battle they are in, over the
// per-entry topic they subscribed to when enqueueing.
func (s *MatchmakingService) notifyMatched(ctx context.Context, entryID, battleID string) {
	topic := pubsub.QueueTopic(entryID)
	ev, err := pubsub.NewEvent(pubsub.EventQueueMatched, topic, map[string]string{"battle_id": battleID})
	if err == nil {
		err = s.broker.Publish(ctx, topic, ev)
	}
	if err != nil {
		logger.Error("publish queue.matched failed", "entry", entryID, "error", err)
	}
}
