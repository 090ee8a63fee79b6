package service

import (
	"context"
	"time"

	"poker_arena/internal/domain"
	"poker_arena/internal/logger"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/repository"
	"poker_arena/internal/scenario"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BattleService owns the per-battle state machine: round generation, answer
// reconciliation, scoring and the terminal transitions. Every mutation runs in
// a single transaction and publishes the committed state to the battle topic.
type BattleService struct {
	db         *pgxpool.Pool
	battleRepo *repository.BattleRepository
	userRepo   *repository.UserRepository
	broker     pubsub.Broker
}

func NewBattleService(db *pgxpool.Pool, broker pubsub.Broker) *BattleService {
	return &BattleService{
		db:         db,
		battleRepo: repository.NewBattleRepository(db),
		userRepo:   repository.NewUserRepository(db),
		broker:     broker,
	}
}

// GenerateRounds creates the battle's full round sequence: round 1 active,
// the rest pending. Idempotent - both clients may race to call it after
// detecting a round-less battle, the loser of the race is a no-op.
func (s *BattleService) GenerateRounds(ctx context.Context, battleID string) error {
	var published struct {
		battle *domain.Battle
		rounds []*domain.BattleRound
	}

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.battleRepo.GetForUpdateTx(ctx, tx, battleID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if b.Terminal() {
			return ErrBattleClosed
		}

		n, err := s.battleRepo.CountRoundsTx(ctx, tx, battleID)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		rounds, err := s.generateRoundsTx(ctx, tx, b)
		if err != nil {
			return err
		}
		published.battle, published.rounds = b, rounds
		return nil
	})
	if err != nil {
		return err
	}

	if published.battle != nil {
		s.publishBattle(ctx, published.battle, published.rounds)
	}
	return nil
}

// generateRoundsTx inserts the round sequence for b inside the caller's
// transaction. Also used by the matchmaking queue so a paired battle is
// created rounds-and-all in one commit.
func (s *BattleService) generateRoundsTx(ctx context.Context, tx pgx.Tx, b *domain.Battle) ([]*domain.BattleRound, error) {
	seed := roundSeed(b.ID)
	now := time.Now().UTC()

	rounds := make([]*domain.BattleRound, 0, b.TotalRounds)
	for i := 1; i <= b.TotalRounds; i++ {
		sc := scenario.Generate(seed, i)
		br := &domain.BattleRound{
			BattleID:        b.ID,
			RoundNumber:     i,
			QuestionSeed:    seed,
			HeroPosition:    sc.HeroPosition,
			VillainPosition: sc.VillainPosition,
			Scenario:        string(sc.Tag),
			HeroHand:        sc.HeroHand,
			Status:          domain.RoundPending,
		}
		if i == 1 {
			br.Status = domain.RoundActive
			br.StartedAt = &now
		}
		if err := s.battleRepo.InsertRoundTx(ctx, tx, br); err != nil {
			return nil, err
		}
		rounds = append(rounds, br)
	}
	return rounds, nil
}

// SubmitAnswer records one player's answer for the named round, exactly once.
// Duplicate submissions (an already-filled slot, or a round that has already
// resolved) succeed as no-ops so client retries are harmless.
func (s *BattleService) SubmitAnswer(ctx context.Context, battleID string, userID int64, roundNumber int, action string, timeMs, score int) error {
	if roundNumber < 1 {
		return ErrNotFound
	}

	var published struct {
		battle *domain.Battle
		rounds []*domain.BattleRound
	}

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		published.battle, published.rounds = nil, nil

		b, err := s.battleRepo.GetForUpdateTx(ctx, tx, battleID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if b.Terminal() {
			return ErrBattleClosed
		}
		if roundNumber > b.TotalRounds {
			return ErrNotFound
		}

		slot, ok := b.Slot(userID)
		if !ok {
			return ErrNotParticipant
		}

		round, err := s.battleRepo.GetRoundForUpdateTx(ctx, tx, battleID, roundNumber)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}

		// Write-once: a filled slot or already-resolved round means this is a
		// retry of a submission that has already committed. Accept silently.
		if round.Status == domain.RoundCompleted || round.Answered(slot) {
			logger.Debug("duplicate submission ignored",
				"battle", battleID, "round", roundNumber, "user", userID)
			return nil
		}
		if round.Status == domain.RoundPending {
			// A round ahead of the authoritative cursor. The client will
			// resubmit once the round actually opens.
			logger.Warn("submission for a pending round ignored",
				"battle", battleID, "round", roundNumber, "user", userID)
			return nil
		}

		round.SetAnswer(slot, action, timeMs, score)

		if !round.BothAnswered() {
			if err := s.battleRepo.UpdateRoundTx(ctx, tx, round); err != nil {
				return err
			}
		} else {
			var next *domain.BattleRound
			if round.RoundNumber < b.TotalRounds {
				next, err = s.battleRepo.GetRoundForUpdateTx(ctx, tx, battleID, round.RoundNumber+1)
				if err != nil {
					return err
				}
			}

			b.ResolveRound(round, next, time.Now().UTC())

			if err := s.battleRepo.UpdateRoundTx(ctx, tx, round); err != nil {
				return err
			}
			if next != nil {
				if err := s.battleRepo.UpdateRoundTx(ctx, tx, next); err != nil {
					return err
				}
			}
			if err := s.battleRepo.UpdateTx(ctx, tx, b); err != nil {
				return err
			}
			if b.Status == domain.BattleCompleted {
				BattlesFinished.WithLabelValues(string(domain.BattleCompleted)).Inc()
			}
		}

		rounds, err := s.battleRepo.ListRoundsTx(ctx, tx, battleID)
		if err != nil {
			return err
		}
		published.battle, published.rounds = b, rounds
		return nil
	})
	if err != nil {
		return err
	}

	if published.battle != nil {
		AnswersSubmitted.Inc()
		s.publishBattle(ctx, published.battle, published.rounds)
	}
	return nil
}

// Load returns the full battle snapshot a participant is allowed to see.
func (s *BattleService) Load(ctx context.Context, battleID string, userID int64) (*domain.BattleSnapshot, error) {
	b, err := s.battleRepo.Get(ctx, battleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if _, ok := b.Slot(userID); !ok {
		return nil, ErrNotParticipant
	}

	rounds, err := s.battleRepo.ListRounds(ctx, battleID)
	if err != nil {
		return nil, err
	}

	snap := &domain.BattleSnapshot{Battle: b, Rounds: rounds}

	opponent, err := s.userRepo.GetByID(ctx, b.Opponent(userID))
	if err == nil {
		snap.Opponent = opponent.OpponentView()
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	return snap, nil
}

// Leave abandons an active battle on behalf of userID; the opponent wins.
// Leaving a terminal battle is a no-op.
func (s *BattleService) Leave(ctx context.Context, battleID string, userID int64) error {
	var published *domain.Battle

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		published = nil

		b, err := s.battleRepo.GetForUpdateTx(ctx, tx, battleID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if b.Terminal() {
			return nil
		}
		if _, ok := b.Slot(userID); !ok {
			return ErrNotParticipant
		}

		winner := b.Opponent(userID)
		b.Status = domain.BattleAbandoned
		b.WinnerID = &winner
		if err := s.battleRepo.UpdateTx(ctx, tx, b); err != nil {
			return err
		}
		published = b
		return nil
	})
	if err != nil {
		return err
	}

	if published != nil {
		BattlesFinished.WithLabelValues(string(domain.BattleAbandoned)).Inc()
		s.publishBattle(ctx, published, nil)
	}
	return nil
}

// Abandon marks a stalled battle abandoned. Called by the watchdog when the
// active round overran its timeout. If exactly one player answered the
// stalled round, they take the win; otherwise no winner is recorded.
func (s *BattleService) Abandon(ctx context.Context, battleID string) error {
	var published *domain.Battle

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		published = nil

		b, err := s.battleRepo.GetForUpdateTx(ctx, tx, battleID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if b.Terminal() {
			return nil
		}

		round, err := s.battleRepo.GetRoundForUpdateTx(ctx, tx, battleID, b.CurrentRound)
		if err != nil && !repository.IsNotFound(err) {
			return err
		}

		b.Status = domain.BattleAbandoned
		if round != nil {
			p1, p2 := round.Answered(domain.SlotPlayer1), round.Answered(domain.SlotPlayer2)
			if p1 != p2 {
				winner := b.Player1ID
				if p2 {
					winner = b.Player2ID
				}
				b.WinnerID = &winner
			}
		}

		if err := s.battleRepo.UpdateTx(ctx, tx, b); err != nil {
			return err
		}
		published = b
		return nil
	})
	if err != nil {
		return err
	}

	if published != nil {
		BattlesFinished.WithLabelValues(string(domain.BattleAbandoned)).Inc()
		s.publishBattle(ctx, published, nil)
	}
	return nil
}

// History lists the user's most recent battles.
func (s *BattleService) History(ctx context.Context, userID int64, limit int) ([]*domain.Battle, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.battleRepo.ListByUser(ctx, userID, limit)
}

// publishBattle fans the committed state out on the battle topic. Strictly
// after commit - a subscriber can never observe a state that did not commit.
func (s *BattleService) publishBattle(ctx context.Context, b *domain.Battle, rounds []*domain.BattleRound) {
	topic := pubsub.BattleTopic(b.ID)

	ev, err := pubsub.NewEvent(pubsub.EventBattleUpdated, topic, b)
	if err == nil {
		err = s.broker.Publish(ctx, topic, ev)
	}
	if err != nil {
		logger.Error("publish battle.updated failed", "battle", b.ID, "error", err)
	}

	if rounds == nil {
		return
	}
	ev, err = pubsub.NewEvent(pubsub.EventRoundsUpdated, topic, rounds)
	if err == nil {
		err = s.broker.Publish(ctx, topic, ev)
	}
	if err != nil {
		logger.Error("publish battle.rounds.updated failed", "battle", b.ID, "error", err)
	}
}

// roundSeed derives the deterministic question seed from the battle id, so
// the whole round sequence is reproducible from the battle record alone.
func roundSeed(battleID string) int64 {
	var h int64 = 1125899906842597 // prime
	for _, c := range battleID {
		h = 31*h + int64(c)
	}
	return h
}
