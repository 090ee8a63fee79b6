package service

import (
	"context"

	"poker_arena/internal/domain"
)

// Engine bundles the public operations the presentation layer is allowed to
// call. It is a thin facade over the matchmaking queue and the battle session.
type Engine struct {
	Matchmaking *MatchmakingService
	Battles     *BattleService
}

func NewEngine(matchmaking *MatchmakingService, battles *BattleService) *Engine {
	return &Engine{Matchmaking: matchmaking, Battles: battles}
}

func (e *Engine) StartMatching(ctx context.Context, userID int64, mode domain.Mode, rating int) (*domain.MatchResult, error) {
	return e.Matchmaking.Enqueue(ctx, userID, mode, rating)
}

func (e *Engine) CancelMatching(ctx context.Context, userID int64) error {
	return e.Matchmaking.Cancel(ctx, userID)
}

func (e *Engine) LoadBattle(ctx context.Context, battleID string, userID int64) (*domain.BattleSnapshot, error) {
	return e.Battles.Load(ctx, battleID, userID)
}

func (e *Engine) SubmitAnswer(ctx context.Context, battleID string, userID int64, roundNumber int, action string, timeMs, score int) error {
	return e.Battles.SubmitAnswer(ctx, battleID, userID, roundNumber, action, timeMs, score)
}

func (e *Engine) LeaveBattle(ctx context.Context, battleID string, userID int64) error {
	return e.Battles.Leave(ctx, battleID, userID)
}
