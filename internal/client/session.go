// Package client is the non-authoritative per-client session adapter. It
// forwards commands to the engine, subscribes to the synchronization channel
// and keeps a local projection of the authoritative state. It never computes
// scores or round completion itself.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"poker_arena/internal/domain"
	"poker_arena/internal/logger"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/service"
)

// Status - the adapter-local lifecycle
type Status string

const (
	StatusIdle      Status = "idle"
	StatusMatching  Status = "matching"
	StatusMatched   Status = "matched"
	StatusPlaying   Status = "playing"
	StatusCompleted Status = "completed"
)

// ErrBusy - a command that does not fit the current adapter status.
var ErrBusy = errors.New("session is busy")

// Engine is the slice of authoritative operations the adapter forwards to.
type Engine interface {
	StartMatching(ctx context.Context, userID int64, mode domain.Mode, rating int) (*domain.MatchResult, error)
	CancelMatching(ctx context.Context, userID int64) error
	LoadBattle(ctx context.Context, battleID string, userID int64) (*domain.BattleSnapshot, error)
	SubmitAnswer(ctx context.Context, battleID string, userID int64, roundNumber int, action string, timeMs, score int) error
	LeaveBattle(ctx context.Context, battleID string, userID int64) error
}

// Session is one client's view of the protocol. All state it holds is a cache
// refreshed wholesale from sync-channel events.
type Session struct {
	engine       Engine
	broker       pubsub.Broker
	userID       int64
	rating       int
	matchTimeout time.Duration

	mu          sync.Mutex
	status      Status
	battle      *domain.Battle
	rounds      []*domain.BattleRound
	opponent    *domain.Opponent
	appliedAt   time.Time
	unsubQueue  func()
	unsubBattle func()

	events chan pubsub.Event
}

func NewSession(engine Engine, broker pubsub.Broker, userID int64, rating int, matchTimeout time.Duration) *Session {
	return &Session{
		engine:       engine,
		broker:       broker,
		userID:       userID,
		rating:       rating,
		matchTimeout: matchTimeout,
		status:       StatusIdle,
		events:       make(chan pubsub.Event, 32),
	}
}

// Events exposes the sync-channel events this session has applied, for a
// transport layer that pushes them on to the real client.
func (s *Session) Events() <-chan pubsub.Event { return s.events }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Battle returns the cached battle projection, or nil outside a match.
func (s *Session) Battle() *domain.Battle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battle
}

func (s *Session) Rounds() []*domain.BattleRound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds
}

func (s *Session) Opponent() *domain.Opponent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opponent
}

// CurrentRound returns the cached active round, or nil.
func (s *Session) CurrentRound() *domain.BattleRound {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.battle == nil {
		return nil
	}
	for _, r := range s.rounds {
		if r.RoundNumber == s.battle.CurrentRound {
			return r
		}
	}
	return nil
}

// StartMatching enqueues and blocks until the engine pairs this session or
// the match timeout passes. On timeout the entry is cancelled, the session
// returns to idle and ErrMatchTimeout surfaces to the caller.
func (s *Session) StartMatching(ctx context.Context, mode domain.Mode) (*domain.BattleSnapshot, error) {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.status = StatusMatching
	s.mu.Unlock()

	res, err := s.engine.StartMatching(ctx, s.userID, mode, s.rating)
	if err != nil {
		s.toIdle()
		return nil, err
	}

	if res.Matched() {
		return s.attach(ctx, res.Battle.ID)
	}

	// Waiting: listen on the entry topic until matched or out of time.
	matched := make(chan string, 1)
	unsub := s.broker.Subscribe(pubsub.QueueTopic(res.Entry.ID), func(ev pubsub.Event) {
		if ev.Type != pubsub.EventQueueMatched {
			return
		}
		var payload struct {
			BattleID string `json:"battle_id"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return
		}
		select {
		case matched <- payload.BattleID:
		default:
		}
	})
	defer unsub()

	s.mu.Lock()
	s.unsubQueue = unsub
	s.mu.Unlock()

	wait := s.matchTimeout
	if d := time.Until(res.Entry.ExpiresAt); d > 0 && d < wait {
		wait = d
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case battleID := <-matched:
		return s.attach(ctx, battleID)
	case <-timer.C:
		// Nobody came. Withdraw the entry and surface the timeout; entry
		// cancellation is idempotent, so racing a late match is harmless.
		if err := s.engine.CancelMatching(ctx, s.userID); err != nil {
			logger.Warn("cancel after match timeout failed", "user", s.userID, "error", err)
		}
		// The match may have committed between the timer firing and the
		// cancel; prefer it if so.
		select {
		case battleID := <-matched:
			return s.attach(ctx, battleID)
		default:
		}
		s.toIdle()
		return nil, service.ErrMatchTimeout
	case <-ctx.Done():
		_ = s.engine.CancelMatching(context.WithoutCancel(ctx), s.userID)
		s.toIdle()
		return nil, ctx.Err()
	}
}

// CancelMatching withdraws from the queue. A no-op when not matching.
func (s *Session) CancelMatching(ctx context.Context) error {
	if err := s.engine.CancelMatching(ctx, s.userID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.status == StatusMatching {
		s.status = StatusIdle
	}
	if s.unsubQueue != nil {
		s.unsubQueue()
		s.unsubQueue = nil
	}
	s.mu.Unlock()
	return nil
}

// SubmitAnswer forwards the answer for the cached current round.
func (s *Session) SubmitAnswer(ctx context.Context, action string, timeMs, score int) error {
	s.mu.Lock()
	if s.status != StatusPlaying || s.battle == nil {
		s.mu.Unlock()
		return ErrBusy
	}
	battleID := s.battle.ID
	roundNumber := s.battle.CurrentRound
	s.mu.Unlock()

	return s.engine.SubmitAnswer(ctx, battleID, s.userID, roundNumber, action, timeMs, score)
}

// LeaveBattle abandons the current battle and detaches.
func (s *Session) LeaveBattle(ctx context.Context) error {
	s.mu.Lock()
	if s.battle == nil {
		s.mu.Unlock()
		return nil
	}
	battleID := s.battle.ID
	s.mu.Unlock()

	if err := s.engine.LeaveBattle(ctx, battleID, s.userID); err != nil {
		return err
	}

	s.mu.Lock()
	s.status = StatusCompleted
	if s.unsubBattle != nil {
		s.unsubBattle()
		s.unsubBattle = nil
	}
	s.mu.Unlock()
	return nil
}

// Close releases the session's subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubQueue != nil {
		s.unsubQueue()
		s.unsubQueue = nil
	}
	if s.unsubBattle != nil {
		s.unsubBattle()
		s.unsubBattle = nil
	}
}

// attach loads the authoritative snapshot, subscribes to the battle topic and
// moves the session into play. The session is matched while the snapshot
// round-trip is in flight and playing once it lands.
func (s *Session) attach(ctx context.Context, battleID string) (*domain.BattleSnapshot, error) {
	s.mu.Lock()
	s.status = StatusMatched
	s.mu.Unlock()

	snap, err := s.engine.LoadBattle(ctx, battleID, s.userID)
	if err != nil {
		s.toIdle()
		return nil, err
	}

	unsub := s.broker.Subscribe(pubsub.BattleTopic(battleID), s.apply)

	s.mu.Lock()
	if s.unsubQueue != nil {
		s.unsubQueue()
		s.unsubQueue = nil
	}
	s.unsubBattle = unsub
	s.battle = snap.Battle
	s.rounds = snap.Rounds
	s.opponent = snap.Opponent
	s.appliedAt = time.Now().UTC()
	if snap.Battle.Terminal() {
		s.status = StatusCompleted
	} else {
		s.status = StatusPlaying
	}
	s.mu.Unlock()

	return snap, nil
}

// apply replaces the cached projection with an inbound snapshot. Stale and
// duplicate events are dropped by envelope timestamp; the same logical state
// applied twice leaves the cache unchanged either way.
func (s *Session) apply(ev pubsub.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.At.Before(s.appliedAt) {
		return
	}

	switch ev.Type {
	case pubsub.EventBattleUpdated:
		var b domain.Battle
		if err := json.Unmarshal(ev.Payload, &b); err != nil {
			logger.Warn("dropping malformed battle snapshot", "error", err)
			return
		}
		s.battle = &b
		s.appliedAt = ev.At
		if b.Terminal() {
			s.status = StatusCompleted
			if s.unsubBattle != nil {
				// deferred: unsubscribing inside the handler would deadlock
				// some broker implementations
				go s.unsubBattle()
				s.unsubBattle = nil
			}
		}
	case pubsub.EventRoundsUpdated:
		var rounds []*domain.BattleRound
		if err := json.Unmarshal(ev.Payload, &rounds); err != nil {
			logger.Warn("dropping malformed rounds snapshot", "error", err)
			return
		}
		s.rounds = rounds
		s.appliedAt = ev.At
	default:
		return
	}

	select {
	case s.events <- ev:
	default:
		// slow consumer: drop, the next snapshot supersedes this one anyway
	}
}

func (s *Session) toIdle() {
	s.mu.Lock()
	s.status = StatusIdle
	if s.unsubQueue != nil {
		s.unsubQueue()
		s.unsubQueue = nil
	}
	s.mu.Unlock()
}
