package domain

import "time"

// BattleStatus - lifecycle of a battle
type BattleStatus string

const (
	BattleActive    BattleStatus = "active"
	BattleCompleted BattleStatus = "completed"
	BattleAbandoned BattleStatus = "abandoned"
)

// RoundStatus - lifecycle of a single round within a battle
type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

// PlayerSlot identifies which side of the battle a user occupies.
type PlayerSlot int

const (
	SlotPlayer1 PlayerSlot = 1
	SlotPlayer2 PlayerSlot = 2
)

// Battle is the authoritative record of one head-to-head contest.
type Battle struct {
	ID           string       `db:"id" json:"id"`
	Player1ID    int64        `db:"player1_id" json:"player1_id"`
	Player2ID    int64        `db:"player2_id" json:"player2_id"`
	Mode         Mode         `db:"mode" json:"mode"`
	Status       BattleStatus `db:"status" json:"status"`
	CurrentRound int          `db:"current_round" json:"current_round"`
	TotalRounds  int          `db:"total_rounds" json:"total_rounds"`
	Player1Score int          `db:"player1_score" json:"player1_score"`
	Player2Score int          `db:"player2_score" json:"player2_score"`
	WinnerID     *int64       `db:"winner_id" json:"winner_id,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the battle can no longer change.
func (b *Battle) Terminal() bool {
	return b.Status == BattleCompleted || b.Status == BattleAbandoned
}

// Slot resolves a user to the side they occupy. The second return is false
// for users that are not participants of this battle.
func (b *Battle) Slot(userID int64) (PlayerSlot, bool) {
	switch userID {
	case b.Player1ID:
		return SlotPlayer1, true
	case b.Player2ID:
		return SlotPlayer2, true
	}
	return 0, false
}

// Opponent returns the other participant's id.
func (b *Battle) Opponent(userID int64) int64 {
	if userID == b.Player1ID {
		return b.Player2ID
	}
	return b.Player1ID
}

// BattleRound is one scenario both players answer independently.
type BattleRound struct {
	ID              int64       `db:"id" json:"id"`
	BattleID        string      `db:"battle_id" json:"battle_id"`
	RoundNumber     int         `db:"round_number" json:"round_number"`
	QuestionSeed    int64       `db:"question_seed" json:"question_seed"`
	HeroPosition    string      `db:"hero_position" json:"hero_position"`
	VillainPosition string      `db:"villain_position" json:"villain_position"`
	Scenario        string      `db:"scenario" json:"scenario"`
	HeroHand        string      `db:"hero_hand" json:"hero_hand"`
	Status          RoundStatus `db:"status" json:"status"`
	Player1Action   *string     `db:"player1_action" json:"player1_action,omitempty"`
	Player1TimeMs   *int        `db:"player1_time_ms" json:"player1_time_ms,omitempty"`
	Player1Score    *int        `db:"player1_score" json:"player1_score,omitempty"`
	Player2Action   *string     `db:"player2_action" json:"player2_action,omitempty"`
	Player2TimeMs   *int        `db:"player2_time_ms" json:"player2_time_ms,omitempty"`
	Player2Score    *int        `db:"player2_score" json:"player2_score,omitempty"`
	StartedAt       *time.Time  `db:"started_at" json:"started_at,omitempty"`
}

// Answered reports whether the given slot has already been written.
func (r *BattleRound) Answered(slot PlayerSlot) bool {
	if slot == SlotPlayer1 {
		return r.Player1Action != nil
	}
	return r.Player2Action != nil
}

// SetAnswer records an answer into the given slot. Slots are write-once:
// a second write is refused and the round is left untouched.
func (r *BattleRound) SetAnswer(slot PlayerSlot, action string, timeMs, score int) bool {
	if r.Answered(slot) {
		return false
	}
	if slot == SlotPlayer1 {
		r.Player1Action, r.Player1TimeMs, r.Player1Score = &action, &timeMs, &score
	} else {
		r.Player2Action, r.Player2TimeMs, r.Player2Score = &action, &timeMs, &score
	}
	return true
}

// BothAnswered reports whether the round is ready to resolve.
func (r *BattleRound) BothAnswered() bool {
	return r.Player1Action != nil && r.Player2Action != nil
}

// ResolveRound completes cur and advances the battle: aggregate scores grow by
// each player's round score, the next round (if any) becomes active, otherwise
// the battle finishes and the winner is decided. A tie leaves WinnerID unset.
// The caller must only invoke this once both slots of cur are filled.
func (b *Battle) ResolveRound(cur, next *BattleRound, now time.Time) {
	cur.Status = RoundCompleted

	if cur.Player1Score != nil {
		b.Player1Score += *cur.Player1Score
	}
	if cur.Player2Score != nil {
		b.Player2Score += *cur.Player2Score
	}

	if next != nil {
		next.Status = RoundActive
		next.StartedAt = &now
		b.CurrentRound = next.RoundNumber
		b.UpdatedAt = now
		return
	}

	b.Status = BattleCompleted
	switch {
	case b.Player1Score > b.Player2Score:
		b.WinnerID = &b.Player1ID
	case b.Player2Score > b.Player1Score:
		b.WinnerID = &b.Player2ID
	}
	b.UpdatedAt = now
}

// BattleSnapshot is what a participant is allowed to see: the battle, its
// rounds in order, and the opponent projection.
type BattleSnapshot struct {
	Battle   *Battle        `json:"battle"`
	Rounds   []*BattleRound `json:"rounds"`
	Opponent *Opponent      `json:"opponent,omitempty"`
}
