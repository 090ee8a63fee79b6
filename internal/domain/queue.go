package domain

import "time"

// Mode - matchmaking pool a player enters
type Mode string

const (
	ModeRanked   Mode = "ranked"
	ModePractice Mode = "practice"
)

// Valid reports whether m names a known matchmaking mode.
func (m Mode) Valid() bool {
	return m == ModeRanked || m == ModePractice
}

// QueueStatus - lifecycle of a queue entry
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueMatched   QueueStatus = "matched"
	QueueCancelled QueueStatus = "cancelled"
)

// QueueEntry is a waiting request to be paired into a battle. A user holds at
// most one waiting entry at a time.
type QueueEntry struct {
	ID              string      `db:"id" json:"id"`
	UserID          int64       `db:"user_id" json:"user_id"`
	Mode            Mode        `db:"mode" json:"mode"`
	Rating          int         `db:"rating" json:"rating"`
	Status          QueueStatus `db:"status" json:"status"`
	MatchedBattleID *string     `db:"matched_battle_id" json:"matched_battle_id,omitempty"`
	EnqueuedAt      time.Time   `db:"enqueued_at" json:"enqueued_at"`
	ExpiresAt       time.Time   `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the entry's wait deadline has passed.
func (e *QueueEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// MatchResult is what an enqueue call returns: either a battle (partner was
// found and the match committed) or the caller's still-waiting entry.
type MatchResult struct {
	Battle *Battle     `json:"battle,omitempty"`
	Entry  *QueueEntry `json:"entry,omitempty"`
}

// Matched reports whether the enqueue paired synchronously.
func (m *MatchResult) Matched() bool {
	return m.Battle != nil
}
