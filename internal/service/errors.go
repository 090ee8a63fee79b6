package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound - unknown battle, round or queue entry. Not retryable.
	ErrNotFound = errors.New("not found")
	// ErrBattleClosed - operation against a terminal battle. Callers discard.
	ErrBattleClosed = errors.New("battle closed")
	// ErrMatchTimeout - no partner appeared before the deadline. Safe to retry.
	ErrMatchTimeout = errors.New("matchmaking timed out")
	// ErrInvalidMode - unknown matchmaking mode.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrNotParticipant - the user is not a side of the battle.
	ErrNotParticipant = errors.New("user is not a participant")
)

// isTransient reports whether err is a store-level failure worth retrying:
// serialization failures and deadlocks, not business errors.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}
