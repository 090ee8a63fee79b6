package repository

import (
	"context"
	"errors"

	"poker_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QueueRepository struct {
	db *pgxpool.Pool
}

func NewQueueRepository(db *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueColumns = `id, user_id, mode, rating, status, matched_battle_id, enqueued_at, expires_at`

func scanQueueEntry(row pgx.Row) (*domain.QueueEntry, error) {
	e := &domain.QueueEntry{}
	err := row.Scan(&e.ID, &e.UserID, &e.Mode, &e.Rating, &e.Status,
		&e.MatchedBattleID, &e.EnqueuedAt, &e.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// LockModeTx serializes pairing for one mode within the current transaction.
// Concurrent enqueues of the same mode queue up behind the advisory lock, so
// a waiting partner can never be claimed twice.
func (r *QueueRepository) LockModeTx(ctx context.Context, tx pgx.Tx, mode domain.Mode) error {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('matchmaking:' || $1))`, string(mode))
	return err
}

// InsertWaitingTx persists e as waiting. If the user already holds a waiting
// entry the existing one is returned instead (the partial unique index on
// user_id makes double-enqueue impossible).
func (r *QueueRepository) InsertWaitingTx(ctx context.Context, tx pgx.Tx, e *domain.QueueEntry) (*domain.QueueEntry, error) {
	row := tx.QueryRow(ctx,
		`INSERT INTO queue_entries (id, user_id, mode, rating, status, enqueued_at, expires_at)
		 VALUES ($1, $2, $3, $4, 'waiting', $5, $6)
		 ON CONFLICT (user_id) WHERE status = 'waiting' DO NOTHING
		 RETURNING `+queueColumns,
		e.ID, e.UserID, e.Mode, e.Rating, e.EnqueuedAt, e.ExpiresAt,
	)
	inserted, err := scanQueueEntry(row)
	if err == nil {
		return inserted, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// conflict: hand back the entry that is already waiting
	return scanQueueEntry(tx.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM queue_entries
		 WHERE user_id = $1 AND status = 'waiting'`,
		e.UserID,
	))
}

// FindPartnerTx picks the oldest compatible waiting entry and locks it.
// ratingRange < 0 disables the rating bound (practice mode). Rows locked by a
// concurrent pairing are skipped rather than waited on.
func (r *QueueRepository) FindPartnerTx(ctx context.Context, tx pgx.Tx, mode domain.Mode, excludeUserID int64, rating, ratingRange int) (*domain.QueueEntry, error) {
	e, err := scanQueueEntry(tx.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM queue_entries
		 WHERE status = 'waiting'
		   AND mode = $1
		   AND user_id <> $2
		   AND expires_at > now()
		   AND ($4 < 0 OR abs(rating - $3) <= $4)
		 ORDER BY enqueued_at
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		mode, excludeUserID, rating, ratingRange,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// MarkMatchedTx moves a waiting entry to matched and records the battle.
func (r *QueueRepository) MarkMatchedTx(ctx context.Context, tx pgx.Tx, entryID, battleID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE queue_entries
		 SET status = 'matched', matched_battle_id = $2
		 WHERE id = $1 AND status = 'waiting'`,
		entryID, battleID,
	)
	return err
}

// CancelWaiting cancels the user's waiting entry if any. Returns the cancelled
// entry, or nil when there was nothing to cancel (idempotent no-op).
func (r *QueueRepository) CancelWaiting(ctx context.Context, userID int64) (*domain.QueueEntry, error) {
	e, err := scanQueueEntry(r.db.QueryRow(ctx,
		`UPDATE queue_entries
		 SET status = 'cancelled'
		 WHERE user_id = $1 AND status = 'waiting'
		 RETURNING `+queueColumns,
		userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *QueueRepository) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	return scanQueueEntry(r.db.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM queue_entries WHERE id = $1`, id))
}

// ExpireStale cancels waiting entries whose deadline has passed and returns
// their ids. Used by the watchdog sweep.
func (r *QueueRepository) ExpireStale(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE queue_entries
		 SET status = 'cancelled'
		 WHERE status = 'waiting' AND expires_at <= now()
		 RETURNING id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WaitingDepth counts waiting entries per mode, for the queue depth gauge.
func (r *QueueRepository) WaitingDepth(ctx context.Context, mode domain.Mode) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM queue_entries WHERE status = 'waiting' AND mode = $1`,
		mode,
	).Scan(&n)
	return n, err
}
