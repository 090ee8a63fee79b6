package repository

import (
	"context"

	"poker_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BattleRepository struct {
	db *pgxpool.Pool
}

func NewBattleRepository(db *pgxpool.Pool) *BattleRepository {
	return &BattleRepository{db: db}
}

const battleColumns = `id, player1_id, player2_id, mode, status, current_round,
	total_rounds, player1_score, player2_score, winner_id, created_at, updated_at`

func scanBattle(row pgx.Row) (*domain.Battle, error) {
	b := &domain.Battle{}
	err := row.Scan(&b.ID, &b.Player1ID, &b.Player2ID, &b.Mode, &b.Status,
		&b.CurrentRound, &b.TotalRounds, &b.Player1Score, &b.Player2Score,
		&b.WinnerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BattleRepository) InsertTx(ctx context.Context, tx pgx.Tx, b *domain.Battle) error {
	return tx.QueryRow(ctx,
		`INSERT INTO battles (id, player1_id, player2_id, mode, status, current_round,
		                      total_rounds, player1_score, player2_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		b.ID, b.Player1ID, b.Player2ID, b.Mode, b.Status, b.CurrentRound,
		b.TotalRounds, b.Player1Score, b.Player2Score,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *BattleRepository) Get(ctx context.Context, id string) (*domain.Battle, error) {
	return scanBattle(r.db.QueryRow(ctx,
		`SELECT `+battleColumns+` FROM battles WHERE id = $1`, id))
}

// GetForUpdateTx loads the battle row and locks it for the transaction. Every
// mutation of a battle starts here, so two concurrent submissions against the
// same battle serialize on the row lock.
func (r *BattleRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Battle, error) {
	return scanBattle(tx.QueryRow(ctx,
		`SELECT `+battleColumns+` FROM battles WHERE id = $1 FOR UPDATE`, id))
}

func (r *BattleRepository) UpdateTx(ctx context.Context, tx pgx.Tx, b *domain.Battle) error {
	_, err := tx.Exec(ctx,
		`UPDATE battles
		 SET status = $2, current_round = $3, player1_score = $4,
		     player2_score = $5, winner_id = $6, updated_at = now()
		 WHERE id = $1`,
		b.ID, b.Status, b.CurrentRound, b.Player1Score, b.Player2Score, b.WinnerID,
	)
	return err
}

// ListByUser returns the user's most recent battles, newest first.
func (r *BattleRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Battle, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+battleColumns+` FROM battles
		 WHERE player1_id = $1 OR player2_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// FindTimedOut returns ids of active battles whose running round started
// before the cutoff. Candidates for abandonment by the watchdog.
func (r *BattleRepository) FindTimedOut(ctx context.Context, cutoffSeconds int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT b.id FROM battles b
		 JOIN battle_rounds br ON br.battle_id = b.id AND br.status = 'active'
		 WHERE b.status = 'active'
		   AND br.started_at < now() - make_interval(secs => $1)`,
		cutoffSeconds,
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

const roundColumns = `id, battle_id, round_number, question_seed, hero_position,
	villain_position, scenario, hero_hand, status,
	player1_action, player1_time_ms, player1_score,
	player2_action, player2_time_ms, player2_score, started_at`

func scanRound(row pgx.Row) (*domain.BattleRound, error) {
	r := &domain.BattleRound{}
	err := row.Scan(&r.ID, &r.BattleID, &r.RoundNumber, &r.QuestionSeed,
		&r.HeroPosition, &r.VillainPosition, &r.Scenario, &r.HeroHand, &r.Status,
		&r.Player1Action, &r.Player1TimeMs, &r.Player1Score,
		&r.Player2Action, &r.Player2TimeMs, &r.Player2Score, &r.StartedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *BattleRepository) InsertRoundTx(ctx context.Context, tx pgx.Tx, br *domain.BattleRound) error {
	return tx.QueryRow(ctx,
		`INSERT INTO battle_rounds (battle_id, round_number, question_seed,
		     hero_position, villain_position, scenario, hero_hand, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		br.BattleID, br.RoundNumber, br.QuestionSeed, br.HeroPosition,
		br.VillainPosition, br.Scenario, br.HeroHand, br.Status, br.StartedAt,
	).Scan(&br.ID)
}

// CountRoundsTx guards round generation idempotency: a retry that finds rounds
// already present does nothing.
func (r *BattleRepository) CountRoundsTx(ctx context.Context, tx pgx.Tx, battleID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM battle_rounds WHERE battle_id = $1`, battleID,
	).Scan(&n)
	return n, err
}

func (r *BattleRepository) GetRoundForUpdateTx(ctx context.Context, tx pgx.Tx, battleID string, roundNumber int) (*domain.BattleRound, error) {
	return scanRound(tx.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM battle_rounds
		 WHERE battle_id = $1 AND round_number = $2
		 FOR UPDATE`,
		battleID, roundNumber,
	))
}

func (r *BattleRepository) UpdateRoundTx(ctx context.Context, tx pgx.Tx, br *domain.BattleRound) error {
	_, err := tx.Exec(ctx,
		`UPDATE battle_rounds
		 SET status = $2,
		     player1_action = $3, player1_time_ms = $4, player1_score = $5,
		     player2_action = $6, player2_time_ms = $7, player2_score = $8,
		     started_at = $9
		 WHERE id = $1`,
		br.ID, br.Status,
		br.Player1Action, br.Player1TimeMs, br.Player1Score,
		br.Player2Action, br.Player2TimeMs, br.Player2Score, br.StartedAt,
	)
	return err
}

func (r *BattleRepository) ListRounds(ctx context.Context, battleID string) ([]*domain.BattleRound, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+roundColumns+` FROM battle_rounds
		 WHERE battle_id = $1 ORDER BY round_number`,
		battleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.BattleRound
	for rows.Next() {
		br, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, br)
	}
	return res, rows.Err()
}

// ListRoundsTx is ListRounds inside a transaction, so post-mutation snapshots
// published to the sync channel match exactly what was committed.
func (r *BattleRepository) ListRoundsTx(ctx context.Context, tx pgx.Tx, battleID string) ([]*domain.BattleRound, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+roundColumns+` FROM battle_rounds
		 WHERE battle_id = $1 ORDER BY round_number`,
		battleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.BattleRound
	for rows.Next() {
		br, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, br)
	}
	return res, rows.Err()
}
