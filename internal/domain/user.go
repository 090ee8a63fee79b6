package domain

import "time"

// User - an account known to the engine. Identity is caller-supplied; the
// engine only reads the fields needed for pairing and the opponent view.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Opponent is the read-only projection of the other participant surfaced to a
// player. Never mutated by the engine.
type Opponent struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	RankTier string `json:"rank_tier"`
	Rating   int    `json:"rating"`
}

// OpponentView builds the projection for u.
func (u *User) OpponentView() *Opponent {
	return &Opponent{
		ID:       u.ID,
		Username: u.Username,
		RankTier: RankTier(u.Rating),
		Rating:   u.Rating,
	}
}

// RankTier maps a rating onto the fixed ladder.
func RankTier(rating int) string {
	switch {
	case rating >= 2200:
		return "diamond"
	case rating >= 1800:
		return "platinum"
	case rating >= 1400:
		return "gold"
	case rating >= 1000:
		return "silver"
	default:
		return "bronze"
	}
}
