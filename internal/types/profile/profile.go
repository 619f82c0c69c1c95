package profile

import "time"

// Record is the external Profile Service row for one user. It is the
// source of truth for the cumulative counters; the local store only
// caches them.
type Record struct {
	ID                  string    `json:"id" db:"id"`
	ClerkID             string    `json:"clerk_id" db:"clerk_id"`
	Email               string    `json:"email" db:"email"`
	TotalPoints         int       `json:"total_points" db:"total_points"`
	CompletedChallenges int       `json:"completed_challenges" db:"completed_challenges"`
	Streak              int       `json:"streak" db:"streak"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerDelta is one challenge's contribution to the cumulative
// counters. Points and completed challenges are additive; the streak is
// an absolute replacement because a zero-point completion resets it.
type LedgerDelta struct {
	CompletedChallenges int `json:"completed_challenges"`
	TotalPoints         int `json:"total_points"`
	Streak              int `json:"streak"`
}
