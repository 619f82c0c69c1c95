// Package profile talks to the external profile service: the hosted
// Postgres table holding each user's cumulative points, completed
// challenge count, and streak. It is the source of truth; the local
// response store only caches what it reads from here.
package profile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"wattWiseAPI/internal/types/profile"
)

type Client struct {
	db *pgxpool.Pool
}

func NewClient(db *pgxpool.Pool) *Client {
	return &Client{db: db}
}

// Fetch returns the profile record for a Clerk user.
func (c *Client) Fetch(ctx context.Context, clerkID string) (*profile.Record, error) {
	query := `
	SELECT id, clerk_id, email, total_points, completed_challenges, streak, created_at, updated_at
	FROM profiles
	WHERE clerk_id = $1
	`

	rec := &profile.Record{}
	err := c.db.QueryRow(ctx, query, clerkID).Scan(
		&rec.ID,
		&rec.ClerkID,
		&rec.Email,
		&rec.TotalPoints,
		&rec.CompletedChallenges,
		&rec.Streak,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("profile not found: %w", err)
	}

	return rec, nil
}

// ApplyLedger applies one challenge's outcome to the cumulative
// counters. Completed challenges and points are additive; the streak is
// replaced outright because a zero-point completion resets it.
func (c *Client) ApplyLedger(ctx context.Context, clerkID string, delta *profile.LedgerDelta) (*profile.Record, error) {
	query := `
	UPDATE profiles
	SET completed_challenges = completed_challenges + $2,
	    total_points = total_points + $3,
	    streak = $4,
	    updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING id, clerk_id, email, total_points, completed_challenges, streak, created_at, updated_at
	`

	rec := &profile.Record{}
	err := c.db.QueryRow(ctx, query, clerkID, delta.CompletedChallenges, delta.TotalPoints, delta.Streak).Scan(
		&rec.ID,
		&rec.ClerkID,
		&rec.Email,
		&rec.TotalPoints,
		&rec.CompletedChallenges,
		&rec.Streak,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply ledger update: %w", err)
	}

	return rec, nil
}

// CreateIfAbsent bootstraps a profile row for a new user. Calling it
// for an existing user is a no-op that returns the current record.
func (c *Client) CreateIfAbsent(ctx context.Context, clerkID, email string) (*profile.Record, error) {
	query := `
	INSERT INTO profiles (id, clerk_id, email, total_points, completed_challenges, streak, created_at, updated_at)
	VALUES ($1, $2, $3, 0, 0, 0, NOW(), NOW())
	ON CONFLICT (clerk_id) DO UPDATE SET updated_at = profiles.updated_at
	RETURNING id, clerk_id, email, total_points, completed_challenges, streak, created_at, updated_at
	`

	rec := &profile.Record{}
	err := c.db.QueryRow(ctx, query, uuid.New().String(), clerkID, email).Scan(
		&rec.ID,
		&rec.ClerkID,
		&rec.Email,
		&rec.TotalPoints,
		&rec.CompletedChallenges,
		&rec.Streak,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return rec, nil
}

const (
	bootstrapAttempts     = 3
	bootstrapInitialDelay = 500 * time.Millisecond
)

// CreateIfAbsentWithRetry wraps CreateIfAbsent in exponential backoff
// for the onboarding path, where losing the bootstrap write would leave
// the user without a ledger row.
func (c *Client) CreateIfAbsentWithRetry(ctx context.Context, clerkID, email string) (*profile.Record, error) {
	delay := bootstrapInitialDelay

	var lastErr error
	for attempt := 1; attempt <= bootstrapAttempts; attempt++ {
		rec, err := c.CreateIfAbsent(ctx, clerkID, email)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		log.Printf("Profile bootstrap attempt %d/%d failed for %s: %v", attempt, bootstrapAttempts, clerkID, err)

		if attempt == bootstrapAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}

	return nil, fmt.Errorf("profile bootstrap failed after %d attempts: %w", bootstrapAttempts, lastErr)
}
