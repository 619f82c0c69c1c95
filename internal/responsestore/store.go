// Package responsestore is the durable local record of a user's
// challenge responses: the participation answer, the completion action
// list, and a cache of the cumulative counters. It backs onto a single
// SQLite file so state survives process restarts; the external profile
// service remains the source of truth for the counters.
package responsestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"wattWiseAPI/internal/types/notification"
)

type Store struct {
	DB *sql.DB
}

// Counters is the locally cached slice of the profile ledger.
type Counters struct {
	Streak              int `json:"streak"`
	TotalPoints         int `json:"total_points"`
	CompletedChallenges int `json:"completed_challenges"`
}

// NewStore opens (or creates) the store at dbPath and runs migrations.
// Use ":memory:" for tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open response store: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping response store: %w", err)
	}

	store := &Store{DB: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate response store: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS challenge_responses (
		user_id TEXT NOT NULL,
		challenge_id INTEGER NOT NULL,
		participating INTEGER,
		completed INTEGER NOT NULL DEFAULT 0,
		action_ids TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, challenge_id)
	);

	CREATE TABLE IF NOT EXISTS counters (
		user_id TEXT PRIMARY KEY,
		streak INTEGER NOT NULL DEFAULT 0,
		total_points INTEGER NOT NULL DEFAULT 0,
		completed_challenges INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profile_cache (
		user_id TEXT PRIMARY KEY,
		snapshot TEXT NOT NULL,
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS device_tokens (
		user_id TEXT NOT NULL,
		token TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, token)
	);
	`

	_, err := s.DB.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// SetParticipation records the yes/no participation answer for a
// challenge. The answer coexists with any completion state already in
// the row.
func (s *Store) SetParticipation(userID string, challengeID int, participating bool) error {
	query := `
		INSERT INTO challenge_responses (user_id, challenge_id, participating, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, challenge_id) DO UPDATE SET
			participating = excluded.participating,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.DB.Exec(query, userID, challengeID, participating); err != nil {
		return fmt.Errorf("failed to set participation: %w", err)
	}
	return nil
}

// GetParticipation returns the stored participation answer. The second
// return is false when no answer has been recorded.
func (s *Store) GetParticipation(userID string, challengeID int) (bool, bool, error) {
	var participating sql.NullBool
	err := s.DB.QueryRow(
		"SELECT participating FROM challenge_responses WHERE user_id = ? AND challenge_id = ?",
		userID, challengeID,
	).Scan(&participating)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to get participation: %w", err)
	}
	if !participating.Valid {
		return false, false, nil
	}
	return participating.Bool, true, nil
}

// SetCompletion records the chosen action ids and marks the challenge
// completed in one write.
func (s *Store) SetCompletion(userID string, challengeID int, actionIDs []string) error {
	raw, err := json.Marshal(actionIDs)
	if err != nil {
		return fmt.Errorf("failed to encode action ids: %w", err)
	}

	query := `
		INSERT INTO challenge_responses (user_id, challenge_id, completed, action_ids, updated_at)
		VALUES (?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, challenge_id) DO UPDATE SET
			completed = 1,
			action_ids = excluded.action_ids,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.DB.Exec(query, userID, challengeID, string(raw)); err != nil {
		return fmt.Errorf("failed to set completion: %w", err)
	}
	return nil
}

// GetCompletion returns the stored action list. The second return is
// false when no completion has been recorded.
func (s *Store) GetCompletion(userID string, challengeID int) ([]string, bool, error) {
	var raw sql.NullString
	err := s.DB.QueryRow(
		"SELECT action_ids FROM challenge_responses WHERE user_id = ? AND challenge_id = ?",
		userID, challengeID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get completion: %w", err)
	}
	if !raw.Valid {
		return nil, false, nil
	}

	var actionIDs []string
	if err := json.Unmarshal([]byte(raw.String), &actionIDs); err != nil {
		return nil, false, fmt.Errorf("failed to decode action ids: %w", err)
	}
	return actionIDs, true, nil
}

// IsCompleted reports whether the challenge has been marked completed.
func (s *Store) IsCompleted(userID string, challengeID int) (bool, error) {
	var completed bool
	err := s.DB.QueryRow(
		"SELECT completed FROM challenge_responses WHERE user_id = ? AND challenge_id = ?",
		userID, challengeID,
	).Scan(&completed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return completed, nil
}

// Counters returns the cached ledger counters, zero-valued when none
// have been written yet.
func (s *Store) Counters(userID string) (*Counters, error) {
	c := &Counters{}
	err := s.DB.QueryRow(
		"SELECT streak, total_points, completed_challenges FROM counters WHERE user_id = ?",
		userID,
	).Scan(&c.Streak, &c.TotalPoints, &c.CompletedChallenges)
	if err == sql.ErrNoRows {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}
	return c, nil
}

// SetCounters overwrites the cached ledger counters.
func (s *Store) SetCounters(userID string, c *Counters) error {
	query := `
		INSERT INTO counters (user_id, streak, total_points, completed_challenges, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			streak = excluded.streak,
			total_points = excluded.total_points,
			completed_challenges = excluded.completed_challenges,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.DB.Exec(query, userID, c.Streak, c.TotalPoints, c.CompletedChallenges); err != nil {
		return fmt.Errorf("failed to set counters: %w", err)
	}
	return nil
}

const weekStartKey = "week_start"

// SetWeekStart persists the rolling week's anchor date so challenge
// ids stay stable for the rest of the session even across a midnight
// rollover. It is rewritten on every boot.
func (s *Store) SetWeekStart(start time.Time) error {
	query := `
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.DB.Exec(query, weekStartKey, start.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to set week start: %w", err)
	}
	return nil
}

// WeekStart returns the persisted week anchor, if any.
func (s *Store) WeekStart() (time.Time, bool, error) {
	var value string
	err := s.DB.QueryRow("SELECT value FROM app_state WHERE key = ?", weekStartKey).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get week start: %w", err)
	}

	start, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse week start: %w", err)
	}
	return start, true, nil
}

// CacheProfile stores the latest profile snapshot fetched from the
// external profile service.
func (s *Store) CacheProfile(userID string, snapshot []byte) error {
	query := `
		INSERT INTO profile_cache (user_id, snapshot, cached_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			cached_at = CURRENT_TIMESTAMP
	`
	if _, err := s.DB.Exec(query, userID, string(snapshot)); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// CachedProfile returns the last cached profile snapshot, if any.
func (s *Store) CachedProfile(userID string) ([]byte, bool, error) {
	var snapshot string
	err := s.DB.QueryRow("SELECT snapshot FROM profile_cache WHERE user_id = ?", userID).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached profile: %w", err)
	}
	return []byte(snapshot), true, nil
}

// RegisterDevice stores a push token for the user. Re-registering the
// same token is a no-op.
func (s *Store) RegisterDevice(userID, token, platform string) error {
	query := `
		INSERT INTO device_tokens (user_id, token, platform)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, token) DO UPDATE SET platform = excluded.platform
	`
	if _, err := s.DB.Exec(query, userID, token, platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// DeviceTokens returns the user's registered push tokens.
func (s *Store) DeviceTokens(userID string) ([]notification.DeviceToken, error) {
	rows, err := s.DB.Query("SELECT token, platform FROM device_tokens WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// ActiveUsers lists every user the store has seen, either through a
// recorded response or a registered device. The scheduler sweeps these.
func (s *Store) ActiveUsers() ([]string, error) {
	query := `
		SELECT user_id FROM challenge_responses
		UNION
		SELECT user_id FROM device_tokens
	`
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
