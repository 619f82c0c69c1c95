package responsestore

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParticipationRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, present, _ := s.GetParticipation("u1", 1); present {
		t.Fatal("participation should be absent before any write")
	}

	if err := s.SetParticipation("u1", 1, true); err != nil {
		t.Fatal(err)
	}
	got, present, err := s.GetParticipation("u1", 1)
	if err != nil || !present || !got {
		t.Errorf("got %v,%v,%v want true,true,nil", got, present, err)
	}

	if err := s.SetParticipation("u1", 2, false); err != nil {
		t.Fatal(err)
	}
	got, present, _ = s.GetParticipation("u1", 2)
	if !present || got {
		t.Errorf("challenge 2 = %v,%v want false,true", got, present)
	}

	// Answers are namespaced per user.
	if _, present, _ := s.GetParticipation("u2", 1); present {
		t.Error("another user's answer leaked across namespaces")
	}
}

func TestCompletionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, present, _ := s.GetCompletion("u1", 1); present {
		t.Fatal("completion should be absent before any write")
	}
	if done, _ := s.IsCompleted("u1", 1); done {
		t.Fatal("challenge should not start completed")
	}

	if err := s.SetCompletion("u1", 1, []string{"lights_off"}); err != nil {
		t.Fatal(err)
	}

	actions, present, err := s.GetCompletion("u1", 1)
	if err != nil || !present {
		t.Fatalf("completion missing after write: %v", err)
	}
	if len(actions) != 1 || actions[0] != "lights_off" {
		t.Errorf("actions = %v want [lights_off]", actions)
	}
	if done, _ := s.IsCompleted("u1", 1); !done {
		t.Error("SetCompletion should mark the challenge completed")
	}
}

func TestParticipationAndCompletionShareARow(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetParticipation("u1", 3, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCompletion("u1", 3, []string{"dryer", "no_tv"}); err != nil {
		t.Fatal(err)
	}

	got, present, _ := s.GetParticipation("u1", 3)
	if !present || !got {
		t.Error("completion write must not clobber the participation answer")
	}
	actions, _, _ := s.GetCompletion("u1", 3)
	if len(actions) != 2 {
		t.Errorf("actions = %v want two entries", actions)
	}
}

func TestCounters(t *testing.T) {
	s := newTestStore(t)

	c, err := s.Counters("u1")
	if err != nil {
		t.Fatal(err)
	}
	if c.Streak != 0 || c.TotalPoints != 0 || c.CompletedChallenges != 0 {
		t.Errorf("fresh counters should be zero, got %+v", c)
	}

	want := &Counters{Streak: 3, TotalPoints: 195, CompletedChallenges: 4}
	if err := s.SetCounters("u1", want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Counters("u1")
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Errorf("counters = %+v want %+v", got, want)
	}
}

func TestWeekStartPersistence(t *testing.T) {
	s := newTestStore(t)

	if _, present, _ := s.WeekStart(); present {
		t.Fatal("week start should be absent before boot writes it")
	}

	start := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	if err := s.SetWeekStart(start); err != nil {
		t.Fatal(err)
	}

	got, present, err := s.WeekStart()
	if err != nil || !present {
		t.Fatalf("week start missing after write: %v", err)
	}
	if !got.Equal(start) {
		t.Errorf("week start = %v want %v", got, start)
	}

	// A new boot overwrites the anchor.
	if err := s.SetWeekStart(start.AddDate(0, 0, 1)); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.WeekStart()
	if !got.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("week start not overwritten, got %v", got)
	}
}

func TestProfileCache(t *testing.T) {
	s := newTestStore(t)

	if _, present, _ := s.CachedProfile("u1"); present {
		t.Fatal("cache should start empty")
	}

	if err := s.CacheProfile("u1", []byte(`{"total_points":42}`)); err != nil {
		t.Fatal(err)
	}
	snapshot, present, err := s.CachedProfile("u1")
	if err != nil || !present {
		t.Fatalf("cached profile missing: %v", err)
	}
	if string(snapshot) != `{"total_points":42}` {
		t.Errorf("snapshot = %s", snapshot)
	}
}

func TestDeviceTokensAndActiveUsers(t *testing.T) {
	s := newTestStore(t)

	if err := s.RegisterDevice("u1", "tok-1", "android"); err != nil {
		t.Fatal(err)
	}
	// Re-registering the same token must not duplicate it.
	if err := s.RegisterDevice("u1", "tok-1", "android"); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterDevice("u1", "tok-2", "web"); err != nil {
		t.Fatal(err)
	}

	tokens, err := s.DeviceTokens("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 {
		t.Errorf("tokens = %v want 2 entries", tokens)
	}

	if err := s.SetParticipation("u2", 1, true); err != nil {
		t.Fatal(err)
	}
	users, err := s.ActiveUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Errorf("active users = %v want u1 and u2", users)
	}
}
