package schedule

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestThresholds(t *testing.T) {
	day := date(2026, time.March, 9, 13, 37)

	if got := ParticipationWindowStart(day); got != date(2026, time.March, 9, 9, 0) {
		t.Errorf("participation window start = %v", got)
	}
	if got := ParticipationDeadline(day); got != date(2026, time.March, 9, 18, 54) {
		t.Errorf("participation deadline = %v", got)
	}
	if got := ReminderThreshold(day); got != date(2026, time.March, 9, 18, 55) {
		t.Errorf("reminder threshold = %v", got)
	}
	if got := ChallengeStart(day); got != date(2026, time.March, 9, 19, 0) {
		t.Errorf("challenge start = %v", got)
	}
	if got := CompletionWindowStart(day); got != date(2026, time.March, 9, 20, 0) {
		t.Errorf("completion window start = %v", got)
	}
	if got := CompletionDeadline(day); got != date(2026, time.March, 10, 8, 59) {
		t.Errorf("completion deadline = %v", got)
	}
}

func TestCurrentChallengeID(t *testing.T) {
	weekStart := date(2026, time.March, 9, 0, 0)

	cases := []struct {
		now    time.Time
		id     int
		inWeek bool
	}{
		{date(2026, time.March, 9, 0, 0), 1, true},
		{date(2026, time.March, 9, 23, 59), 1, true},
		{date(2026, time.March, 12, 12, 0), 4, true},
		{date(2026, time.March, 15, 9, 30), 7, true},
		{date(2026, time.March, 16, 0, 1), 0, false},
		{date(2026, time.March, 8, 23, 59), 0, false},
	}

	for _, c := range cases {
		id, ok := CurrentChallengeID(c.now, weekStart)
		if id != c.id || ok != c.inWeek {
			t.Errorf("CurrentChallengeID(%v) = %d,%v want %d,%v", c.now, id, ok, c.id, c.inWeek)
		}
	}
}

func TestCurrentChallengeIDAcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Spring forward on 2026-03-08 makes that day 23 hours long.
	weekStart := time.Date(2026, time.March, 7, 0, 0, 0, 0, loc)
	now := time.Date(2026, time.March, 9, 0, 30, 0, 0, loc)

	id, ok := CurrentChallengeID(now, weekStart)
	if !ok || id != 3 {
		t.Errorf("CurrentChallengeID(%v) = %d,%v want 3,true", now, id, ok)
	}
}

func TestSameDay(t *testing.T) {
	a := date(2026, time.March, 9, 23, 59)
	b := date(2026, time.March, 10, 0, 0)
	if SameDay(a, b) {
		t.Error("midnight rollover should change the day")
	}
	if !SameDay(a, date(2026, time.March, 9, 0, 0)) {
		t.Error("same calendar date should match regardless of hour")
	}
}
