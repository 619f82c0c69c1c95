// Package schedule maps wall-clock time onto the daily challenge
// windows. Everything here is a pure function of the supplied
// timestamp; callers (and tests) inject "now" explicitly.
package schedule

import "time"

// Daily thresholds, in the challenge's local time zone.
const (
	participationStartHour   = 9  // 09:00:00 participation prompt opens
	participationDeadlineMin = 54 // 18:54:00 participation prompt expires
	reminderHour             = 18
	reminderMinute           = 55 // 18:55:00 reminder fires
	challengeStartHour       = 19 // 19:00:00 challenge window opens
	challengeEndHour         = 20 // 20:00:00 challenge window closes
	completionDeadlineHour   = 8  // next day 08:59:00 completion prompt expires
	completionDeadlineMin    = 59
)

// DayOf truncates a timestamp to midnight in its own location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two timestamps fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func at(d time.Time, hour, min int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, d.Location())
}

// CurrentChallengeID maps a timestamp to the 1-based index of the
// challenge whose date equals the timestamp's calendar date within the
// rolling week anchored at weekStart. The second return is false when
// the date falls outside the week window.
func CurrentChallengeID(now, weekStart time.Time) (int, bool) {
	// Walk calendar dates rather than dividing a duration: a DST
	// transition makes a day 23 or 25 hours long and skews the quotient.
	start := DayOf(weekStart)
	for i := 0; i < 7; i++ {
		if SameDay(now, start.AddDate(0, 0, i)) {
			return i + 1, true
		}
	}
	return 0, false
}

// ParticipationWindowStart is the moment the participation prompt may
// first be shown for the given day: 09:00:00.
func ParticipationWindowStart(d time.Time) time.Time {
	return at(d, participationStartHour, 0)
}

// ParticipationDeadline is the hard expiry of the participation prompt
// for the given day: 18:54:00.
func ParticipationDeadline(d time.Time) time.Time {
	return at(d, reminderHour, participationDeadlineMin)
}

// ReminderThreshold is the moment the challenge reminder fires for the
// given day: 18:55:00.
func ReminderThreshold(d time.Time) time.Time {
	return at(d, reminderHour, reminderMinute)
}

// ChallengeStart is 19:00:00 on the given day.
func ChallengeStart(d time.Time) time.Time {
	return at(d, challengeStartHour, 0)
}

// ChallengeEnd is 20:00:00 on the given day.
func ChallengeEnd(d time.Time) time.Time {
	return at(d, challengeEndHour, 0)
}

// CompletionWindowStart is the moment the completion prompt may first
// be shown for a challenge: the challenge's end time.
func CompletionWindowStart(challengeDate time.Time) time.Time {
	return ChallengeEnd(challengeDate)
}

// CompletionDeadline is the hard expiry of the completion prompt: the
// morning after the challenge at 08:59:00.
func CompletionDeadline(challengeDate time.Time) time.Time {
	return at(DayOf(challengeDate).AddDate(0, 0, 1), completionDeadlineHour, completionDeadlineMin)
}
