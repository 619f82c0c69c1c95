package services

import (
	"strings"
	"testing"
	"time"

	"wattWiseAPI/internal/catalog"
	"wattWiseAPI/internal/responsestore"
	"wattWiseAPI/internal/types/challenge"
	"wattWiseAPI/internal/types/notification"
)

// Week anchored at Monday 2026-03-09; challenge 1 is that day.
var testWeekStart = time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)

func day1(hh, mm, ss int) time.Time {
	return time.Date(2026, time.March, 9, hh, mm, ss, 0, time.UTC)
}

func day2(hh, mm, ss int) time.Time {
	return time.Date(2026, time.March, 10, hh, mm, ss, 0, time.UTC)
}

func newTestScheduler(t *testing.T) (*SchedulerService, *responsestore.Store, *challenge.Week) {
	t.Helper()

	store, err := responsestore.NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	week := cat.BuildWeek(testWeekStart)
	sched := NewSchedulerService(store, week)
	sched.Track("u1")
	return sched, store, week
}

func recordsOfKind(resp *notification.ListResponse, kind notification.NotificationKind) []*notification.Record {
	var out []*notification.Record
	for _, rec := range resp.Notifications {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

func TestParticipationRequestCreatedAtWindowStart(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	// Just before the window nothing happens.
	sched.RunSweep(day1(8, 59, 59))
	if got := sched.UnreadCount("u1"); got != 0 {
		t.Fatalf("unread before window start = %d want 0", got)
	}

	// 09:00:01, no stored response for challenge 1.
	sched.RunSweep(day1(9, 0, 1))

	reqs := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest)
	if len(reqs) != 1 {
		t.Fatalf("participation requests = %d want exactly 1", len(reqs))
	}
	if reqs[0].ChallengeID != 1 {
		t.Errorf("challenge id = %d want 1", reqs[0].ChallengeID)
	}
	if !reqs[0].RequiresResponse {
		t.Error("participation request should require a response")
	}
	if reqs[0].Deadline == nil || !reqs[0].Deadline.Equal(day1(18, 54, 0)) {
		t.Errorf("deadline = %v want 18:54:00", reqs[0].Deadline)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	sched.RunSweep(day1(9, 0, 1))
	sched.RunSweep(day1(9, 0, 1))
	sched.RunSweep(day1(9, 0, 31))

	reqs := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest)
	if len(reqs) != 1 {
		t.Errorf("repeated sweeps created %d requests want 1", len(reqs))
	}
}

func TestDismissedRequestIsNotRecreatedSameDay(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	sched.RunSweep(day1(9, 0, 1))
	rec := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest)[0]
	if err := sched.MarkRead("u1", rec.ID); err != nil {
		t.Fatal(err)
	}

	// The creation ledger, not the unread check, blocks a second one.
	sched.RunSweep(day1(10, 0, 0))
	reqs := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest)
	if len(reqs) != 1 {
		t.Errorf("dismissed request was recreated, have %d", len(reqs))
	}
}

func TestNoParticipationRequestOnceAnswered(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	if err := store.SetParticipation("u1", 1, true); err != nil {
		t.Fatal(err)
	}
	sched.RunSweep(day1(9, 0, 1))

	if reqs := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest); len(reqs) != 0 {
		t.Errorf("request created despite stored answer, have %d", len(reqs))
	}
}

func TestParticipationRequestExpiresAtDeadline(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	sched.RunSweep(day1(9, 0, 1))
	sched.RunSweep(day1(18, 54, 0))

	if reqs := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest); len(reqs) != 0 {
		t.Errorf("expired request still present, have %d", len(reqs))
	}
	// Past the deadline no new one may appear either.
	sched.RunSweep(day1(18, 54, 30))
	if reqs := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest); len(reqs) != 0 {
		t.Errorf("request created after its deadline")
	}
}

func TestReminderOnlyForParticipants(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	// No answer yet: threshold crossing produces nothing.
	sched.RunSweep(day1(18, 55, 30))
	if rems := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeReminder); len(rems) != 0 {
		t.Fatalf("reminder without participation, have %d", len(rems))
	}

	if err := store.SetParticipation("u1", 1, true); err != nil {
		t.Fatal(err)
	}
	sched.RunSweep(day1(18, 55, 31))
	rems := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeReminder)
	if len(rems) != 1 {
		t.Fatalf("reminders = %d want 1", len(rems))
	}

	// Reminders lapse once the challenge window opens.
	sched.RunSweep(day1(19, 0, 0))
	if rems := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeReminder); len(rems) != 0 {
		t.Errorf("reminder survived past challenge start")
	}

	// A declined participant never gets a reminder.
	if err := store.SetParticipation("u2", 1, false); err != nil {
		t.Fatal(err)
	}
	sched.Track("u2")
	sched.RunSweep(day1(18, 56, 0))
	if rems := recordsOfKind(sched.Notifications("u2"), notification.KindChallengeReminder); len(rems) != 0 {
		t.Errorf("reminder for declined participant")
	}
}

func TestCompletionPromptAfterChallengeEnd(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	if err := store.SetParticipation("u1", 1, true); err != nil {
		t.Fatal(err)
	}

	// 20:00:01, participation true, no completion stored.
	sched.RunSweep(day1(20, 0, 1))
	comps := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeCompletion)
	if len(comps) != 1 {
		t.Fatalf("completion prompts = %d want exactly 1", len(comps))
	}
	if comps[0].ChallengeID != 1 {
		t.Errorf("challenge id = %d want 1", comps[0].ChallengeID)
	}
	if comps[0].Deadline == nil || !comps[0].Deadline.Equal(day2(8, 59, 0)) {
		t.Errorf("deadline = %v want next day 08:59:00", comps[0].Deadline)
	}
}

func TestNoCompletionPromptForDecliners(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	// A stored "no" means the completion prompt never appears.
	if err := store.SetParticipation("u1", 1, false); err != nil {
		t.Fatal(err)
	}
	if err := store.SetCompletion("u1", 1, []string{"none"}); err != nil {
		t.Fatal(err)
	}

	sched.RunSweep(day1(20, 0, 1))
	if comps := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeCompletion); len(comps) != 0 {
		t.Errorf("completion prompt for non-participant, have %d", len(comps))
	}
}

func TestNoCompletionPromptOnceReported(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	if err := store.SetParticipation("u1", 1, true); err != nil {
		t.Fatal(err)
	}
	if err := store.SetCompletion("u1", 1, []string{"dryer"}); err != nil {
		t.Fatal(err)
	}

	sched.RunSweep(day1(20, 0, 1))
	if comps := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeCompletion); len(comps) != 0 {
		t.Errorf("completion prompt despite stored completion")
	}
}

func TestCompletionPromptSurvivesUntilMorningDeadline(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	if err := store.SetParticipation("u1", 1, true); err != nil {
		t.Fatal(err)
	}

	sched.RunSweep(day1(20, 0, 1))
	// Still present early next morning.
	sched.RunSweep(day2(7, 30, 0))
	if comps := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeCompletion); len(comps) != 1 {
		t.Fatalf("completion prompt missing before the morning deadline")
	}
	// Gone at 08:59.
	sched.RunSweep(day2(8, 59, 0))
	if comps := recordsOfKind(sched.Notifications("u1"), notification.KindChallengeCompletion); len(comps) != 0 {
		t.Errorf("completion prompt survived its deadline")
	}
}

func TestResolveChallengeMarksRecordsRead(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	sched.RunSweep(day1(9, 0, 1))
	if unread := sched.UnreadCount("u1"); unread != 1 {
		t.Fatalf("unread = %d want the participation request", unread)
	}

	// Answering resolves every record for the challenge, whatever its kind.
	sched.ResolveChallenge("u1", 1)
	if unread := sched.UnreadCount("u1"); unread != 0 {
		t.Errorf("unread after resolve = %d want 0", unread)
	}

	// Resolution does not reopen the creation ledger for the day.
	sched.RunSweep(day1(9, 5, 0))
	if unread := sched.UnreadCount("u1"); unread != 0 {
		t.Errorf("resolved request was recreated")
	}
}

func TestAtMostOneUnreadPerKindPerChallenge(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	if err := store.SetParticipation("u1", 1, true); err != nil {
		t.Fatal(err)
	}

	// Hammer the sweep across the whole evening.
	for _, now := range []time.Time{
		day1(18, 55, 0), day1(18, 55, 30), day1(18, 59, 59),
		day1(20, 0, 1), day1(20, 30, 0), day1(23, 59, 59),
	} {
		sched.RunSweep(now)
	}

	resp := sched.Notifications("u1")
	for _, kind := range []notification.NotificationKind{
		notification.KindParticipationRequest,
		notification.KindChallengeReminder,
		notification.KindChallengeCompletion,
	} {
		unread := 0
		for _, rec := range recordsOfKind(resp, kind) {
			if !rec.IsRead {
				unread++
			}
		}
		if unread > 1 {
			t.Errorf("%s: %d unread records for one challenge", kind, unread)
		}
	}
}

func TestNotificationsReturnsCopies(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	sched.RunSweep(day1(9, 0, 1))
	resp := sched.Notifications("u1")
	if len(resp.Notifications) != 1 || resp.Notifications[0].IsRead {
		t.Fatalf("expected one unread record, got %+v", resp.Notifications)
	}

	// Mutating the live records must not reach into an earlier snapshot:
	// handlers marshal it after the lock is gone.
	sched.MarkAllRead("u1")
	if resp.Notifications[0].IsRead {
		t.Error("snapshot record was mutated by MarkAllRead")
	}
}

func TestSweepPrunesStaleLedgerKeys(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	sched.RunSweep(day1(9, 0, 1))
	if len(sched.created) != 1 {
		t.Fatalf("ledger keys = %d want 1", len(sched.created))
	}

	// Two days later the day-1 completion deadline is long past, so its
	// keys can no longer suppress anything and must be dropped.
	sched.RunSweep(time.Date(2026, time.March, 11, 12, 0, 0, 0, time.UTC))
	for key := range sched.created {
		if strings.HasSuffix(key, "|2026-03-09") {
			t.Errorf("stale ledger key survived: %s", key)
		}
	}
}

func TestParticipationPromptDespiteStoreReadFailure(t *testing.T) {
	sched, store, _ := newTestScheduler(t)

	// A broken store reads as "no answer recorded": the prompt still
	// appears instead of silently vanishing for the day.
	store.Close()
	sched.RunSweep(day1(9, 0, 1))

	if reqs := recordsOfKind(sched.Notifications("u1"), notification.KindParticipationRequest); len(reqs) != 1 {
		t.Errorf("participation requests = %d want 1", len(reqs))
	}
}

func TestCustomRecordsBypassChallengeDedup(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	sched.CreateCustom("u1", "Welcome to WattWise!", "Your first challenge starts tonight.")
	sched.CreateCustom("u1", "Heads up", "We tweaked the catalog.")

	resp := sched.Notifications("u1")
	if custom := recordsOfKind(resp, notification.KindCustom); len(custom) != 2 {
		t.Errorf("custom records = %d want 2", len(custom))
	}
	if resp.UnreadCount != 2 {
		t.Errorf("unread = %d want 2", resp.UnreadCount)
	}
}
