package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"wattWiseAPI/internal/responsestore"
	"wattWiseAPI/internal/schedule"
	"wattWiseAPI/internal/types/challenge"
	"wattWiseAPI/internal/types/notification"
)

// SweepInterval is how often the scheduler re-evaluates thresholds and
// garbage-collects expired records. An eager run happens at startup.
const SweepInterval = 30 * time.Second

var (
	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_notifications_created_total",
			Help: "Notifications created by the scheduler, by kind",
		},
		[]string{"kind"},
	)
	notificationsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_notifications_expired_total",
			Help: "Notifications dropped by the expiry sweep",
		},
	)
)

// InitSchedulerMetrics registers the scheduler counters. Call once from main.
func InitSchedulerMetrics() {
	prometheus.MustRegister(notificationsCreated)
	prometheus.MustRegister(notificationsExpired)
}

// PushProvider raises a system-level notification for a set of device
// tokens. The scheduler degrades silently when no provider is set.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]string) error
}

// SchedulerService is the single notification engine: it polls the
// clock, consults the challenge week and the response store, and emits
// at most one instance of each prompt kind per challenge per calendar
// day, expiring them when their deadline passes.
//
// Records live in memory only; a restart drops them. All creation
// decisions are pure functions of the supplied timestamp, so tests
// drive RunSweep with fabricated clocks.
type SchedulerService struct {
	store *responsestore.Store
	week  *challenge.Week

	mu      sync.Mutex
	records map[string][]*notification.Record
	created map[string]bool
	seen    map[string]bool

	push PushProvider
	now  func() time.Time
}

func NewSchedulerService(store *responsestore.Store, week *challenge.Week) *SchedulerService {
	return &SchedulerService{
		store:   store,
		week:    week,
		records: make(map[string][]*notification.Record),
		created: make(map[string]bool),
		seen:    make(map[string]bool),
		now:     time.Now,
	}
}

// SetPushProvider injects the optional push backend.
func (s *SchedulerService) SetPushProvider(p PushProvider) {
	s.push = p
}

// Track registers a user for the periodic sweep. Handlers call this on
// every authenticated request so fresh users get prompts before their
// first stored response.
func (s *SchedulerService) Track(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[userID] = true
}

// StartSweeper runs the sweep eagerly once and then on every tick until
// the context is cancelled.
func (s *SchedulerService) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)

	go func() {
		defer ticker.Stop()

		s.RunSweep(s.now())
		for {
			select {
			case <-ticker.C:
				s.RunSweep(s.now())
			case <-ctx.Done():
				log.Println("Notification sweeper stopped")
				return
			}
		}
	}()
}

// RunSweep expires stale records and creates any prompt whose threshold
// has been crossed, for every user the service knows about. It is
// idempotent: running it twice with the same timestamp changes nothing.
func (s *SchedulerService) RunSweep(now time.Time) {
	users := s.sweepUsers()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLedgerLocked(now)
	for _, userID := range users {
		s.expireLocked(userID, now)
		s.evaluateLocked(userID, now)
	}
}

// sweepUsers unions users seen by the HTTP layer with users the store
// already holds state for.
func (s *SchedulerService) sweepUsers() []string {
	set := make(map[string]bool)

	stored, err := s.store.ActiveUsers()
	if err != nil {
		log.Printf("Sweep: failed to list stored users: %v", err)
	}
	for _, u := range stored {
		set[u] = true
	}

	s.mu.Lock()
	for u := range s.seen {
		set[u] = true
	}
	s.mu.Unlock()

	users := make([]string, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	return users
}

func (s *SchedulerService) expireLocked(userID string, now time.Time) {
	kept := s.records[userID][:0]
	for _, rec := range s.records[userID] {
		if rec.Deadline != nil && !now.Before(*rec.Deadline) {
			notificationsExpired.Inc()
			continue
		}
		kept = append(kept, rec)
	}
	s.records[userID] = kept
}

// evaluateLocked walks the week and creates every prompt that is due.
// Expiry never writes to the response store: a missed prompt simply
// disappears.
func (s *SchedulerService) evaluateLocked(userID string, now time.Time) {
	for _, c := range s.week.Challenges {
		s.evaluateParticipationLocked(userID, c, now)
		s.evaluateReminderLocked(userID, c, now)
		s.evaluateCompletionLocked(userID, c, now)
	}
}

func (s *SchedulerService) evaluateParticipationLocked(userID string, c *challenge.Challenge, now time.Time) {
	start := schedule.ParticipationWindowStart(c.Date)
	deadline := schedule.ParticipationDeadline(c.Date)
	if now.Before(start) || !now.Before(deadline) {
		return
	}
	if s.createdToday(userID, c.ID, notification.KindParticipationRequest, now) ||
		s.hasUnreadLocked(userID, c.ID, notification.KindParticipationRequest) {
		return
	}
	// A failed read counts as "no answer recorded": the prompt still
	// appears, and the user can answer once the store recovers.
	_, answered, err := s.store.GetParticipation(userID, c.ID)
	if err != nil {
		log.Printf("Sweep: participation read failed for %s/%d: %v", userID, c.ID, err)
	}
	if answered {
		return
	}

	s.createLocked(userID, &notification.Record{
		Kind:             notification.KindParticipationRequest,
		ChallengeID:      c.ID,
		Title:            "Tonight's energy challenge",
		Message:          fmt.Sprintf("Will you take part in today's challenge? Cut your electricity use between %02d:00 and %02d:00.", c.StartTime.Hour(), c.EndTime.Hour()),
		RequiresResponse: true,
		Deadline:         &deadline,
	}, now)
}

func (s *SchedulerService) evaluateReminderLocked(userID string, c *challenge.Challenge, now time.Time) {
	threshold := schedule.ReminderThreshold(c.Date)
	deadline := schedule.ChallengeStart(c.Date)
	if now.Before(threshold) || !now.Before(deadline) {
		return
	}
	if s.createdToday(userID, c.ID, notification.KindChallengeReminder, now) ||
		s.hasUnreadLocked(userID, c.ID, notification.KindChallengeReminder) {
		return
	}
	participating, answered, err := s.store.GetParticipation(userID, c.ID)
	if err != nil {
		log.Printf("Sweep: participation read failed for %s/%d: %v", userID, c.ID, err)
		return
	}
	if !answered || !participating {
		return
	}

	s.createLocked(userID, &notification.Record{
		Kind:        notification.KindChallengeReminder,
		ChallengeID: c.ID,
		Title:       "Challenge starting soon",
		Message:     "Your energy challenge starts at 19:00. Time to power down!",
		Deadline:    &deadline,
	}, now)
}

func (s *SchedulerService) evaluateCompletionLocked(userID string, c *challenge.Challenge, now time.Time) {
	start := schedule.CompletionWindowStart(c.Date)
	deadline := schedule.CompletionDeadline(c.Date)
	if now.Before(start) || !now.Before(deadline) {
		return
	}
	if s.createdToday(userID, c.ID, notification.KindChallengeCompletion, now) ||
		s.hasUnreadLocked(userID, c.ID, notification.KindChallengeCompletion) {
		return
	}
	participating, answered, err := s.store.GetParticipation(userID, c.ID)
	if err != nil {
		log.Printf("Sweep: participation read failed for %s/%d: %v", userID, c.ID, err)
		return
	}
	if !answered || !participating {
		return
	}
	if _, completed, err := s.store.GetCompletion(userID, c.ID); err != nil || completed {
		if err != nil {
			log.Printf("Sweep: completion read failed for %s/%d: %v", userID, c.ID, err)
		}
		return
	}

	s.createLocked(userID, &notification.Record{
		Kind:             notification.KindChallengeCompletion,
		ChallengeID:      c.ID,
		Title:            "How did it go?",
		Message:          "The challenge window is over. Tell us which sustainable actions you managed to pull off.",
		RequiresResponse: true,
		Deadline:         &deadline,
	}, now)
}

func dedupKey(userID string, challengeID int, kind notification.NotificationKind, now time.Time) string {
	return fmt.Sprintf("%s|%d|%s|%s", userID, challengeID, kind, now.Format("2006-01-02"))
}

// createdToday reports whether a record of this kind was already
// created for the challenge on now's calendar date, read or not.
func (s *SchedulerService) createdToday(userID string, challengeID int, kind notification.NotificationKind, now time.Time) bool {
	return s.created[dedupKey(userID, challengeID, kind, now)]
}

// pruneLedgerLocked drops dedup keys from days that are fully over:
// once a calendar day is two dates in the past, every prompt it could
// have produced (including the morning-after completion deadline) has
// expired, so the key can never suppress a creation again. Without
// pruning the ledger grows by one key per user, challenge and kind per
// day for the life of the process.
func (s *SchedulerService) pruneLedgerLocked(now time.Time) {
	cutoff := now.AddDate(0, 0, -1).Format("2006-01-02")
	for key := range s.created {
		if day := key[strings.LastIndexByte(key, '|')+1:]; day < cutoff {
			delete(s.created, key)
		}
	}
}

// hasUnreadLocked reports whether an unread record of this kind is
// still alive for the challenge, whichever day created it. Guards the
// overnight completion window, where the creation ledger alone would
// allow a duplicate after midnight.
func (s *SchedulerService) hasUnreadLocked(userID string, challengeID int, kind notification.NotificationKind) bool {
	for _, rec := range s.records[userID] {
		if rec.ChallengeID == challengeID && rec.Kind == kind && !rec.IsRead {
			return true
		}
	}
	return false
}

func (s *SchedulerService) createLocked(userID string, rec *notification.Record, now time.Time) {
	rec.ID = uuid.New()
	rec.UserID = userID
	rec.CreatedAt = now

	s.records[userID] = append(s.records[userID], rec)
	if rec.Kind != notification.KindCustom {
		s.created[dedupKey(userID, rec.ChallengeID, rec.Kind, now)] = true
	}
	notificationsCreated.WithLabelValues(string(rec.Kind)).Inc()
	log.Printf("Scheduler: created %s for user %s challenge %d", rec.Kind, userID, rec.ChallengeID)

	s.dispatchPush(userID, rec)
}

// dispatchPush raises a best-effort system notification. Push failures
// and missing configuration degrade silently to in-app records.
func (s *SchedulerService) dispatchPush(userID string, rec *notification.Record) {
	if s.push == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tokens, err := s.store.DeviceTokens(userID)
		if err != nil {
			log.Printf("Push: failed to load device tokens for %s: %v", userID, err)
			return
		}
		if len(tokens) == 0 {
			return
		}

		data := map[string]string{"kind": string(rec.Kind)}
		if rec.ChallengeID != 0 {
			data["challenge_id"] = fmt.Sprintf("%d", rec.ChallengeID)
		}
		if err := s.push.SendPush(ctx, tokens, rec.Title, rec.Message, data); err != nil {
			log.Printf("Push: delivery failed for %s: %v", userID, err)
		}
	}()
}

// CreateCustom adds a free-form record outside the challenge state
// machine, e.g. the onboarding welcome.
func (s *SchedulerService) CreateCustom(userID, title, message string) *notification.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &notification.Record{
		Kind:    notification.KindCustom,
		Title:   title,
		Message: message,
	}
	s.createLocked(userID, rec, s.now())
	return rec
}

// Notifications returns the user's current records, newest first.
// Records are copied: callers marshal them after the lock is released,
// while the sweep keeps mutating the originals.
func (s *SchedulerService) Notifications(userID string) *notification.ListResponse {
	s.Track(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &notification.ListResponse{Notifications: []*notification.Record{}}
	for i := len(s.records[userID]) - 1; i >= 0; i-- {
		rec := *s.records[userID][i]
		resp.Notifications = append(resp.Notifications, &rec)
		if !rec.IsRead {
			resp.UnreadCount++
		}
	}
	return resp
}

// UnreadCount returns the number of unread records for the user.
func (s *SchedulerService) UnreadCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.records[userID] {
		if !rec.IsRead {
			count++
		}
	}
	return count
}

// MarkRead resolves a single record, e.g. an explicit dismiss.
func (s *SchedulerService) MarkRead(userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[userID] {
		if rec.ID == id {
			rec.IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %s not found", id)
}

// MarkAllRead resolves every record for the user.
func (s *SchedulerService) MarkAllRead(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[userID] {
		rec.IsRead = true
	}
}

// ResolveChallenge marks all records sharing the challenge id as read,
// regardless of kind. Answering one prompt resolves its siblings.
func (s *SchedulerService) ResolveChallenge(userID string, challengeID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[userID] {
		if rec.ChallengeID == challengeID {
			rec.IsRead = true
		}
	}
}
