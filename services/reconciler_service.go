package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"wattWiseAPI/internal/catalog"
	"wattWiseAPI/internal/responsestore"
	"wattWiseAPI/internal/schedule"
	"wattWiseAPI/internal/types/action"
	"wattWiseAPI/internal/types/challenge"
	"wattWiseAPI/internal/types/profile"
)

const (
	streakBonusThreshold = 3
	streakBonusPoints    = 5
)

var (
	ErrUnknownChallenge        = errors.New("challenge id is not in the active week")
	ErrParticipationAlreadySet = errors.New("participation answer already recorded")
	ErrEmptyActionList         = errors.New("action list must not be empty")
	ErrMixedNoneSelection      = errors.New(`"none" cannot be combined with real actions`)
	ErrUnknownAction           = errors.New("unknown action id")
)

// ProfileLedger is the slice of the external profile service the
// reconciler needs: fetch the record and apply one challenge's outcome.
type ProfileLedger interface {
	Fetch(ctx context.Context, clerkID string) (*profile.Record, error)
	ApplyLedger(ctx context.Context, clerkID string, delta *profile.LedgerDelta) (*profile.Record, error)
}

// ReconcilerService applies user responses: it persists them to the
// response store, computes the points/streak delta, resolves the
// related notifications, and pushes the result to the profile service.
type ReconcilerService struct {
	store     *responsestore.Store
	catalog   *catalog.Catalog
	week      *challenge.Week
	scheduler *SchedulerService
	profiles  ProfileLedger
	pointsCap int // 0 means no per-challenge cap

	mu  sync.Mutex
	now func() time.Time
}

func NewReconcilerService(store *responsestore.Store, cat *catalog.Catalog, week *challenge.Week, scheduler *SchedulerService, profiles ProfileLedger, pointsCap int) *ReconcilerService {
	return &ReconcilerService{
		store:     store,
		catalog:   cat,
		week:      week,
		scheduler: scheduler,
		profiles:  profiles,
		pointsCap: pointsCap,
		now:       time.Now,
	}
}

// RespondToParticipation records the yes/no answer for a challenge.
// Answers are immutable once given: a conflicting re-answer is an
// error, a repeated identical answer is a no-op. Declining a challenge
// dated today or earlier also auto-completes it with the "none"
// sentinel, since a non-participant has nothing left to report.
func (r *ReconcilerService) RespondToParticipation(ctx context.Context, userID string, challengeID int, participating bool) (*challenge.ResponseResult, error) {
	c := r.week.ByID(challengeID)
	if c == nil {
		return nil, ErrUnknownChallenge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, answered, err := r.store.GetParticipation(userID, challengeID)
	if err != nil {
		return nil, err
	}
	if answered {
		if existing != participating {
			return nil, ErrParticipationAlreadySet
		}
		return &challenge.ResponseResult{
			ChallengeID: challengeID,
			Message:     "Your answer was already recorded.",
		}, nil
	}

	if err := r.store.SetParticipation(userID, challengeID, participating); err != nil {
		return nil, err
	}

	message := "You're in! The challenge starts at 19:00."
	if !participating {
		message = "Thanks for letting us know. Maybe tomorrow!"

		if !c.Date.After(schedule.DayOf(r.now())) {
			completed, err := r.store.IsCompleted(userID, challengeID)
			if err != nil {
				log.Printf("Reconciler: completion check failed for %s/%d: %v", userID, challengeID, err)
			}
			if err == nil && !completed {
				if err := r.store.SetCompletion(userID, challengeID, []string{action.NoneSentinel}); err != nil {
					log.Printf("Reconciler: auto-completion failed for %s/%d: %v", userID, challengeID, err)
				}
			}
		}
	}

	r.scheduler.ResolveChallenge(userID, challengeID)
	go r.refreshProfileCache(userID)

	return &challenge.ResponseResult{
		ChallengeID: challengeID,
		Message:     message,
	}, nil
}

// CompleteChallengeActions scores a completion report. An
// already-completed challenge is a no-op that never re-awards points.
func (r *ReconcilerService) CompleteChallengeActions(ctx context.Context, userID string, challengeID int, actionIDs []string) (*challenge.ResponseResult, error) {
	c := r.week.ByID(challengeID)
	if c == nil {
		return nil, ErrUnknownChallenge
	}
	if len(actionIDs) == 0 {
		return nil, ErrEmptyActionList
	}

	isNone := false
	for _, id := range actionIDs {
		if id == action.NoneSentinel {
			isNone = true
			continue
		}
		if !r.catalog.Has(id) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, id)
		}
	}
	if isNone && len(actionIDs) > 1 {
		return nil, ErrMixedNoneSelection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	completed, err := r.store.IsCompleted(userID, challengeID)
	if err != nil {
		return nil, err
	}
	counters, err := r.store.Counters(userID)
	if err != nil {
		return nil, err
	}
	if completed {
		return &challenge.ResponseResult{
			ChallengeID:      challengeID,
			Message:          "This challenge is already completed.",
			Streak:           counters.Streak,
			AlreadyCompleted: true,
		}, nil
	}

	actionsPoints := 0
	if !isNone {
		for _, id := range actionIDs {
			pts, ok := r.catalog.Points(id)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownAction, id)
			}
			actionsPoints += pts
		}
	}

	newStreak := 0
	if actionsPoints > 0 {
		newStreak = counters.Streak + 1
	}
	streakBonus := 0
	if newStreak >= streakBonusThreshold {
		streakBonus = streakBonusPoints
	}
	totalPoints := actionsPoints + streakBonus
	if r.pointsCap > 0 && totalPoints > r.pointsCap {
		totalPoints = r.pointsCap
	}

	if err := r.store.SetCompletion(userID, challengeID, actionIDs); err != nil {
		return nil, err
	}

	counters.Streak = newStreak
	counters.TotalPoints += totalPoints
	counters.CompletedChallenges++
	if err := r.store.SetCounters(userID, counters); err != nil {
		log.Printf("Reconciler: counter cache write failed for %s: %v", userID, err)
	}

	// Fire once and log; the profile service is best-effort here and the
	// cache recovers on the next successful refresh.
	delta := &profile.LedgerDelta{
		CompletedChallenges: 1,
		TotalPoints:         totalPoints,
		Streak:              newStreak,
	}
	if rec, err := r.profiles.ApplyLedger(ctx, userID, delta); err != nil {
		log.Printf("Reconciler: ledger push failed for %s: %v", userID, err)
	} else {
		r.cacheProfile(userID, rec)
	}

	r.scheduler.ResolveChallenge(userID, challengeID)

	message := fmt.Sprintf("Nice work! You earned %d points.", totalPoints)
	if streakBonus > 0 {
		message = fmt.Sprintf("Nice work! You earned %d points, including a %d point streak bonus.", totalPoints, streakBonus)
	}
	if isNone {
		message = "Thanks for your honesty. Tomorrow is a fresh start!"
	}

	return &challenge.ResponseResult{
		ChallengeID:  challengeID,
		Message:      message,
		PointsEarned: totalPoints,
		Streak:       newStreak,
		StreakBonus:  streakBonus,
	}, nil
}

// Profile returns the external profile record, falling back to the
// cached snapshot when the service is unreachable.
func (r *ReconcilerService) Profile(ctx context.Context, userID string) (*profile.Record, error) {
	rec, err := r.profiles.Fetch(ctx, userID)
	if err == nil {
		r.cacheProfile(userID, rec)
		return rec, nil
	}
	log.Printf("Reconciler: profile fetch failed for %s, trying cache: %v", userID, err)

	snapshot, present, cacheErr := r.store.CachedProfile(userID)
	if cacheErr != nil || !present {
		return nil, err
	}
	cached := &profile.Record{}
	if jsonErr := json.Unmarshal(snapshot, cached); jsonErr != nil {
		return nil, err
	}
	return cached, nil
}

func (r *ReconcilerService) cacheProfile(userID string, rec *profile.Record) {
	snapshot, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.store.CacheProfile(userID, snapshot); err != nil {
		log.Printf("Reconciler: profile cache write failed for %s: %v", userID, err)
	}
}

// refreshProfileCache re-reads the profile in the background after a
// participation answer. Detached from the request context so an early
// client disconnect cannot cancel it.
func (r *ReconcilerService) refreshProfileCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := r.profiles.Fetch(ctx, userID)
	if err != nil {
		log.Printf("Reconciler: profile refresh failed for %s: %v", userID, err)
		return
	}
	r.cacheProfile(userID, rec)
}
