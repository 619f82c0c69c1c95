package challenge

import "time"

// Challenge is one day's energy-reduction event. IDs are 1-based and
// assigned by position in the active week's date list.
type Challenge struct {
	ID                 int       `json:"id"`
	Date               time.Time `json:"date"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	RecommendedActions []string  `json:"recommended_actions"`
}

// Week is the rolling 7-day challenge window computed at startup.
// Exactly one challenge exists per calendar date.
type Week struct {
	Start      time.Time    `json:"start"`
	Challenges []*Challenge `json:"challenges"`
}

// ByID returns the challenge with the given 1-based id, or nil.
func (w *Week) ByID(id int) *Challenge {
	if id < 1 || id > len(w.Challenges) {
		return nil
	}
	return w.Challenges[id-1]
}

type ParticipationRequest struct {
	Participating bool `json:"participating"`
}

type CompleteRequest struct {
	ActionIDs []string `json:"action_ids"`
}

type ResponseResult struct {
	ChallengeID      int    `json:"challenge_id"`
	Message          string `json:"message"`
	PointsEarned     int    `json:"points_earned"`
	Streak           int    `json:"streak"`
	StreakBonus      int    `json:"streak_bonus"`
	AlreadyCompleted bool   `json:"already_completed"`
}
