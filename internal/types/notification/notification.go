package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	KindParticipationRequest NotificationKind = "participation-request"
	KindChallengeReminder    NotificationKind = "challenge-reminder"
	KindChallengeCompletion  NotificationKind = "challenge-completion"
	KindCustom               NotificationKind = "custom"
)

// Record is an ephemeral in-memory prompt created by the scheduler.
// Records are never persisted; a restart drops them.
type Record struct {
	ID               uuid.UUID        `json:"id"`
	UserID           string           `json:"user_id"`
	Kind             NotificationKind `json:"kind"`
	ChallengeID      int              `json:"challenge_id,omitempty"` // 0 for custom records
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	IsRead           bool             `json:"is_read"`
	RequiresResponse bool             `json:"requires_response"`
	CreatedAt        time.Time        `json:"created_at"`
	Deadline         *time.Time       `json:"deadline,omitempty"`
}

type ListResponse struct {
	Notifications []*Record `json:"notifications"`
	UnreadCount   int       `json:"unread_count"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
