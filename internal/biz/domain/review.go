package domain

import "time"

// ReviewState is the lifecycle state of a gated decision
type ReviewState string

const (
	ReviewPending  ReviewState = "pending"
	ReviewPrompted ReviewState = "prompted"
	ReviewApproved ReviewState = "approved"
	ReviewRejected ReviewState = "rejected"
	ReviewExpired  ReviewState = "expired"
)

// IsTerminal reports whether no further transition is possible
func (s ReviewState) IsTerminal() bool {
	return s == ReviewApproved || s == ReviewRejected || s == ReviewExpired
}

// ReviewRequest wraps a kick/ban decision awaiting admin confirmation
type ReviewRequest struct {
	ID                    string             `json:"id"`
	ChatID                int64              `json:"chatId"`
	Decision              ModerationDecision `json:"decision"`
	MessageContext        string             `json:"messageContext"`
	AdminMentions         []string           `json:"adminMentions"`
	AdminUserIDs          []int64            `json:"adminUserIds,omitempty"`
	TTLSeconds            int                `json:"ttlSeconds"`
	State                 ReviewState        `json:"state"`
	AnnouncementMessageID int64              `json:"announcementMessageId,omitempty"`
	AnnounceAttempts      int                `json:"announceAttempts"`
	CreatedAt             time.Time          `json:"createdAt"`
	ExpiresAt             time.Time          `json:"expiresAt"`
}

// IsExpired checks whether the request outlived its TTL
func (r *ReviewRequest) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// CanDecide checks whether userID may approve or reject the request.
// An empty admin list means the transport already verified the decider.
func (r *ReviewRequest) CanDecide(userID int64) bool {
	if len(r.AdminUserIDs) == 0 {
		return true
	}
	for _, id := range r.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ReviewOutcome is the result of handling a review decision
type ReviewOutcome struct {
	RequestID string      `json:"requestId"`
	State     ReviewState `json:"state"`
	Executed  bool        `json:"executed"`
}
