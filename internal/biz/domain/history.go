package domain

import "time"

// Sender marks who authored a history entry
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// HistoryDecision is what was decided about a message, kept for future prompts
type HistoryDecision struct {
	Classification   ClassificationType `json:"classification"`
	RequiresResponse bool               `json:"requiresResponse"`
	Actions          []ModerationAction `json:"actions"`
	ResponseText     string             `json:"responseText,omitempty"`
	TargetUserID     int64              `json:"targetUserId,omitempty"`
	TargetMessageID  int64              `json:"targetMessageId,omitempty"`
	DurationMinutes  int                `json:"durationMinutes,omitempty"`
}

// StoredHistoryEntry is one element of a chat's durable history
type StoredHistoryEntry struct {
	Message   BufferedMessage  `json:"message"`
	Sender    Sender           `json:"sender"`
	Decision  *HistoryDecision `json:"decision,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewHistoryEntry builds a user entry from a resolution
func NewHistoryEntry(res AgentResolution, now time.Time) StoredHistoryEntry {
	entry := StoredHistoryEntry{
		Message:   res.Message,
		Sender:    SenderUser,
		Timestamp: now,
	}
	if res.Result == nil {
		return entry
	}

	d := &HistoryDecision{
		Classification:   res.Result.Classification.Type,
		RequiresResponse: res.Result.Classification.RequiresResponse,
		Actions:          []ModerationAction{},
		TargetUserID:     res.Result.TargetUserID,
		TargetMessageID:  res.Result.TargetMessageID,
		DurationMinutes:  res.Result.DurationMinutes,
	}
	for _, m := range res.Moderation {
		d.Actions = append(d.Actions, m.Action)
	}
	if res.Response != nil {
		d.ResponseText = res.Response.Text
	}
	entry.Decision = d
	return entry
}
