package domain

// ActionKind is the transport-facing name of a moderation action
type ActionKind string

const (
	KindDeleteMessage ActionKind = "deleteMessage"
	KindWarnUser      ActionKind = "warnUser"
	KindMuteUser      ActionKind = "muteUser"
	KindUnmuteUser    ActionKind = "unmuteUser"
	KindKickUser      ActionKind = "kickUser"
	KindBanUser       ActionKind = "banUser"
	KindUnbanUser     ActionKind = "unbanUser"
)

var actionKinds = map[ModerationAction]ActionKind{
	ActionDelete: KindDeleteMessage,
	ActionWarn:   KindWarnUser,
	ActionMute:   KindMuteUser,
	ActionUnmute: KindUnmuteUser,
	ActionKick:   KindKickUser,
	ActionBan:    KindBanUser,
	ActionUnban:  KindUnbanUser,
}

// Action is one typed step of a moderation event
type Action struct {
	Kind             ActionKind `json:"kind"`
	UserID           int64      `json:"userId,omitempty"`
	MessageID        int64      `json:"messageId,omitempty"`
	DurationMinutes  int        `json:"durationMinutes,omitempty"`
	Text             string     `json:"text,omitempty"`
	TriggerMessageID int64      `json:"triggerMessageId,omitempty"`
}

// ActionFromDecision converts a decision, ok is false for none
func ActionFromDecision(d ModerationDecision) (Action, bool) {
	kind, ok := actionKinds[d.Action]
	if !ok {
		return Action{}, false
	}
	a := Action{
		Kind:             kind,
		UserID:           d.UserID,
		DurationMinutes:  d.DurationMinutes,
		Text:             d.Text,
		TriggerMessageID: d.MessageID,
	}
	if d.Action == ActionDelete {
		a.MessageID = d.TargetMessageID
	}
	return a, true
}

// ModerationEvent carries every immediate action for one chat and batch
type ModerationEvent struct {
	ChatID  int64    `json:"chatId"`
	Actions []Action `json:"actions"`
}

// AgentResponseEvent is a reply to post in the chat
type AgentResponseEvent struct {
	ChatID           int64  `json:"chatId"`
	Text             string `json:"text"`
	ReplyToMessageID int64  `json:"replyToMessageId"`
}

// ReviewPromptSentEvent reports that a review announcement was posted
type ReviewPromptSentEvent struct {
	RequestID             string
	ChatID                int64
	AnnouncementMessageID int64
}

// ReviewDecisionEvent is an admin's approve/reject signal.
// Either RequestID or AnnouncementMessageID identifies the request.
type ReviewDecisionEvent struct {
	ChatID                int64
	RequestID             string
	AnnouncementMessageID int64
	Approved              bool
	DeciderUserID         int64
}
