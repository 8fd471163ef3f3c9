package domain

// ClassificationType is the model's verdict for one message
type ClassificationType string

const (
	ClassificationNormal     ClassificationType = "normal"
	ClassificationViolation  ClassificationType = "violation"
	ClassificationBotMention ClassificationType = "bot_mention"
)

// compact encoding order: c=0,1,2
var classificationCodes = []ClassificationType{
	ClassificationNormal,
	ClassificationViolation,
	ClassificationBotMention,
}

// ParseClassificationType coerces anything unknown to normal
func ParseClassificationType(s string) ClassificationType {
	switch ClassificationType(s) {
	case ClassificationViolation, ClassificationBotMention:
		return ClassificationType(s)
	default:
		return ClassificationNormal
	}
}

// ClassificationFromCode maps the compact numeric form, unknown codes become normal
func ClassificationFromCode(code int) ClassificationType {
	if code < 0 || code >= len(classificationCodes) {
		return ClassificationNormal
	}
	return classificationCodes[code]
}

// Code returns the compact numeric form
func (t ClassificationType) Code() int {
	for i, c := range classificationCodes {
		if c == t {
			return i
		}
	}
	return 0
}

// ModerationAction is one of the eight actions the classifier may request
type ModerationAction string

const (
	ActionNone   ModerationAction = "none"
	ActionWarn   ModerationAction = "warn"
	ActionDelete ModerationAction = "delete"
	ActionMute   ModerationAction = "mute"
	ActionUnmute ModerationAction = "unmute"
	ActionKick   ModerationAction = "kick"
	ActionBan    ModerationAction = "ban"
	ActionUnban  ModerationAction = "unban"
)

// compact encoding order: a=0..7
var actionCodes = []ModerationAction{
	ActionNone,
	ActionWarn,
	ActionDelete,
	ActionMute,
	ActionUnmute,
	ActionKick,
	ActionBan,
	ActionUnban,
}

// ParseModerationAction coerces anything unknown to none
func ParseModerationAction(s string) ModerationAction {
	for _, a := range actionCodes {
		if string(a) == s {
			return a
		}
	}
	return ActionNone
}

// ModerationActionFromCode maps the compact numeric form, unknown codes become none
func ModerationActionFromCode(code int) ModerationAction {
	if code < 0 || code >= len(actionCodes) {
		return ActionNone
	}
	return actionCodes[code]
}

// Code returns the compact numeric form
func (a ModerationAction) Code() int {
	for i, c := range actionCodes {
		if c == a {
			return i
		}
	}
	return 0
}

// RequiresReview reports whether an admin must confirm the action first
func (a ModerationAction) RequiresReview() bool {
	return a == ActionKick || a == ActionBan
}

// TargetsUser reports whether the action is applied to a user rather than a message
func (a ModerationAction) TargetsUser() bool {
	switch a {
	case ActionWarn, ActionMute, ActionUnmute, ActionKick, ActionBan, ActionUnban:
		return true
	}
	return false
}

// IsPunitive reports whether the action restricts or removes something
func (a ModerationAction) IsPunitive() bool {
	switch a {
	case ActionWarn, ActionDelete, ActionMute, ActionKick, ActionBan:
		return true
	}
	return false
}

// Classification is the verdict plus whether the bot should reply
type Classification struct {
	Type             ClassificationType `json:"type"`
	RequiresResponse bool               `json:"requiresResponse"`
}

// ClassificationResult is one validated, batch-scoped classifier result.
// Zero numeric fields mean the value was absent.
type ClassificationResult struct {
	MessageID        int64            `json:"messageId"`
	Classification   Classification   `json:"classification"`
	ModerationAction ModerationAction `json:"moderationAction"`
	ResponseText     string           `json:"responseText,omitempty"`
	TargetUserID     int64            `json:"targetUserId,omitempty"`
	TargetMessageID  int64            `json:"targetMessageId,omitempty"`
	DurationMinutes  int              `json:"durationMinutes,omitempty"`
}

// ParsedBatch is the parser output for one classifier call
type ParsedBatch struct {
	Results []ClassificationResult `json:"results"`
}
