package domain

// ModerationDecision is a concrete action derived from a classification result
type ModerationDecision struct {
	MessageID       int64            `json:"messageId"`
	UserID          int64            `json:"userId"`
	Action          ModerationAction `json:"action"`
	Text            string           `json:"text,omitempty"`
	DurationMinutes int              `json:"durationMinutes,omitempty"`
	TargetMessageID int64            `json:"targetMessageId,omitempty"`
}

// AgentResponseDecision is the single reply selected for a batch
type AgentResponseDecision struct {
	ChatID           int64
	MessageID        int64
	Text             string
	ReplyToMessageID int64
}

// AgentResolution ties one message to everything decided about it in a batch
type AgentResolution struct {
	Message    BufferedMessage
	Result     *ClassificationResult
	Moderation []ModerationDecision
	Response   *AgentResponseDecision
}
