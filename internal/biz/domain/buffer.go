package domain

import "time"

// BufferedMessage is an inbound group message waiting for classification.
// It is immutable once buffered.
type BufferedMessage struct {
	ChatID           int64     `json:"chatId"`
	UserID           int64     `json:"userId"`
	MessageID        int64     `json:"messageId"`
	Text             string    `json:"text"`
	Timestamp        time.Time `json:"timestamp"`
	Username         string    `json:"username,omitempty"`
	FirstName        string    `json:"firstName,omitempty"`
	IsAdmin          bool      `json:"isAdmin"`
	ReplyToMessageID int64     `json:"replyToMessageId,omitempty"`
	ReplyToUserID    int64     `json:"replyToUserId,omitempty"`
}

// DisplayName returns the best human-readable name for the author
func (m *BufferedMessage) DisplayName() string {
	switch {
	case m.Username != "":
		return "@" + m.Username
	case m.FirstName != "":
		return m.FirstName
	default:
		return "user"
	}
}

// BufferState is a snapshot of every pending queue, keyed by chat id
type BufferState map[int64][]BufferedMessage

// OverflowPolicy decides what happens when a chat queue is full
type OverflowPolicy string

const (
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	OverflowRejectNew  OverflowPolicy = "reject_new"
)

// BufferSummary represents buffer overview
type BufferSummary struct {
	ChatID       int64     `json:"chat_id"`
	MessageCount int       `json:"message_count"`
	LastMessage  time.Time `json:"last_message"`
}
