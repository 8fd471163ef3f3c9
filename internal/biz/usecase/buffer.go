package usecase

import (
	"sort"
	"sync"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// BufferConfig contains buffer configuration
type BufferConfig struct {
	MaxPerChat int                   // Max pending messages per chat (0 = unbounded)
	Overflow   domain.OverflowPolicy // What to do when a chat queue is full
}

// DefaultBufferConfig returns default buffer configuration
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		MaxPerChat: 500,
		Overflow:   domain.OverflowDropOldest,
	}
}

// MessageBuffer is the in-memory per-chat FIFO of pending messages
type MessageBuffer struct {
	mu     sync.Mutex
	queues map[int64][]domain.BufferedMessage
	config BufferConfig
}

// NewMessageBuffer creates a buffer, optionally restored from a snapshot
func NewMessageBuffer(state domain.BufferState, config BufferConfig) *MessageBuffer {
	b := &MessageBuffer{
		queues: make(map[int64][]domain.BufferedMessage),
		config: config,
	}
	b.Restore(state)
	return b
}

// Add appends msg to the tail of its chat queue
func (b *MessageBuffer) Add(msg domain.BufferedMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queues[msg.ChatID]
	if max := b.config.MaxPerChat; max > 0 && len(q) >= max {
		if b.config.Overflow == domain.OverflowRejectNew {
			return domain.ErrBufferFull
		}
		// drop oldest
		q = append(q[:0:0], q[len(q)-max+1:]...)
	}
	b.queues[msg.ChatID] = append(q, msg)
	return nil
}

// Pending returns a copy of the chat's pending sequence
func (b *MessageBuffer) Pending(chatID int64) []domain.BufferedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queues[chatID]
	if len(q) == 0 {
		return nil
	}
	out := make([]domain.BufferedMessage, len(q))
	copy(out, q)
	return out
}

// Remove deletes the given message ids from a chat queue, in any position
func (b *MessageBuffer) Remove(chatID int64, messageIDs []int64) {
	if len(messageIDs) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	drop := make(map[int64]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		drop[id] = struct{}{}
	}

	q := b.queues[chatID]
	kept := q[:0:0]
	for _, m := range q {
		if _, ok := drop[m.MessageID]; !ok {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(b.queues, chatID)
		return
	}
	b.queues[chatID] = kept
}

// ChatIDs lists chats with non-empty queues in ascending order
func (b *MessageBuffer) ChatIDs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int64, 0, len(b.queues))
	for id, q := range b.queues {
		if len(q) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clear empties one chat
func (b *MessageBuffer) Clear(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queues, chatID)
}

// Snapshot copies every non-empty queue
func (b *MessageBuffer) Snapshot() domain.BufferState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := make(domain.BufferState, len(b.queues))
	for id, q := range b.queues {
		if len(q) == 0 {
			continue
		}
		cp := make([]domain.BufferedMessage, len(q))
		copy(cp, q)
		state[id] = cp
	}
	return state
}

// Restore replaces the queues of the chats present in state.
// Messages already buffered for those chats are kept after the restored ones.
func (b *MessageBuffer) Restore(state domain.BufferState) {
	if len(state) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, restored := range state {
		if len(restored) == 0 {
			continue
		}
		seen := make(map[int64]struct{}, len(restored))
		merged := make([]domain.BufferedMessage, 0, len(restored)+len(b.queues[id]))
		for _, m := range restored {
			seen[m.MessageID] = struct{}{}
			merged = append(merged, m)
		}
		for _, m := range b.queues[id] {
			if _, dup := seen[m.MessageID]; !dup {
				merged = append(merged, m)
			}
		}
		if max := b.config.MaxPerChat; max > 0 && len(merged) > max {
			merged = merged[len(merged)-max:]
		}
		b.queues[id] = merged
	}
}

// Summary returns per-chat counts, ordered by chat id
func (b *MessageBuffer) Summary() []domain.BufferSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.BufferSummary, 0, len(b.queues))
	for id, q := range b.queues {
		if len(q) == 0 {
			continue
		}
		out = append(out, domain.BufferSummary{
			ChatID:       id,
			MessageCount: len(q),
			LastMessage:  q[len(q)-1].Timestamp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}
