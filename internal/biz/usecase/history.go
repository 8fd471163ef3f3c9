package usecase

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// HistorySizer measures the serialized size of a history slice in characters
type HistorySizer func(entries []domain.StoredHistoryEntry) int

// JSONHistorySize is the size of the persisted JSON form
func JSONHistorySize(entries []domain.StoredHistoryEntry) int {
	if entries == nil {
		entries = []domain.StoredHistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return 0
	}
	return utf8.RuneCount(data)
}

// HistoryReducer trims history to a character budget by dropping the oldest entries
type HistoryReducer struct {
	sizer HistorySizer
}

// NewHistoryReducer creates a reducer, nil sizer means JSONHistorySize
func NewHistoryReducer(sizer HistorySizer) *HistoryReducer {
	if sizer == nil {
		sizer = JSONHistorySize
	}
	return &HistoryReducer{sizer: sizer}
}

// Reduce keeps the newest suffix whose size fits budget, at least one entry if any exist
func (r *HistoryReducer) Reduce(entries []domain.StoredHistoryEntry, budget int) []domain.StoredHistoryEntry {
	return ReduceHistory(entries, budget, r.sizer)
}

// ReduceHistory is Reduce with an explicit sizer.
// Sizes are assumed to grow with the number of entries, so the cut point is found by bisection.
func ReduceHistory(entries []domain.StoredHistoryEntry, budget int, sizer HistorySizer) []domain.StoredHistoryEntry {
	n := len(entries)
	if n == 0 {
		return nil
	}
	if sizer(entries) <= budget {
		return cloneEntries(entries)
	}

	// smallest start in [1, n-1] whose suffix fits, n-1 if none does
	lo, hi := 1, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if sizer(entries[mid:]) <= budget {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return cloneEntries(entries[lo:])
}

// MergeHistory appends new entries, skipping messages already recorded
func MergeHistory(existing, added []domain.StoredHistoryEntry) []domain.StoredHistoryEntry {
	seen := make(map[int64]struct{}, len(existing))
	merged := make([]domain.StoredHistoryEntry, 0, len(existing)+len(added))
	for _, e := range existing {
		if e.Sender != domain.SenderBot {
			seen[e.Message.MessageID] = struct{}{}
		}
		merged = append(merged, e)
	}
	for _, e := range added {
		if e.Sender != domain.SenderBot {
			if _, dup := seen[e.Message.MessageID]; dup {
				continue
			}
			seen[e.Message.MessageID] = struct{}{}
		}
		merged = append(merged, e)
	}
	return merged
}

func cloneEntries(entries []domain.StoredHistoryEntry) []domain.StoredHistoryEntry {
	out := make([]domain.StoredHistoryEntry, len(entries))
	copy(out, entries)
	return out
}
