package verifier

import (
	"strings"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// keySeparator joins session and student ids for per-student history keys.
const keySeparator = "\x00"

// AttemptHistory keeps a bounded, arrival-ordered list of claim attempts per key.
// Appends to one key are atomic; different keys never contend on the same lock
// unless they share a shard.
type AttemptHistory struct {
	capacity int
	entries  cmap.ConcurrentMap[string, []models.ClaimAttempt]
}

// NewAttemptHistory creates an empty history holding at most capacity attempts per key.
func NewAttemptHistory(capacity int) *AttemptHistory {
	if capacity <= 0 {
		capacity = constants.DefaultHistoryCapacity
	}
	return &AttemptHistory{
		capacity: capacity,
		entries:  cmap.New[[]models.ClaimAttempt](),
	}
}

// Append builds the next attempt from the current history of key and appends
// it, evicting the oldest entries beyond capacity. build runs under the key's
// lock and must not call back into the history. The returned slice is a copy
// of the history after the append, oldest first.
func (h *AttemptHistory) Append(key string, build func(previous []models.ClaimAttempt) models.ClaimAttempt) []models.ClaimAttempt {
	var snapshot []models.ClaimAttempt
	h.entries.Upsert(key, nil, func(exist bool, current []models.ClaimAttempt, _ []models.ClaimAttempt) []models.ClaimAttempt {
		if !exist {
			current = nil
		}
		attempt := build(current)

		next := make([]models.ClaimAttempt, 0, len(current)+1)
		next = append(next, current...)
		next = append(next, attempt)
		if len(next) > h.capacity {
			next = next[len(next)-h.capacity:]
		}

		snapshot = make([]models.ClaimAttempt, len(next))
		copy(snapshot, next)
		return next
	})
	return snapshot
}

// Record appends attempt to the history of key.
func (h *AttemptHistory) Record(key string, attempt models.ClaimAttempt) []models.ClaimAttempt {
	return h.Append(key, func([]models.ClaimAttempt) models.ClaimAttempt { return attempt })
}

// Attempts returns a copy of the history of key, oldest first.
func (h *AttemptHistory) Attempts(key string) []models.ClaimAttempt {
	current, ok := h.entries.Get(key)
	if !ok {
		return nil
	}
	out := make([]models.ClaimAttempt, len(current))
	copy(out, current)
	return out
}

// Forget drops the history of a session, including per-student keys.
func (h *AttemptHistory) Forget(sessionID string) {
	h.entries.Remove(sessionID)

	prefix := sessionID + keySeparator
	for _, key := range h.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			h.entries.Remove(key)
		}
	}
}

// Len returns the number of tracked keys.
func (h *AttemptHistory) Len() int {
	return h.entries.Count()
}

func historyKey(sessionID, studentID string, byStudent bool) string {
	if !byStudent || studentID == "" {
		return sessionID
	}
	return sessionID + keySeparator + studentID
}
