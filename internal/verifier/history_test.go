package verifier

import (
	"testing"
	"time"

	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attemptAt(offset time.Duration) models.ClaimAttempt {
	return models.ClaimAttempt{SessionID: "s1", Reading: *readingAt(anchor, baseTime.Add(offset), 5)}
}

func TestAttemptHistory_FIFOEviction(t *testing.T) {
	h := NewAttemptHistory(3)

	for i := 0; i < 5; i++ {
		h.Record("s1", attemptAt(time.Duration(i)*time.Second))
	}

	attempts := h.Attempts("s1")
	require.Len(t, attempts, 3)
	assert.Equal(t, baseTime.Add(2*time.Second), attempts[0].Reading.CapturedAt)
	assert.Equal(t, baseTime.Add(4*time.Second), attempts[2].Reading.CapturedAt)
}

func TestAttemptHistory_SnapshotsAreCopies(t *testing.T) {
	h := NewAttemptHistory(10)
	snapshot := h.Record("s1", attemptAt(0))
	snapshot[0].StudentID = "mutated"

	assert.Empty(t, h.Attempts("s1")[0].StudentID)
}

func TestAttemptHistory_AppendSeesPrevious(t *testing.T) {
	h := NewAttemptHistory(10)
	h.Record("s1", attemptAt(0))

	var seen int
	h.Append("s1", func(previous []models.ClaimAttempt) models.ClaimAttempt {
		seen = len(previous)
		return attemptAt(time.Second)
	})

	assert.Equal(t, 1, seen)
	assert.Len(t, h.Attempts("s1"), 2)
}

func TestAttemptHistory_Forget(t *testing.T) {
	h := NewAttemptHistory(10)
	h.Record("s1", attemptAt(0))
	h.Record(historyKey("s1", "alice", true), attemptAt(0))
	h.Record("s10", attemptAt(0))

	h.Forget("s1")

	assert.Nil(t, h.Attempts("s1"))
	assert.Nil(t, h.Attempts(historyKey("s1", "alice", true)))
	assert.Len(t, h.Attempts("s10"), 1)
	assert.Equal(t, 1, h.Len())
}

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "s1", historyKey("s1", "alice", false))
	assert.Equal(t, "s1", historyKey("s1", "", true))
	assert.Equal(t, "s1\x00alice", historyKey("s1", "alice", true))
}
