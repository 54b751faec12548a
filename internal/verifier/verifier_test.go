package verifier

import (
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/pkg/integrity"
	"github.com/benmeehan/geo-attendance/pkg/location"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseTime = time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	anchor   = location.Reading{Latitude: 53.3438, Longitude: -6.2546, AccuracyMeters: 8, CapturedAt: baseTime}
)

// metersNorth moves a point due north; along a meridian the Haversine
// distance is exactly R * dphi.
func metersNorth(r location.Reading, meters float64) location.Reading {
	r.Latitude += meters / (location.EarthRadiusMeters * 3.141592653589793 / 180)
	return r
}

func newTestVerifier(t *testing.T, opts Options) (*LocationVerifier, integrity.Hasher) {
	t.Helper()
	hasher, err := integrity.NewKeyedMAC([]byte("test-integrity-key"))
	require.NoError(t, err)
	return New(opts, hasher, zerolog.Nop()), hasher
}

func newSession(hasher integrity.Hasher, id string, tolerance int) *models.SessionDescriptor {
	return &models.SessionDescriptor{
		SessionID:       id,
		Course:          "CS101",
		Anchor:          anchor,
		ToleranceMeters: tolerance,
		IntegrityHash:   hasher.Hash(anchor, id),
		CreatedAt:       baseTime,
	}
}

func readingAt(r location.Reading, at time.Time, accuracy float64) *location.Reading {
	r.CapturedAt = at
	r.AccuracyMeters = accuracy
	return &r
}

func TestEvaluate_AcceptedAtAnchor(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	result, err := v.Evaluate(session, readingAt(anchor, baseTime, 5), baseTime.Add(10*time.Second))

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, constants.ReasonAccepted, result.Reason)
	require.NotNil(t, result.DistanceMeters)
	assert.InDelta(t, 0, *result.DistanceMeters, 1e-6)
	assert.False(t, result.Suspicious)
}

func TestEvaluate_StaleReading(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)
	now := baseTime.Add(time.Hour)

	result, err := v.Evaluate(session, readingAt(anchor, now.Add(-6*time.Minute), 5), now)

	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, constants.ReasonStaleReading, result.Reason)
	assert.Nil(t, result.DistanceMeters)
}

func TestEvaluate_ExactlyMaxAgeIsFresh(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)
	now := baseTime.Add(time.Hour)

	result, err := v.Evaluate(session, readingAt(anchor, now.Add(-5*time.Minute), 5), now)

	require.NoError(t, err)
	assert.Equal(t, constants.ReasonAccepted, result.Reason)
}

func TestEvaluate_LowAccuracyRegardlessOfDistance(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	for _, meters := range []float64{0, 30, 5000} {
		result, err := v.Evaluate(session, readingAt(metersNorth(anchor, meters), baseTime, 150), baseTime)

		require.NoError(t, err)
		assert.False(t, result.Accepted)
		assert.Equal(t, constants.ReasonLowAccuracy, result.Reason)
		assert.Nil(t, result.DistanceMeters)
	}
}

func TestEvaluate_OutOfRange(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	result, err := v.Evaluate(session, readingAt(metersNorth(anchor, 60), baseTime, 5), baseTime)

	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, constants.ReasonOutOfRange, result.Reason)
	require.NotNil(t, result.DistanceMeters)
	assert.InDelta(t, 60, *result.DistanceMeters, 0.01)
	assert.Equal(t, "You are 60m away; required within 50m.", result.Message(session.ToleranceMeters))
}

func TestEvaluate_ToleranceIsClamped(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})

	// a declared 5 m tolerance is raised to the 10 m floor
	result, err := v.Evaluate(newSession(hasher, "narrow", 5), readingAt(metersNorth(anchor, 8), baseTime, 5), baseTime)
	require.NoError(t, err)
	assert.True(t, result.Accepted)

	// a declared 2 km tolerance is capped at 500 m
	result, err = v.Evaluate(newSession(hasher, "wide", 2000), readingAt(metersNorth(anchor, 600), baseTime, 5), baseTime)
	require.NoError(t, err)
	assert.Equal(t, constants.ReasonOutOfRange, result.Reason)
}

func TestEvaluate_IntegrityMismatch(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)
	session.Anchor = metersNorth(session.Anchor, 2000)

	result, err := v.Evaluate(session, readingAt(session.Anchor, baseTime, 5), baseTime)

	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, constants.ReasonIntegrityMismatch, result.Reason)
	assert.Nil(t, result.DistanceMeters)
}

func TestEvaluate_IntegrityCheckedBeforeFreshness(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)
	session.IntegrityHash = "deadbeef"

	result, err := v.Evaluate(session, readingAt(anchor, baseTime, 500), baseTime.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, constants.ReasonIntegrityMismatch, result.Reason)
}

func TestEvaluate_LegacyHasher(t *testing.T) {
	hasher := integrity.NewLegacyChecksum("")
	v := New(Options{}, hasher, zerolog.Nop())
	session := &models.SessionDescriptor{
		SessionID:       "1718000000000",
		Anchor:          location.Reading{Latitude: 40.7128, Longitude: -74.0060},
		ToleranceMeters: 50,
		IntegrityHash:   "3492f037",
		CreatedAt:       baseTime,
	}

	result, err := v.Evaluate(session, &location.Reading{Latitude: 40.7128, Longitude: -74.0060, AccuracyMeters: 10, CapturedAt: baseTime}, baseTime)

	require.NoError(t, err)
	assert.Equal(t, constants.ReasonAccepted, result.Reason)
}

func TestEvaluate_MalformedInput(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	tests := []struct {
		name    string
		session *models.SessionDescriptor
		reading *location.Reading
	}{
		{"nil session", nil, readingAt(anchor, baseTime, 5)},
		{"nil reading", session, nil},
		{"empty session id", &models.SessionDescriptor{Anchor: anchor, IntegrityHash: "x"}, readingAt(anchor, baseTime, 5)},
		{"no timestamp", session, &location.Reading{Latitude: anchor.Latitude, Longitude: anchor.Longitude}},
		{"negative accuracy", session, readingAt(anchor, baseTime, -1)},
		{"latitude out of range", session, &location.Reading{Latitude: 91, CapturedAt: baseTime}},
		{"missing hash", &models.SessionDescriptor{SessionID: "s1", Anchor: anchor}, readingAt(anchor, baseTime, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Evaluate(tt.session, tt.reading, baseTime)

			assert.ErrorIs(t, err, ErrMalformedInput)
			assert.False(t, result.Accepted)
			assert.Equal(t, constants.ReasonMissingFields, result.Reason)
			assert.Nil(t, result.DistanceMeters)
		})
	}

	assert.Empty(t, v.History("s1"))
}

func TestEvaluate_SuspiciousMovementOverridesAcceptance(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)
	far := metersNorth(anchor, 1500)

	t1 := baseTime
	t2 := baseTime.Add(60 * time.Second)
	t3 := t2.Add(10 * time.Second)

	result, err := v.Evaluate(session, readingAt(anchor, t1, 5), t1)
	require.NoError(t, err)
	assert.Equal(t, constants.ReasonAccepted, result.Reason)

	result, err = v.Evaluate(session, readingAt(far, t2, 5), t2)
	require.NoError(t, err)
	assert.Equal(t, constants.ReasonOutOfRange, result.Reason)
	assert.False(t, result.Suspicious)

	result, err = v.Evaluate(session, readingAt(anchor, t3, 5), t3)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.True(t, result.Suspicious)
	assert.Equal(t, constants.ReasonSuspiciousMovement, result.Reason)
	require.NotNil(t, result.DistanceMeters)
	assert.InDelta(t, 0, *result.DistanceMeters, 1e-6)

	history := v.History("s1")
	require.Len(t, history, 3)
	assert.False(t, history[2].Accepted)
}

func TestEvaluate_NoSuspicionBelowThreeAttempts(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	_, err := v.Evaluate(session, readingAt(metersNorth(anchor, 1500), baseTime, 5), baseTime)
	require.NoError(t, err)

	result, err := v.Evaluate(session, readingAt(anchor, baseTime.Add(10*time.Second), 5), baseTime.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, result.Suspicious)
}

func TestEvaluate_SuspiciousKeepsGatingReason(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	_, err := v.Evaluate(session, readingAt(anchor, baseTime, 5), baseTime)
	require.NoError(t, err)
	_, err = v.Evaluate(session, readingAt(anchor, baseTime.Add(5*time.Second), 5), baseTime.Add(5*time.Second))
	require.NoError(t, err)

	at := baseTime.Add(10 * time.Second)
	result, err := v.Evaluate(session, readingAt(metersNorth(anchor, 1500), at, 150), at)

	require.NoError(t, err)
	assert.Equal(t, constants.ReasonLowAccuracy, result.Reason)
	assert.True(t, result.Suspicious)
	assert.Nil(t, result.DistanceMeters)
}

func TestEvaluate_HistoryCappedAtTen(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	for i := 0; i < 15; i++ {
		at := baseTime.Add(time.Duration(i) * time.Minute)
		_, err := v.Evaluate(session, readingAt(anchor, at, 5), at)
		require.NoError(t, err)
	}

	history := v.History("s1")
	require.Len(t, history, 10)
	assert.Equal(t, baseTime.Add(5*time.Minute), history[0].Reading.CapturedAt)
	assert.Equal(t, baseTime.Add(14*time.Minute), history[9].Reading.CapturedAt)
}

func TestEvaluate_RejectedAttemptsAreRecorded(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)
	now := baseTime.Add(time.Hour)

	_, err := v.Evaluate(session, readingAt(anchor, baseTime, 5), now)
	require.NoError(t, err)

	history := v.History("s1")
	require.Len(t, history, 1)
	assert.False(t, history[0].Accepted)
	assert.Equal(t, now, history[0].EvaluatedAt)
}

func TestEvaluateClaim_KeyByStudent(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{KeyByStudent: true})
	session := newSession(hasher, "s1", 50)
	far := metersNorth(anchor, 1500)

	_, err := v.EvaluateClaim(session, "alice", readingAt(anchor, baseTime, 5), baseTime)
	require.NoError(t, err)
	_, err = v.EvaluateClaim(session, "bob", readingAt(far, baseTime.Add(5*time.Second), 5), baseTime.Add(5*time.Second))
	require.NoError(t, err)

	at := baseTime.Add(10 * time.Second)
	result, err := v.EvaluateClaim(session, "carol", readingAt(anchor, at, 5), at)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, result.Suspicious)
	assert.Len(t, v.StudentHistory("s1", "alice"), 1)

	v.Forget("s1")
	assert.Empty(t, v.StudentHistory("s1", "alice"))
	assert.Equal(t, 0, v.Stats().TrackedHistories)
}

func TestEvaluate_SessionKeyedHistoryFlagsDistinctStudents(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)
	far := metersNorth(anchor, 1500)

	_, err := v.EvaluateClaim(session, "alice", readingAt(anchor, baseTime, 5), baseTime)
	require.NoError(t, err)
	_, err = v.EvaluateClaim(session, "bob", readingAt(far, baseTime.Add(5*time.Second), 5), baseTime.Add(5*time.Second))
	require.NoError(t, err)

	at := baseTime.Add(10 * time.Second)
	result, err := v.EvaluateClaim(session, "carol", readingAt(anchor, at, 5), at)

	require.NoError(t, err)
	assert.Equal(t, constants.ReasonSuspiciousMovement, result.Reason)
}

func TestVerifier_InstancesAreIsolated(t *testing.T) {
	a, hasher := newTestVerifier(t, Options{})
	b, _ := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	_, err := a.Evaluate(session, readingAt(anchor, baseTime, 5), baseTime)
	require.NoError(t, err)

	assert.Len(t, a.History("s1"), 1)
	assert.Empty(t, b.History("s1"))
}

func TestVerifier_Stats(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	_, _ = v.Evaluate(session, readingAt(anchor, baseTime, 5), baseTime)
	_, _ = v.Evaluate(session, readingAt(anchor, baseTime, 150), baseTime)
	_, _ = v.Evaluate(nil, nil, baseTime)

	stats := v.Stats()
	assert.Equal(t, int64(3), stats.Evaluations)
	assert.Equal(t, int64(1), stats.ByReason[constants.ReasonAccepted])
	assert.Equal(t, int64(1), stats.ByReason[constants.ReasonLowAccuracy])
	assert.Equal(t, int64(1), stats.ByReason[constants.ReasonMissingFields])
	assert.Equal(t, 1, stats.TrackedHistories)
}

func TestVerifier_ConcurrentEvaluations(t *testing.T) {
	v, hasher := newTestVerifier(t, Options{})
	session := newSession(hasher, "s1", 50)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Evaluate(session, readingAt(anchor, baseTime, 5), baseTime)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, v.History("s1"), 10)
	assert.Equal(t, int64(50), v.Stats().Evaluations)
}

func TestDefaultOptions(t *testing.T) {
	v := New(Options{}, nil, zerolog.Nop())
	opts := v.Options()

	assert.Equal(t, 5*time.Minute, opts.MaxReadingAge)
	assert.Equal(t, 100.0, opts.MaxAccuracyMeters)
	assert.Equal(t, 10, opts.HistoryCapacity)
	assert.Equal(t, 3, opts.Movement.Window)
	assert.Equal(t, 1000.0, opts.Movement.MaxDistanceMeters)
	assert.Equal(t, 30*time.Second, opts.Movement.MinInterval)
	assert.False(t, opts.KeyByStudent)
}
