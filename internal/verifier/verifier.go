// Package verifier decides whether a student's location reading supports an
// attendance claim for a class session.
package verifier

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/pkg/integrity"
	"github.com/benmeehan/geo-attendance/pkg/location"
	"github.com/rs/zerolog"
)

// ErrMalformedInput is returned for inputs that cannot be evaluated at all.
// It signals a caller bug, not a rejected claim.
var ErrMalformedInput = errors.New("malformed verification input")

// Options tunes the verifier. Zero values select the defaults.
type Options struct {
	MaxReadingAge     time.Duration
	MaxAccuracyMeters float64
	HistoryCapacity   int
	Movement          MovementPolicy

	// KeyByStudent keys attempt history by (session, student) instead of by
	// session alone. Off by default: several students scanning the same code
	// from far apart within 30 s will then be flagged.
	KeyByStudent bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxReadingAge:     constants.DefaultMaxReadingAge,
		MaxAccuracyMeters: constants.DefaultMaxAccuracyMeters,
		HistoryCapacity:   constants.DefaultHistoryCapacity,
		Movement:          DefaultMovementPolicy(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxReadingAge <= 0 {
		o.MaxReadingAge = d.MaxReadingAge
	}
	if o.MaxAccuracyMeters <= 0 {
		o.MaxAccuracyMeters = d.MaxAccuracyMeters
	}
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = d.HistoryCapacity
	}
	o.Movement = o.Movement.withDefaults()
	return o
}

// LocationVerifier evaluates attendance claims and owns the attempt history
// used for suspicious-movement detection. It is safe for concurrent use.
type LocationVerifier struct {
	opts    Options
	hasher  integrity.Hasher
	history *AttemptHistory
	logger  zerolog.Logger

	statsMu     sync.Mutex
	evaluations int64
	byReason    map[constants.ReasonCode]int64
}

// New creates a LocationVerifier. A nil hasher disables the integrity check.
func New(opts Options, hasher integrity.Hasher, logger zerolog.Logger) *LocationVerifier {
	opts = opts.withDefaults()
	return &LocationVerifier{
		opts:     opts,
		hasher:   hasher,
		history:  NewAttemptHistory(opts.HistoryCapacity),
		logger:   logger,
		byReason: make(map[constants.ReasonCode]int64, len(constants.AllReasonCodes)),
	}
}

// Evaluate decides a claim keyed by session only.
func (v *LocationVerifier) Evaluate(session *models.SessionDescriptor, reading *location.Reading, now time.Time) (models.VerificationResult, error) {
	return v.EvaluateClaim(session, "", reading, now)
}

// EvaluateClaim decides a claim for studentID. Every well-formed call is
// recorded in the attempt history, accepted or not. Malformed input yields a
// MISSING_FIELDS result together with an error wrapping ErrMalformedInput and
// is not recorded.
func (v *LocationVerifier) EvaluateClaim(session *models.SessionDescriptor, studentID string, reading *location.Reading, now time.Time) (models.VerificationResult, error) {
	if err := validateInput(session, reading, v.hasher != nil); err != nil {
		v.count(constants.ReasonMissingFields)
		return models.VerificationResult{Reason: constants.ReasonMissingFields}, err
	}

	result := v.decide(session, *reading, now)

	key := historyKey(session.SessionID, studentID, v.opts.KeyByStudent)
	v.history.Append(key, func(previous []models.ClaimAttempt) models.ClaimAttempt {
		attempt := models.ClaimAttempt{
			SessionID:   session.SessionID,
			StudentID:   studentID,
			Reading:     *reading,
			EvaluatedAt: now,
		}

		window := previous
		if keep := v.opts.Movement.Window - 1; len(window) > keep {
			window = window[len(window)-keep:]
		}
		candidate := make([]models.ClaimAttempt, 0, len(window)+1)
		candidate = append(candidate, window...)
		candidate = append(candidate, attempt)

		if v.opts.Movement.Suspicious(candidate) {
			result.Suspicious = true
			if result.Reason == constants.ReasonAccepted || result.Reason == constants.ReasonOutOfRange {
				result.Accepted = false
				result.Reason = constants.ReasonSuspiciousMovement
			}
		}
		attempt.Accepted = result.Accepted
		return attempt
	})

	v.count(result.Reason)

	event := v.logger.Debug()
	if result.Suspicious {
		event = v.logger.Warn()
	}
	event = event.
		Str("session_id", session.SessionID).
		Str("student_id", studentID).
		Str("reason", string(result.Reason)).
		Bool("accepted", result.Accepted).
		Bool("suspicious", result.Suspicious)
	if result.DistanceMeters != nil {
		event = event.Float64("distance_m", *result.DistanceMeters)
	}
	event.Msg("Claim evaluated")

	return result, nil
}

// decide runs the integrity, freshness, accuracy and tolerance checks in order.
func (v *LocationVerifier) decide(session *models.SessionDescriptor, reading location.Reading, now time.Time) models.VerificationResult {
	if v.hasher != nil {
		expected := v.hasher.Hash(session.Anchor, session.SessionID)
		if !integrity.Equal(expected, session.IntegrityHash) {
			return models.VerificationResult{Reason: constants.ReasonIntegrityMismatch}
		}
	}

	if reading.Age(now) > v.opts.MaxReadingAge {
		return models.VerificationResult{Reason: constants.ReasonStaleReading}
	}

	if reading.AccuracyMeters > v.opts.MaxAccuracyMeters {
		return models.VerificationResult{Reason: constants.ReasonLowAccuracy}
	}

	distance := location.DistanceMeters(reading, session.Anchor)
	tolerance := ClampTolerance(session.ToleranceMeters)
	if distance <= float64(tolerance) {
		return models.VerificationResult{Accepted: true, Reason: constants.ReasonAccepted, DistanceMeters: &distance}
	}
	return models.VerificationResult{Reason: constants.ReasonOutOfRange, DistanceMeters: &distance}
}

func validateInput(session *models.SessionDescriptor, reading *location.Reading, needHash bool) error {
	var missing []string
	if session == nil {
		missing = append(missing, "session")
	} else {
		if session.SessionID == "" {
			missing = append(missing, "session_id")
		}
		if !session.Anchor.ValidCoordinates() {
			missing = append(missing, "anchor")
		}
		if needHash && session.IntegrityHash == "" {
			missing = append(missing, "integrity_hash")
		}
	}

	if reading == nil {
		missing = append(missing, "reading")
	} else {
		if !reading.HasTimestamp() {
			missing = append(missing, "reading.captured_at")
		}
		if !reading.ValidCoordinates() {
			missing = append(missing, "reading.coordinates")
		}
		if reading.AccuracyMeters < 0 || math.IsNaN(reading.AccuracyMeters) {
			missing = append(missing, "reading.accuracy")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMalformedInput, strings.Join(missing, ", "))
	}
	return nil
}

// History returns the recorded attempts for a session key, oldest first.
func (v *LocationVerifier) History(sessionID string) []models.ClaimAttempt {
	return v.history.Attempts(sessionID)
}

// StudentHistory returns the attempts recorded for a student when history is
// keyed per student, or the session history otherwise.
func (v *LocationVerifier) StudentHistory(sessionID, studentID string) []models.ClaimAttempt {
	return v.history.Attempts(historyKey(sessionID, studentID, v.opts.KeyByStudent))
}

// Forget drops all attempt history of a session.
func (v *LocationVerifier) Forget(sessionID string) {
	v.history.Forget(sessionID)
}

// Options returns the effective options.
func (v *LocationVerifier) Options() Options {
	return v.opts
}

// Stats returns evaluation counters.
func (v *LocationVerifier) Stats() models.VerifierStats {
	v.statsMu.Lock()
	defer v.statsMu.Unlock()

	byReason := make(map[constants.ReasonCode]int64, len(v.byReason))
	for reason, n := range v.byReason {
		byReason[reason] = n
	}
	return models.VerifierStats{
		Evaluations:      v.evaluations,
		ByReason:         byReason,
		TrackedHistories: v.history.Len(),
	}
}

func (v *LocationVerifier) count(reason constants.ReasonCode) {
	v.statsMu.Lock()
	v.evaluations++
	v.byReason[reason]++
	v.statsMu.Unlock()
}
