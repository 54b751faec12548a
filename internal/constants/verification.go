package constants

import "time"

// ReasonCode is the outcome taxonomy of a verification attempt.
type ReasonCode string

const (
	ReasonAccepted           ReasonCode = "ACCEPTED"
	ReasonOutOfRange         ReasonCode = "OUT_OF_RANGE"
	ReasonStaleReading       ReasonCode = "STALE_READING"
	ReasonLowAccuracy        ReasonCode = "LOW_ACCURACY"
	ReasonSessionExpired     ReasonCode = "SESSION_EXPIRED"
	ReasonMissingFields      ReasonCode = "MISSING_FIELDS"
	ReasonIntegrityMismatch  ReasonCode = "INTEGRITY_MISMATCH"
	ReasonSuspiciousMovement ReasonCode = "SUSPICIOUS_MOVEMENT"
)

// AllReasonCodes lists every reason code in a stable order.
var AllReasonCodes = []ReasonCode{
	ReasonAccepted,
	ReasonOutOfRange,
	ReasonStaleReading,
	ReasonLowAccuracy,
	ReasonSessionExpired,
	ReasonMissingFields,
	ReasonIntegrityMismatch,
	ReasonSuspiciousMovement,
}

// Verification defaults
const (
	DefaultToleranceMeters   = 50
	MinToleranceMeters       = 10
	MaxToleranceMeters       = 500
	DefaultMaxReadingAge     = 5 * time.Minute
	DefaultMaxAccuracyMeters = 100.0
	DefaultMaxSessionAge     = 2 * time.Hour
)

// Attempt history and movement heuristic defaults
const (
	DefaultHistoryCapacity        = 10
	DefaultMovementWindow         = 3
	DefaultMovementDistanceMeters = 1000.0
	DefaultMovementInterval       = 30 * time.Second
)
