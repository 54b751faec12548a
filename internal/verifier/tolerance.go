package verifier

import (
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/models"
)

// ClampTolerance bounds a tolerance to [10, 500] meters. Zero or negative
// values select the default of 50.
func ClampTolerance(tolerance int) int {
	if tolerance <= 0 {
		return constants.DefaultToleranceMeters
	}
	return max(constants.MinToleranceMeters, min(constants.MaxToleranceMeters, tolerance))
}

// SessionExpired reports whether session is older than maxAge at now. The
// verifier itself never checks session age; callers map a true result to
// SESSION_EXPIRED before evaluating.
func SessionExpired(session *models.SessionDescriptor, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = constants.DefaultMaxSessionAge
	}
	return now.Sub(session.CreatedAt) > maxAge
}
