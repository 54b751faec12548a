package services

import (
	"time"

	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/pkg/location"
)

// ClaimEvaluator decides attendance claims.
type ClaimEvaluator interface {
	EvaluateClaim(session *models.SessionDescriptor, studentID string, reading *location.Reading, now time.Time) (models.VerificationResult, error)
}

// VerifierStatsProvider exposes evaluation counters.
type VerifierStatsProvider interface {
	Stats() models.VerifierStats
}

// HistoryForgetter drops attempt history of closed sessions.
type HistoryForgetter interface {
	Forget(sessionID string)
}
