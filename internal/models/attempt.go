package models

import (
	"time"

	"github.com/benmeehan/geo-attendance/pkg/location"
)

// ClaimAttempt is one verification attempt recorded in a session's history.
type ClaimAttempt struct {
	SessionID   string           `json:"session_id"`
	StudentID   string           `json:"student_id,omitempty"`
	Reading     location.Reading `json:"reading"`
	Accepted    bool             `json:"accepted"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}
