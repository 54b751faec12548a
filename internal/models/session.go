package models

import (
	"time"

	"github.com/benmeehan/geo-attendance/pkg/location"
)

// SessionDescriptor is a lecturer-declared class session.
type SessionDescriptor struct {
	SessionID       string           `json:"session_id"`
	Course          string           `json:"course,omitempty"`
	LecturerID      string           `json:"lecturer_id,omitempty"`
	Anchor          location.Reading `json:"anchor"`
	ToleranceMeters int              `json:"tolerance_meters"`
	IntegrityHash   string           `json:"integrity_hash"`
	CreatedAt       time.Time        `json:"created_at"`
}
