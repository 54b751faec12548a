package models

import (
	"time"

	"github.com/benmeehan/geo-attendance/pkg/location"
)

// AttendanceRecord is an accepted attendance claim.
type AttendanceRecord struct {
	ID        string           `json:"id"`
	StudentID string           `json:"student_id"`
	SessionID string           `json:"session_id"`
	Course    string           `json:"course,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Location  location.Reading `json:"location"`
	Validated bool             `json:"validated"`
}
