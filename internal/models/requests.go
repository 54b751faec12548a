package models

import (
	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/pkg/location"
)

// CreateSessionRequest is published by a lecturer client to open a session.
// When Anchor is nil the node acquires its own location.
type CreateSessionRequest struct {
	RequestID       string            `json:"request_id"`
	LecturerID      string            `json:"lecturer_id"`
	Course          string            `json:"course"`
	ToleranceMeters int               `json:"tolerance_meters,omitempty"`
	Anchor          *location.Reading `json:"anchor,omitempty"`
}

// CreateSessionResponse answers a CreateSessionRequest.
type CreateSessionResponse struct {
	RequestID string             `json:"request_id"`
	Session   *SessionDescriptor `json:"session,omitempty"`
	QRPayload string             `json:"qr_payload,omitempty"`
	QRCodeURL string             `json:"qr_code_url,omitempty"`
	Error     string             `json:"error,omitempty"`
	Guidance  string             `json:"guidance,omitempty"`
}

// ClaimRequest is published by a student client after scanning a session code.
type ClaimRequest struct {
	RequestID string            `json:"request_id"`
	StudentID string            `json:"student_id"`
	QRPayload string            `json:"qr_payload"`
	Reading   *location.Reading `json:"reading"`
}

// ClaimResponse answers a ClaimRequest.
type ClaimResponse struct {
	RequestID      string               `json:"request_id"`
	SessionID      string               `json:"session_id,omitempty"`
	Status         string               `json:"status"`
	Accepted       bool                 `json:"accepted"`
	Reason         constants.ReasonCode `json:"reason,omitempty"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"`
	Message        string               `json:"message,omitempty"`
	RecordID       string               `json:"record_id,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// ListAttendanceRequest asks for recorded attendance. An empty SessionID
// lists every record.
type ListAttendanceRequest struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id,omitempty"`
}

// ListAttendanceResponse answers a ListAttendanceRequest.
type ListAttendanceResponse struct {
	RequestID string             `json:"request_id"`
	Records   []AttendanceRecord `json:"records"`
	Error     string             `json:"error,omitempty"`
}

// ListSessionsRequest asks for the open sessions.
type ListSessionsRequest struct {
	RequestID string `json:"request_id"`
}

// ListSessionsResponse answers a ListSessionsRequest.
type ListSessionsResponse struct {
	RequestID string              `json:"request_id"`
	Sessions  []SessionDescriptor `json:"sessions"`
}
