package models

import (
	"fmt"
	"math"

	"github.com/benmeehan/geo-attendance/internal/constants"
)

// VerificationResult is the outcome of one evaluation.
type VerificationResult struct {
	Accepted       bool                 `json:"accepted"`
	Reason         constants.ReasonCode `json:"reason"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"` // nil when rejected before distance computation
	Suspicious     bool                 `json:"suspicious,omitempty"`
}

// Message renders a user-facing explanation of the result.
func (r VerificationResult) Message(toleranceMeters int) string {
	switch r.Reason {
	case constants.ReasonAccepted:
		return "Location verified successfully."
	case constants.ReasonOutOfRange:
		if r.DistanceMeters != nil {
			return fmt.Sprintf("You are %dm away; required within %dm.", int(math.Round(*r.DistanceMeters)), toleranceMeters)
		}
		return fmt.Sprintf("You are outside the required %dm.", toleranceMeters)
	case constants.ReasonStaleReading:
		return "Location data is too old. Please get a fresh location."
	case constants.ReasonLowAccuracy:
		return "Location accuracy is too low. Please move to an area with better GPS signal."
	case constants.ReasonSessionExpired:
		return "This session has expired."
	case constants.ReasonMissingFields:
		return "The request is missing required information."
	case constants.ReasonIntegrityMismatch:
		return "The session code has been altered. Scan the code again."
	case constants.ReasonSuspiciousMovement:
		return "Impossible movement detected. Location data appears to be manipulated."
	default:
		return string(r.Reason)
	}
}

// VerifierStats counts evaluations per reason code.
type VerifierStats struct {
	Evaluations      int64                          `json:"evaluations"`
	ByReason         map[constants.ReasonCode]int64 `json:"by_reason"`
	TrackedHistories int                            `json:"tracked_histories"`
}
