package verifier

import (
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/pkg/location"
)

// MovementPolicy flags physically implausible displacement between
// consecutive attempts: more than MaxDistanceMeters within less than
// MinInterval (1 km in 30 s is roughly 120 km/h).
type MovementPolicy struct {
	Window            int
	MaxDistanceMeters float64
	MinInterval       time.Duration
}

// DefaultMovementPolicy returns the 3-attempt, 1000 m, 30 s policy.
func DefaultMovementPolicy() MovementPolicy {
	return MovementPolicy{
		Window:            constants.DefaultMovementWindow,
		MaxDistanceMeters: constants.DefaultMovementDistanceMeters,
		MinInterval:       constants.DefaultMovementInterval,
	}
}

func (p MovementPolicy) withDefaults() MovementPolicy {
	d := DefaultMovementPolicy()
	if p.Window < 2 {
		p.Window = d.Window
	}
	if p.MaxDistanceMeters <= 0 {
		p.MaxDistanceMeters = d.MaxDistanceMeters
	}
	if p.MinInterval <= 0 {
		p.MinInterval = d.MinInterval
	}
	return p
}

// Suspicious inspects the last Window attempts in chronological order. With
// fewer than Window attempts nothing is flagged.
func (p MovementPolicy) Suspicious(attempts []models.ClaimAttempt) bool {
	if len(attempts) < p.Window {
		return false
	}

	recent := attempts[len(attempts)-p.Window:]
	for i := 1; i < len(recent); i++ {
		prev := recent[i-1].Reading
		curr := recent[i].Reading

		distance := location.DistanceMeters(prev, curr)
		elapsed := curr.CapturedAt.Sub(prev.CapturedAt)
		if distance > p.MaxDistanceMeters && elapsed < p.MinInterval {
			return true
		}
	}
	return false
}
