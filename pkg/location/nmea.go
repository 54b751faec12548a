package location

import (
	"errors"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
)

// DefaultUEREMeters is the user equivalent range error used to turn HDOP into
// an accuracy radius.
const DefaultUEREMeters = 5.0

const knotsToMetersPerSec = 0.514444

// ErrNoFix is returned for GGA sentences that report an invalid fix.
var ErrNoFix = errors.New("gps reports no fix")

// NMEADecoder turns a stream of NMEA sentences into readings. GGA sentences
// produce a reading; RMC sentences contribute speed and course to the next one.
type NMEADecoder struct {
	uere   float64
	speed  *float64
	course *float64
}

// NewNMEADecoder returns a decoder using the given UERE (meters), or the
// default when uere <= 0.
func NewNMEADecoder(uere float64) *NMEADecoder {
	if uere <= 0 {
		uere = DefaultUEREMeters
	}
	return &NMEADecoder{uere: uere}
}

// Feed parses one sentence. ok is true when line produced a complete reading.
func (d *NMEADecoder) Feed(line string, now time.Time) (reading Reading, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Reading{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Reading{}, false, err
	}

	switch s := sentence.(type) {
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return Reading{}, false, nil
		}
		speed := s.Speed * knotsToMetersPerSec
		course := s.Course
		d.speed = &speed
		d.course = &course
		return Reading{}, false, nil
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return Reading{}, false, ErrNoFix
		}
		altitude := s.Altitude
		reading = Reading{
			Latitude:          s.Latitude,
			Longitude:         s.Longitude,
			AccuracyMeters:    s.HDOP * d.uere,
			CapturedAt:        now,
			Altitude:          &altitude,
			SpeedMetersPerSec: d.speed,
			HeadingDegrees:    d.course,
		}
		d.speed, d.course = nil, nil
		return reading, true, nil
	default:
		return Reading{}, false, nil
	}
}
