package location

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DeviceSensorProvider is responsible for retrieving location data from a GPS device connected via serial port.
type DeviceSensorProvider struct {
	port        string // Serial port to which the GPS device is connected
	baudRate    int    // Baud rate for the serial communication
	readTimeout time.Duration
	uere        float64
	now         func() time.Time

	// openPort is swapped in tests to feed canned NMEA output.
	openPort func() (io.ReadCloser, error)
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int, readTimeout time.Duration) *DeviceSensorProvider {
	d := &DeviceSensorProvider{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
		uere:        DefaultUEREMeters,
		now:         time.Now,
	}
	d.openPort = func() (io.ReadCloser, error) {
		return serial.OpenPort(&serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: d.readTimeout})
	}
	return d
}

// GetLocation reads NMEA sentences from the device until a GGA fix is decoded.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Reading, error) {
	s, err := d.openPort()
	if err != nil {
		return Reading{}, ClassifyError(err)
	}
	defer s.Close() // Ensure the port is closed when done

	decoder := NewNMEADecoder(d.uere)
	scanner := bufio.NewScanner(s)
	var lastErr error
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Reading{}, ClassifyError(err)
		}

		reading, ok, err := decoder.Feed(scanner.Text(), d.now())
		if err != nil {
			// Corrupt sentences are common right after the port opens.
			lastErr = err
			continue
		}
		if ok {
			return reading, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Reading{}, ClassifyError(err)
	}
	if lastErr != nil {
		return Reading{}, &AcquisitionError{Kind: ErrPositionUnavailable, Err: lastErr}
	}
	return Reading{}, &AcquisitionError{Kind: ErrPositionUnavailable}
}

// Close is a no-op: the port is opened per request.
func (d *DeviceSensorProvider) Close() error {
	return nil
}
