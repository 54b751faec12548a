package location

import (
	"context"
	"time"
)

// FallbackProvider wraps a primary provider with an optional fixed location
// that is substituted when acquisition fails. With no fallback configured,
// acquisition errors are returned unchanged.
type FallbackProvider struct {
	primary  Provider
	fallback *Reading
	now      func() time.Time
}

// NewFallbackProvider creates a FallbackProvider. primary may be nil, in which
// case every request is served from the fallback (or fails with ErrUnsupported).
func NewFallbackProvider(primary Provider, fallback *Reading, now func() time.Time) *FallbackProvider {
	if now == nil {
		now = time.Now
	}
	return &FallbackProvider{
		primary:  primary,
		fallback: fallback,
		now:      now,
	}
}

// GetLocation returns the primary reading, or the fallback stamped with the
// current time when the primary fails.
func (f *FallbackProvider) GetLocation(ctx context.Context) (Reading, error) {
	var err error
	if f.primary != nil {
		var reading Reading
		reading, err = f.primary.GetLocation(ctx)
		if err == nil {
			return reading, nil
		}
		err = ClassifyError(err)
	} else {
		err = &AcquisitionError{Kind: ErrUnsupported}
	}

	if f.fallback == nil {
		return Reading{}, err
	}

	reading := *f.fallback
	reading.CapturedAt = f.now()
	reading.IsFallback = true
	return reading, nil
}

// Close closes the primary provider.
func (f *FallbackProvider) Close() error {
	if f.primary == nil {
		return nil
	}
	return f.primary.Close()
}
