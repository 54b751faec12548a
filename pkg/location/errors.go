package location

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Acquisition failure kinds. These belong to the caller side and are never
// reported as verification outcomes.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("location position unavailable")
	ErrTimeout             = errors.New("location request timed out")
	ErrUnsupported         = errors.New("location acquisition not supported")
)

// AcquisitionError wraps the underlying cause of a failed location request
// together with its kind.
type AcquisitionError struct {
	Kind error
	Err  error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AcquisitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Guidance returns a user-facing hint for the failure kind.
func (e *AcquisitionError) Guidance() string {
	switch e.Kind {
	case ErrPermissionDenied:
		return "Location access denied. Allow location access for this device and try again."
	case ErrPositionUnavailable:
		return "Location information is unavailable. Make sure GPS is enabled and you have a clear view of the sky."
	case ErrTimeout:
		return "The location request took too long. Try again in a few seconds."
	case ErrUnsupported:
		return "This device cannot provide a location."
	default:
		return "Please check your device settings and try again."
	}
}

// ClassifyError maps a raw provider error onto an AcquisitionError.
// Errors that are already classified are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return err
	}

	switch {
	case os.IsPermission(err):
		return &AcquisitionError{Kind: ErrPermissionDenied, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &AcquisitionError{Kind: ErrTimeout, Err: err}
	case os.IsNotExist(err):
		return &AcquisitionError{Kind: ErrUnsupported, Err: err}
	default:
		return &AcquisitionError{Kind: ErrPositionUnavailable, Err: err}
	}
}
