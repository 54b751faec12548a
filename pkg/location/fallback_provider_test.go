package location_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/geo-attendance/internal/mocks"
	"github.com/benmeehan/geo-attendance/pkg/location"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestFallbackProvider_PrimarySucceeds(t *testing.T) {
	primary := new(mocks.MockProvider)
	want := location.Reading{Latitude: 1, Longitude: 2, AccuracyMeters: 5, CapturedAt: fixedNow.Add(-time.Second)}
	primary.On("GetLocation", mock.Anything).Return(want, nil)

	provider := location.NewFallbackProvider(primary, &location.Reading{Latitude: 40.7128, Longitude: -74.006}, clock)
	got, err := provider.GetLocation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.False(t, got.IsFallback)
}

func TestFallbackProvider_UsesFallbackOnFailure(t *testing.T) {
	primary := new(mocks.MockProvider)
	primary.On("GetLocation", mock.Anything).Return(location.Reading{}, context.DeadlineExceeded)

	fallback := &location.Reading{Latitude: 40.7128, Longitude: -74.006, AccuracyMeters: 10}
	provider := location.NewFallbackProvider(primary, fallback, clock)
	got, err := provider.GetLocation(context.Background())

	require.NoError(t, err)
	assert.True(t, got.IsFallback)
	assert.Equal(t, fixedNow, got.CapturedAt)
	assert.Equal(t, 40.7128, got.Latitude)
	assert.True(t, fallback.CapturedAt.IsZero(), "configured fallback must not be mutated")
}

func TestFallbackProvider_PropagatesClassifiedError(t *testing.T) {
	primary := new(mocks.MockProvider)
	primary.On("GetLocation", mock.Anything).Return(location.Reading{}, context.DeadlineExceeded)

	provider := location.NewFallbackProvider(primary, nil, clock)
	_, err := provider.GetLocation(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, location.ErrTimeout)
	var acqErr *location.AcquisitionError
	assert.True(t, errors.As(err, &acqErr))
}

func TestFallbackProvider_NoPrimary(t *testing.T) {
	provider := location.NewFallbackProvider(nil, nil, clock)
	_, err := provider.GetLocation(context.Background())
	assert.ErrorIs(t, err, location.ErrUnsupported)
	assert.NoError(t, provider.Close())
}

func TestFallbackProvider_ClosesPrimary(t *testing.T) {
	primary := new(mocks.MockProvider)
	primary.On("Close").Return(nil).Once()

	provider := location.NewFallbackProvider(primary, nil, clock)
	assert.NoError(t, provider.Close())
	primary.AssertExpectations(t)
}
