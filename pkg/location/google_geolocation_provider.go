package location

import (
	"context"
	"time"

	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int
	now        func() time.Time
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		now:        time.Now,
	}, nil
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
// WiFi and cell tower scans are best effort; the API falls back to the IP.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	wifiAPs, _ := getWiFiAccessPoints(ctx)
	cellTowers, _ := getCellTowers(ctx, g.modemIndex)

	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
		CellTowers:       cellTowers,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Reading{}, ClassifyError(err)
	}

	return Reading{
		Latitude:       resp.Location.Lat,
		Longitude:      resp.Location.Lng,
		AccuracyMeters: resp.Accuracy,
		CapturedAt:     g.now(),
	}, nil
}

// Close releases nothing; the maps client holds no persistent connection.
func (g *GoogleGeolocationProvider) Close() error {
	return nil
}
