// Package routing wraps the Google Maps API as the core's routing provider
// and geocoder collaborators. The pricing resolver consumes these through its
// own narrow interfaces; this package only adapts the external API.
package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

const metersPerMile = 1609.344

// Google provides driving distances (Distance Matrix API) and address
// geocoding (Geocoding API) using a single maps client.
type Google struct {
	client *maps.Client
}

// NewGoogle creates a Google routing/geocoding client with the given API key.
func NewGoogle(apiKey string) (*Google, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("routing.NewGoogle: %w", err)
	}
	return &Google{client: client}, nil
}

// DrivingMiles returns the driving distance in miles between two free-text
// addresses, biased to GB results.
func (g *Google) DrivingMiles(ctx context.Context, pickup, dropoff string) (float64, error) {
	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{pickup},
		Destinations: []string{dropoff},
		Mode:         maps.TravelModeDriving,
		Language:     "en-GB",
	})
	if err != nil {
		return 0, fmt.Errorf("routing.Google.DrivingMiles: %w", err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, fmt.Errorf("routing.Google.DrivingMiles: empty response")
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("routing.Google.DrivingMiles: element status %s", el.Status)
	}

	return float64(el.Distance.Meters) / metersPerMile, nil
}

// Geocode resolves a free-text address to a coordinate pair, biased to GB.
// Fails when the address has no match.
func (g *Google) Geocode(ctx context.Context, address string) (float64, float64, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  "gb",
	})
	if err != nil {
		return 0, 0, fmt.Errorf("routing.Google.Geocode: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("routing.Google.Geocode: no match for %q", address)
	}

	loc := results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}
