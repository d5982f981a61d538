// Package geofence decides whether a device position lies inside the
// authorized radius of the kiosk's reference site.
package geofence

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

// Human-readable gate messages shown next to the camera preview.
const (
	MessageVerified      = "Location verified. You can now check in/out."
	MessageUnavailable   = "Unable to retrieve your location. Please enable location services."
	MessageNotConfigured = "Location provider is not configured."
	MessageChecking      = "Checking your location..."
)

// Coordinate is a WGS 84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Site is a circular authorized area.
type Site struct {
	Name         string     `json:"name"`
	Center       Coordinate `json:"center"`
	RadiusMeters float64    `json:"radius_meters"`
}

// Result is the outcome of one gate evaluation.
type Result struct {
	Verified       bool    `json:"verified"`
	DistanceMeters float64 `json:"distance_meters"`
	Reason         string  `json:"reason"`
}

// Locator yields the current device position.
type Locator interface {
	Locate(ctx context.Context) (Coordinate, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Coordinate, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context) (Coordinate, error) {
	return f(ctx)
}

// StaticLocator reports a fixed position, for kiosks mounted at a known spot.
type StaticLocator struct {
	Position Coordinate
}

// Locate returns the configured position.
func (s StaticLocator) Locate(ctx context.Context) (Coordinate, error) {
	return s.Position, nil
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(a, b Coordinate) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return constants.EarthRadiusMeters * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Verify checks current against site. The boundary itself counts as inside.
func Verify(current Coordinate, site Site) Result {
	distance := Haversine(current, site.Center)
	if distance <= site.RadiusMeters {
		return Result{Verified: true, DistanceMeters: distance, Reason: MessageVerified}
	}
	return Result{
		Verified:       false,
		DistanceMeters: distance,
		Reason:         fmt.Sprintf("You are too far from the office. Distance: %.0f meters.", distance),
	}
}

// Check asks locator for the position and verifies it. Failures of the
// locator fail closed and are reported through Result.Reason, never as an error.
func Check(ctx context.Context, locator Locator, site Site) Result {
	if locator == nil {
		return Result{Reason: MessageNotConfigured}
	}

	pos, err := locator.Locate(ctx)
	if err != nil {
		slog.Warn("location unavailable", "error", err)
		return Result{Reason: MessageUnavailable}
	}

	return Verify(pos, site)
}
