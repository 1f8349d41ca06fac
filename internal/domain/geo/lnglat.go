package geo

import (
	"fmt"
	"math"
)

// LngLat is a WGS84 position in degrees, ordered as the map renderer reports it.
type LngLat struct {
	Lng float64
	Lat float64
}

// Wrap folds the longitude into [-180, 180]. Renderers report unwrapped
// longitudes when the pointer is over a repeated copy of the world.
func (p LngLat) Wrap() LngLat {
	if p.Lng >= -180 && p.Lng <= 180 {
		return p
	}
	lng := math.Mod(p.Lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return LngLat{Lng: lng - 180, Lat: p.Lat}
}

// Validate checks the position is a finite point on the globe.
func (p LngLat) Validate() error {
	if math.IsNaN(p.Lng) || math.IsNaN(p.Lat) || math.IsInf(p.Lng, 0) || math.IsInf(p.Lat, 0) {
		return fmt.Errorf("coordinates must be finite")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %f", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %f", p.Lng)
	}
	return nil
}
