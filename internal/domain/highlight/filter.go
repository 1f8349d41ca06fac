package highlight

import (
	"encoding/json"

	"github.com/kailas-cloud/zonemap/internal/domain/feature"
)

// Filter is an equality predicate over feature identity.
// It matches exactly the feature whose id equals the active id, and nothing for feature.NoID.
type Filter struct {
	target feature.ID
}

// Project builds the highlight filter for the active feature.
// Any invalid id collapses to feature.NoID so the filter never matches everything.
func Project(active feature.ID) Filter {
	if !active.Valid() {
		return Filter{target: feature.NoID}
	}
	return Filter{target: active}
}

// Target returns the id the filter compares against.
func (f Filter) Target() feature.ID { return f.target }

// Matches evaluates the predicate the same way the renderer does.
func (f Filter) Matches(ft feature.Feature) bool {
	return f.target.Valid() && ft.ID() == f.target
}

// Expression returns the Mapbox GL filter expression ["==", ["id"], target].
func (f Filter) Expression() []any {
	return []any{"==", []any{"id"}, int(f.target)}
}

// MarshalJSON encodes the filter as its renderer expression.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Expression())
}
