package features

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// Loader fetches the raw feature collection.
type Loader interface {
	Load(ctx context.Context) (*geojson.FeatureCollection, error)
}
