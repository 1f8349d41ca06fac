package page

import (
	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
)

// FeatureSource resolves pointer positions and ids against the loaded collection.
type FeatureSource interface {
	Collection() *feature.Collection
	Hit(at geo.LngLat) []feature.Feature
	Lookup(ids []feature.ID) []feature.Feature
}
