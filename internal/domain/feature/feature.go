package feature

import (
	"maps"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ID is the positional identity of a feature within one loaded collection.
type ID int

// NoID means "no active feature". No real feature carries it: ids start at 0.
const NoID ID = -1

// Valid reports whether id can belong to a real feature.
func (id ID) Valid() bool { return id >= 0 }

// Feature is one immutable zoning shape with its attribute map.
type Feature struct {
	id         ID
	geometry   orb.Geometry
	properties map[string]any
}

// Reconstruct builds a Feature from stored parts (tests, lookups).
func Reconstruct(id ID, geometry orb.Geometry, properties map[string]any) Feature {
	return Feature{id: id, geometry: geometry, properties: maps.Clone(properties)}
}

// ID returns the feature identity.
func (f Feature) ID() ID { return f.id }

// Geometry returns the feature geometry.
func (f Feature) Geometry() orb.Geometry { return f.geometry }

// Property returns an attribute value. Missing keys and JSON nulls both report ok=false.
func (f Feature) Property(key string) (any, bool) {
	v, ok := f.properties[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Properties returns a copy of the attribute map.
func (f Feature) Properties() map[string]any { return maps.Clone(f.properties) }

// Text returns a scalar attribute rendered as a string, or nil when absent or not scalar.
func (f Feature) Text(key string) *string {
	v, ok := f.Property(key)
	if !ok {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	return &s
}

// Collection is the loaded, read-only feature set of one page lifetime.
type Collection struct {
	features []Feature
	metadata map[string]any
	bound    orb.Bound
}

// NewCollection assigns 0-based ids in traversal order.
// The same input always yields the same ids.
func NewCollection(fc *geojson.FeatureCollection) *Collection {
	c := &Collection{
		features: make([]Feature, 0, len(fc.Features)),
		metadata: maps.Clone(fc.ExtraMembers),
	}
	first := true
	for i, f := range fc.Features {
		c.features = append(c.features, Feature{
			id:         ID(i),
			geometry:   f.Geometry,
			properties: maps.Clone(f.Properties),
		})
		if f.Geometry == nil {
			continue
		}
		if first {
			c.bound = f.Geometry.Bound()
			first = false
			continue
		}
		c.bound = c.bound.Union(f.Geometry.Bound())
	}
	return c
}

// Len returns the number of features.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.features)
}

// Get returns the feature with the given id.
func (c *Collection) Get(id ID) (Feature, bool) {
	if c == nil || !id.Valid() || int(id) >= len(c.features) {
		return Feature{}, false
	}
	return c.features[id], true
}

// All returns the features in id order. The slice is a copy.
func (c *Collection) All() []Feature {
	if c == nil {
		return nil
	}
	out := make([]Feature, len(c.features))
	copy(out, c.features)
	return out
}

// Metadata returns the collection-level foreign members.
func (c *Collection) Metadata() map[string]any {
	if c == nil {
		return nil
	}
	return maps.Clone(c.metadata)
}

// Bound returns the bounding box of all geometries.
func (c *Collection) Bound() orb.Bound {
	if c == nil {
		return orb.Bound{}
	}
	return c.bound
}

// GeoJSON renders the collection with ids set, the shape the map renderer consumes.
func (c *Collection) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if c == nil {
		return fc
	}
	for _, f := range c.features {
		gf := geojson.NewFeature(f.geometry)
		gf.ID = int(f.id)
		gf.Properties = maps.Clone(f.properties)
		if gf.Properties == nil {
			gf.Properties = geojson.Properties{}
		}
		fc.Append(gf)
	}
	if len(c.metadata) > 0 {
		fc.ExtraMembers = maps.Clone(c.metadata)
	}
	return fc
}
