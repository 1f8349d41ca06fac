package features

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"github.com/kailas-cloud/zonemap/internal/domain/feature"
)

// index is a bounding-box R-tree over feature geometries.
type index struct {
	tree rtree.RTreeG[feature.ID]
}

func newIndex(c *feature.Collection) *index {
	idx := &index{}
	for _, f := range c.All() {
		g := f.Geometry()
		if g == nil || !polygonal(g) {
			continue
		}
		b := g.Bound()
		idx.tree.Insert(
			[2]float64{b.Min.Lon(), b.Min.Lat()},
			[2]float64{b.Max.Lon(), b.Max.Lat()},
			f.ID(),
		)
	}
	return idx
}

// candidates returns ids whose bounding box contains p.
func (idx *index) candidates(p orb.Point) []feature.ID {
	var out []feature.ID
	pt := [2]float64{p.Lon(), p.Lat()}
	idx.tree.Search(pt, pt, func(_, _ [2]float64, id feature.ID) bool {
		out = append(out, id)
		return true
	})
	return out
}

func (idx *index) size() int { return idx.tree.Len() }

// polygonal reports whether g has an area a pointer can fall into.
func polygonal(g orb.Geometry) bool {
	switch t := g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		return true
	case orb.Collection:
		for _, sub := range t {
			if polygonal(sub) {
				return true
			}
		}
	}
	return false
}

// contains is an exact point-in-geometry test.
func contains(g orb.Geometry, p orb.Point) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, p)
	case orb.Ring:
		return planar.RingContains(t, p)
	case orb.Bound:
		return t.Contains(p)
	case orb.Collection:
		for _, sub := range t {
			if contains(sub, p) {
				return true
			}
		}
	}
	return false
}
