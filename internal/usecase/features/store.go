// Package features owns the loaded feature collection and resolves pointer positions against it.
package features

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain"
	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
	"github.com/kailas-cloud/zonemap/internal/metrics"
)

type published struct {
	collection *feature.Collection
	index      *index
}

// Store loads the collection once and publishes it read-only.
// Before a successful load every read sees an empty collection.
type Store struct {
	loader Loader
	logger *zap.Logger

	once  sync.Once
	err   error
	state atomic.Pointer[published]
}

// NewStore creates a feature store.
func NewStore(loader Loader, logger *zap.Logger) *Store {
	return &Store{loader: loader, logger: logger}
}

// Load fetches, identifies and publishes the collection.
// Only the first call does work; later calls return its outcome.
// A failure leaves the collection unset and is not fatal to callers.
func (s *Store) Load(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.load(ctx)
	})
	return s.err
}

func (s *Store) load(ctx context.Context) error {
	fc, err := s.loader.Load(ctx)
	if err != nil {
		metrics.GeodataLoadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Failed to load feature collection", zap.Error(err))
		return fmt.Errorf("load features: %w", err)
	}

	c := feature.NewCollection(fc)
	idx := newIndex(c)
	s.state.Store(&published{collection: c, index: idx})

	metrics.GeodataLoadsTotal.WithLabelValues("ok").Inc()
	metrics.GeodataFeatures.Set(float64(c.Len()))
	s.logger.Info("Feature collection loaded",
		zap.Int("features", c.Len()),
		zap.Int("indexed", idx.size()),
	)
	return nil
}

// Loaded reports whether a collection is published.
func (s *Store) Loaded() bool {
	return s.state.Load() != nil
}

// Collection returns the published collection, or nil before a successful load.
func (s *Store) Collection() *feature.Collection {
	p := s.state.Load()
	if p == nil {
		return nil
	}
	return p.collection
}

// Get returns one feature by id.
func (s *Store) Get(id feature.ID) (feature.Feature, error) {
	c := s.Collection()
	if c == nil {
		return feature.Feature{}, domain.ErrCollectionNotLoaded
	}
	f, ok := c.Get(id)
	if !ok {
		return feature.Feature{}, fmt.Errorf("feature %d: %w", id, domain.ErrNotFound)
	}
	return f, nil
}

// Hit returns the features under a geographic position, topmost first.
// Later features render on top, so hits are ordered by descending id.
func (s *Store) Hit(at geo.LngLat) []feature.Feature {
	p := s.state.Load()
	if p == nil {
		return nil
	}

	pt := orb.Point{at.Lng, at.Lat}
	ids := p.index.candidates(pt)
	slices.SortFunc(ids, func(a, b feature.ID) int { return int(b) - int(a) })

	out := make([]feature.Feature, 0, len(ids))
	for _, id := range ids {
		f, ok := p.collection.Get(id)
		if !ok || !contains(f.Geometry(), pt) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Lookup resolves renderer-reported ids, keeping their order and skipping unknown ones.
func (s *Store) Lookup(ids []feature.ID) []feature.Feature {
	c := s.Collection()
	if c == nil || len(ids) == 0 {
		return nil
	}
	out := make([]feature.Feature, 0, len(ids))
	for _, id := range ids {
		if f, ok := c.Get(id); ok {
			out = append(out, f)
		}
	}
	return out
}
