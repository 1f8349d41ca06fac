// Package page owns the interactive state of one map page: hover, active feature and query session.
package page

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain"
	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
	"github.com/kailas-cloud/zonemap/internal/domain/highlight"
	"github.com/kailas-cloud/zonemap/internal/domain/hover"
	"github.com/kailas-cloud/zonemap/internal/usecase/query"
)

// DefaultLoadingMessage is shown while a query runs.
const DefaultLoadingMessage = query.DefaultLoadingMessage

// Config holds per-page settings.
type Config struct {
	Keys           hover.Keys
	Query          query.Config
	LoadingMessage string
}

// DefaultConfig returns the attribute keys, query settings and loading text of the zoning data set.
func DefaultConfig() Config {
	return Config{
		Keys:           hover.DefaultKeys(),
		Query:          query.DefaultConfig(),
		LoadingMessage: DefaultLoadingMessage,
	}
}

// Pointer is one pointer-move event.
// FeatureIDs, when set, are the renderer's hit-test result, topmost first.
// Otherwise At is hit-tested server side.
type Pointer struct {
	X, Y       float64
	At         *geo.LngLat
	FeatureIDs []feature.ID
}

// Snapshot is a value copy of the page state.
type Snapshot struct {
	Hover     *hover.State
	ActiveID  feature.ID
	Highlight highlight.Filter
	Query     query.State
	// Message is the loading text while loading, the result once loaded.
	Message string
}

// Controller holds hover and query state for one page.
// Hover updates never wait on the remote query.
type Controller struct {
	features FeatureSource
	session  *query.Session
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	hover    *hover.State
	active   feature.ID
	lastSeen time.Time
}

// NewController creates a page with no hover and an idle session.
func NewController(features FeatureSource, client query.Client, cfg Config, logger *zap.Logger) *Controller {
	if cfg.Keys == (hover.Keys{}) {
		cfg.Keys = hover.DefaultKeys()
	}
	if cfg.LoadingMessage == "" {
		cfg.LoadingMessage = DefaultLoadingMessage
	}
	c := &Controller{
		features: features,
		session:  query.NewSession(client, cfg.Query, logger),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		active:   feature.NoID,
	}
	c.lastSeen = c.now()
	return c
}

// PointerMove resolves the features under the pointer into hover state and the active id.
func (c *Controller) PointerMove(p Pointer) error {
	var under []feature.Feature
	switch {
	case p.FeatureIDs != nil:
		under = c.features.Lookup(p.FeatureIDs)
	case p.At != nil:
		at := p.At.Wrap()
		if err := at.Validate(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidCoordinates, err)
		}
		under = c.features.Hit(at)
	}

	state, active := hover.Resolve(under, p.X, p.Y, c.cfg.Keys)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hover = state
	c.active = active
	c.lastSeen = c.now()
	return nil
}

// PointerLeave clears hover state and the active id.
func (c *Controller) PointerLeave() {
	state, active := hover.Leave()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hover = state
	c.active = active
	c.lastSeen = c.now()
}

// Click forwards a map click to the query session with the current active feature.
// It reports whether a query started.
func (c *Controller) Click(at geo.LngLat) (bool, error) {
	at = at.Wrap()
	if err := at.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrInvalidCoordinates, err)
	}

	c.mu.Lock()
	activeID := c.active
	c.lastSeen = c.now()
	c.mu.Unlock()

	var active *feature.Feature
	if f, ok := c.features.Collection().Get(activeID); ok {
		active = &f
	}
	return c.session.Click(at, active), nil
}

// Snapshot returns the current page state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	st := Snapshot{
		Hover:     c.hover.Clone(),
		ActiveID:  c.active,
		Highlight: highlight.Project(c.active),
	}
	c.mu.Unlock()

	st.Query = c.session.Snapshot()
	st.Message = c.message(st.Query)
	return st
}

func (c *Controller) message(q query.State) string {
	switch q.Status {
	case query.StatusLoading:
		return c.cfg.LoadingMessage
	case query.StatusLoaded:
		if q.Result != nil {
			return *q.Result
		}
	}
	return ""
}

// WaitQuery blocks until the current query settles or ctx ends, then returns the page state.
func (c *Controller) WaitQuery(ctx context.Context) (Snapshot, error) {
	_, err := c.session.Wait(ctx)
	return c.Snapshot(), err
}

// LastSeen returns the time of the last pointer or click event.
func (c *Controller) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastSeen = c.now()
	c.mu.Unlock()
}

// Close tears the page down and cancels the in-flight query.
func (c *Controller) Close() {
	c.session.Close()
}
