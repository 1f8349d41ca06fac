package zonemap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
	"github.com/kailas-cloud/zonemap/internal/usecase/page"
)

// LngLat is a WGS84 position in degrees.
type LngLat struct {
	Lng float64
	Lat float64
}

// FeatureInfo is one tooltip line. Nil fields are absent attributes.
type FeatureInfo struct {
	Name        *string
	Description *string
	Layer       *string
	Number      *string
}

// Hover is the tooltip state at a screen position.
type Hover struct {
	Infos []FeatureInfo
	X, Y  float64
}

// QueryState is the click-to-explain session state.
type QueryState struct {
	Status  string // "idle", "loading", "loaded"
	Marker  *LngLat
	Result  *string
	Message string // loading text while loading, the result once loaded
}

// Snapshot is a copy of the page state.
type Snapshot struct {
	Hover           *Hover
	ActiveFeatureID int // -1 when no feature is active
	HighlightFilter []any
	Query           QueryState
}

// Page is one interactive map page.
type Page struct {
	ctrl      *page.Controller
	obs       *observer
	closeOnce sync.Once
}

// PointerMoveAt hit-tests a geographic position and updates hover and highlight.
func (p *Page) PointerMoveAt(x, y, lng, lat float64) (err error) {
	start := time.Now()
	defer func() { p.obs.observe("page.pointer_move", start, err, "lng", lng, "lat", lat) }()

	at := geo.LngLat{Lng: lng, Lat: lat}
	if err = p.ctrl.PointerMove(page.Pointer{X: x, Y: y, At: &at}); err != nil {
		return fmt.Errorf("pointer move: %w", err)
	}
	return nil
}

// PointerMoveFeatures uses the renderer's hit-test result, topmost first.
func (p *Page) PointerMoveFeatures(x, y float64, ids []int) error {
	start := time.Now()
	fids := make([]feature.ID, len(ids))
	for i, id := range ids {
		fids[i] = feature.ID(id)
	}
	err := p.ctrl.PointerMove(page.Pointer{X: x, Y: y, FeatureIDs: fids})
	p.obs.observe("page.pointer_move", start, err, "features", len(ids))
	if err != nil {
		return fmt.Errorf("pointer move: %w", err)
	}
	return nil
}

// PointerLeave clears hover and highlight.
func (p *Page) PointerLeave() {
	p.ctrl.PointerLeave()
}

// Click starts a query for the active feature. It reports whether a query started.
func (p *Page) Click(lng, lat float64) (accepted bool, err error) {
	start := time.Now()
	defer func() { p.obs.observe("page.click", start, err, "accepted", accepted) }()

	accepted, err = p.ctrl.Click(geo.LngLat{Lng: lng, Lat: lat})
	if err != nil {
		return false, fmt.Errorf("click: %w", err)
	}
	p.obs.click(accepted)
	return accepted, nil
}

// Snapshot returns the current page state.
func (p *Page) Snapshot() Snapshot {
	return snapshotFromPage(p.ctrl.Snapshot())
}

// Wait blocks until the current query settles or ctx ends.
func (p *Page) Wait(ctx context.Context) (Snapshot, error) {
	s, err := p.ctrl.WaitQuery(ctx)
	if err != nil {
		return snapshotFromPage(s), fmt.Errorf("wait: %w", err)
	}
	return snapshotFromPage(s), nil
}

// Close tears the page down, cancelling an in-flight query. Safe to call twice.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.ctrl.Close()
		p.obs.pageClosed()
	})
}

func snapshotFromPage(s page.Snapshot) Snapshot {
	out := Snapshot{
		ActiveFeatureID: int(s.ActiveID),
		HighlightFilter: s.Highlight.Expression(),
		Query: QueryState{
			Status:  string(s.Query.Status),
			Result:  s.Query.Result,
			Message: s.Message,
		},
	}
	if m := s.Query.Marker; m != nil {
		out.Query.Marker = &LngLat{Lng: m.Lng, Lat: m.Lat}
	}
	if h := s.Hover; h != nil {
		infos := make([]FeatureInfo, len(h.Infos))
		for i, s := range h.Infos {
			infos[i] = FeatureInfo{Name: s.Name, Description: s.Description, Layer: s.Layer, Number: s.Number}
		}
		out.Hover = &Hover{Infos: infos, X: h.X, Y: h.Y}
	}
	return out
}
