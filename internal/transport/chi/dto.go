package chi

import (
	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
	"github.com/kailas-cloud/zonemap/internal/domain/hover"
	"github.com/kailas-cloud/zonemap/internal/usecase/page"
)

// ErrorCode is the machine-readable error kind in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodePageNotFound       ErrorCode = "page_not_found"
	ErrorCodeFeatureNotFound    ErrorCode = "feature_not_found"
	ErrorCodeTooManyPages       ErrorCode = "too_many_pages"
	ErrorCodeCollectionNotReady ErrorCode = "collection_not_loaded"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ViewResponse is the initial map camera.
type ViewResponse struct {
	Lng  float64 `json:"lng"`
	Lat  float64 `json:"lat"`
	Zoom float64 `json:"zoom"`
}

// CreatePageResponse is the POST /pages body.
type CreatePageResponse struct {
	ID string `json:"id"`
}

// PointerMoveRequest is one pointer-move event.
// FeatureIDs, when present, are the renderer's hit-test result and win over lng/lat.
type PointerMoveRequest struct {
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Lng        *float64     `json:"lng,omitempty"`
	Lat        *float64     `json:"lat,omitempty"`
	FeatureIDs []feature.ID `json:"feature_ids,omitempty"`
}

// ClickRequest is a map click position.
type ClickRequest struct {
	Lng *float64 `json:"lng"`
	Lat *float64 `json:"lat"`
}

// SummaryDTO is one tooltip line. Absent attributes are null.
type SummaryDTO struct {
	Name  *string `json:"name"`
	Desc  *string `json:"desc"`
	Layer *string `json:"layer"`
	Num   *string `json:"num"`
}

// HoverDTO is the tooltip state.
type HoverDTO struct {
	Infos []SummaryDTO `json:"infos"`
	X     float64      `json:"x"`
	Y     float64      `json:"y"`
}

// MarkerDTO is the click marker position.
type MarkerDTO struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// QueryDTO is the query session state.
type QueryDTO struct {
	Status  string     `json:"status"`
	Marker  *MarkerDTO `json:"marker"`
	Result  *string    `json:"result"`
	Message string     `json:"message"`
}

// SnapshotResponse is the page state.
type SnapshotResponse struct {
	Hover           *HoverDTO  `json:"hover"`
	ActiveFeatureID feature.ID `json:"active_feature_id"`
	HighlightFilter any        `json:"highlight_filter"`
	Query           QueryDTO   `json:"query"`
}

// ClickResponse is the page state after a click.
type ClickResponse struct {
	SnapshotResponse
	Accepted bool `json:"accepted"`
}

func (r PointerMoveRequest) toPointer() page.Pointer {
	p := page.Pointer{X: r.X, Y: r.Y, FeatureIDs: r.FeatureIDs}
	if r.Lng != nil && r.Lat != nil {
		p.At = &geo.LngLat{Lng: *r.Lng, Lat: *r.Lat}
	}
	return p
}

func snapshotToDTO(s page.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		Hover:           hoverToDTO(s.Hover),
		ActiveFeatureID: s.ActiveID,
		HighlightFilter: s.Highlight,
		Query: QueryDTO{
			Status:  string(s.Query.Status),
			Result:  s.Query.Result,
			Message: s.Message,
		},
	}
	if m := s.Query.Marker; m != nil {
		resp.Query.Marker = &MarkerDTO{Lng: m.Lng, Lat: m.Lat}
	}
	return resp
}

func hoverToDTO(h *hover.State) *HoverDTO {
	if h == nil {
		return nil
	}
	infos := make([]SummaryDTO, len(h.Infos))
	for i, s := range h.Infos {
		infos[i] = SummaryDTO{Name: s.Name, Desc: s.Description, Layer: s.Layer, Num: s.Number}
	}
	return &HoverDTO{Infos: infos, X: h.X, Y: h.Y}
}
