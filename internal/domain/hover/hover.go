package hover

import "github.com/kailas-cloud/zonemap/internal/domain/feature"

// Keys names the attributes summarized in the tooltip.
type Keys struct {
	Name        string
	Description string
	Layer       string
	Number      string
}

// DefaultKeys match the attribute names of the municipal zoning data set.
func DefaultKeys() Keys {
	return Keys{Name: "name", Description: "DESC", Layer: "Layer", Number: "NUM"}
}

// Summary is the tooltip line for one feature under the pointer. Nil fields are absent.
type Summary struct {
	Name        *string
	Description *string
	Layer       *string
	Number      *string
}

// Summarize extracts the tooltip attributes of f.
func Summarize(f feature.Feature, keys Keys) Summary {
	return Summary{
		Name:        f.Text(keys.Name),
		Description: f.Text(keys.Description),
		Layer:       f.Text(keys.Layer),
		Number:      f.Text(keys.Number),
	}
}

// State is the transient hover data of one pointer position.
type State struct {
	Infos []Summary
	X     float64
	Y     float64
}

// Resolve derives hover state from the features under the pointer, topmost first.
// The first feature becomes active. No features yields nil and feature.NoID.
func Resolve(features []feature.Feature, x, y float64, keys Keys) (*State, feature.ID) {
	if len(features) == 0 {
		return nil, feature.NoID
	}
	infos := make([]Summary, len(features))
	for i, f := range features {
		infos[i] = Summarize(f, keys)
	}
	return &State{Infos: infos, X: x, Y: y}, features[0].ID()
}

// Leave clears hover state when the pointer leaves the map.
func Leave() (*State, feature.ID) {
	return nil, feature.NoID
}

// Clone returns a deep copy, nil-safe.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	infos := make([]Summary, len(s.Infos))
	copy(infos, s.Infos)
	return &State{Infos: infos, X: s.X, Y: s.Y}
}
