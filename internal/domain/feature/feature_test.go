package feature

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const threeZones = `{
  "type": "FeatureCollection",
  "name": "pd-pa",
  "features": [
    {"type": "Feature", "properties": {"name": "ZR1", "DESC": "Zona Residencial 1", "Layer": "zoning", "NUM": 1},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "ZC", "DESC": null},
     "geometry": {"type": "Polygon", "coordinates": [[[2,0],[3,0],[3,1],[2,1],[2,0]]]}},
    {"type": "Feature", "properties": {"name": "ZA", "DESC": "Zone A"},
     "geometry": {"type": "Polygon", "coordinates": [[[4,0],[5,0],[5,1],[4,1],[4,0]]]}}
  ]
}`

func mustParse(t *testing.T, raw string) *geojson.FeatureCollection {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fc
}

func TestNewCollection_AssignsPositionalIDs(t *testing.T) {
	c := NewCollection(mustParse(t, threeZones))

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	for i, f := range c.All() {
		if f.ID() != ID(i) {
			t.Errorf("feature %d has id %d", i, f.ID())
		}
	}
}

func TestNewCollection_Deterministic(t *testing.T) {
	a := NewCollection(mustParse(t, threeZones))
	b := NewCollection(mustParse(t, threeZones))

	for i := range a.Len() {
		fa, _ := a.Get(ID(i))
		fb, _ := b.Get(ID(i))
		if fa.ID() != fb.ID() || *fa.Text("name") != *fb.Text("name") {
			t.Errorf("feature %d differs between loads", i)
		}
	}
}

func TestCollection_Get(t *testing.T) {
	c := NewCollection(mustParse(t, threeZones))

	if _, ok := c.Get(NoID); ok {
		t.Error("NoID must not resolve")
	}
	if _, ok := c.Get(3); ok {
		t.Error("out of range id must not resolve")
	}
	f, ok := c.Get(2)
	if !ok {
		t.Fatal("id 2 not found")
	}
	if got := f.Text("DESC"); got == nil || *got != "Zone A" {
		t.Errorf("DESC = %v, want Zone A", got)
	}
}

func TestCollection_NilIsEmpty(t *testing.T) {
	var c *Collection
	if c.Len() != 0 {
		t.Error("nil collection must be empty")
	}
	if _, ok := c.Get(0); ok {
		t.Error("nil collection must not resolve ids")
	}
	if fc := c.GeoJSON(); len(fc.Features) != 0 {
		t.Errorf("nil collection rendered %d features", len(fc.Features))
	}
}

func TestCollection_Metadata(t *testing.T) {
	c := NewCollection(mustParse(t, threeZones))
	if c.Metadata()["name"] != "pd-pa" {
		t.Errorf("metadata = %v", c.Metadata())
	}
	want := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 1}}
	if !c.Bound().Equal(want) {
		t.Errorf("Bound() = %v, want %v", c.Bound(), want)
	}
}

func TestCollection_GeoJSONCarriesIDs(t *testing.T) {
	c := NewCollection(mustParse(t, threeZones))

	data, err := json.Marshal(c.GeoJSON())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back := mustParse(t, string(data))
	for i, f := range back.Features {
		if id, ok := f.ID.(float64); !ok || int(id) != i {
			t.Errorf("feature %d id = %v", i, f.ID)
		}
	}
}

func TestFeature_Text(t *testing.T) {
	f := Reconstruct(0, nil, map[string]any{
		"name": "ZR1",
		"NUM":  float64(12),
		"code": float64(2023001),
		"DESC": float64(1000000),
		"area": 1234567.25,
		"tiny": 0.0005,
		"f32":  float32(2.5),
		"n64":  int64(9000000000),
		"flag": true,
		"nil":  nil,
		"obj":  map[string]any{"a": 1},
	})

	tests := []struct {
		key  string
		want *string
	}{
		{"name", strPtr("ZR1")},
		{"NUM", strPtr("12")},
		{"code", strPtr("2023001")},
		{"DESC", strPtr("1000000")},
		{"area", strPtr("1234567.25")},
		{"tiny", strPtr("0.0005")},
		{"f32", strPtr("2.5")},
		{"n64", strPtr("9000000000")},
		{"flag", strPtr("true")},
		{"nil", nil},
		{"obj", nil},
		{"missing", nil},
	}
	for _, tc := range tests {
		got := f.Text(tc.key)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("Text(%q) = %q, want nil", tc.key, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("Text(%q) = %v, want %q", tc.key, got, *tc.want)
		}
	}
}

func TestReconstruct_CopiesProperties(t *testing.T) {
	props := map[string]any{"name": "a"}
	f := Reconstruct(0, nil, props)
	props["name"] = "b"

	if got := f.Text("name"); *got != "a" {
		t.Errorf("feature mutated through caller map: %q", *got)
	}
}

func strPtr(s string) *string { return &s }

func TestCollection_LargeNumbersRenderPlain(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NUM":2023001,"DESC":1000000,"ratio":0.75},
		 "geometry":{"type":"Point","coordinates":[-45.9,-22.2]}}]}`
	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	f, ok := NewCollection(fc).Get(0)
	if !ok {
		t.Fatal("feature 0 missing")
	}

	for key, want := range map[string]string{"NUM": "2023001", "DESC": "1000000", "ratio": "0.75"} {
		if got := f.Text(key); got == nil || *got != want {
			t.Errorf("Text(%q) = %v, want %q", key, got, want)
		}
	}
}
