package geodata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/kailas-cloud/zonemap/internal/domain"
)

const zonesJSON = `{
  "type": "FeatureCollection",
  "name": "pd-pa",
  "features": [
    {"type": "Feature", "properties": {"name": "ZC", "DESC": "Zona Central"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "ZR", "DESC": null},
     "geometry": {"type": "Polygon", "coordinates": [[[2,0],[3,0],[3,1],[2,1],[2,0]]]}}
  ]
}`

// --- S3 mock ---

// mockS3RoundTripper serves GetObject for path-style requests from memory.
type mockS3RoundTripper struct {
	objects map[string][]byte
}

func (m *mockS3RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	path := strings.TrimPrefix(req.URL.Path, "/")
	if req.Method != http.MethodGet {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, ok := m.objects[path]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code></Error>`)),
			Header:     http.Header{"Content-Type": {"application/xml"}},
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header: http.Header{
			"Content-Type":   {"application/geo+json"},
			"Content-Length": {strconv.Itoa(len(body))},
		},
		ContentLength: int64(len(body)),
	}, nil
}

func mockS3Options(objects map[string][]byte) Options {
	return Options{S3: S3Config{
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: &mockS3RoundTripper{objects: objects}},
	}}
}

// --- Tests ---

func TestOpen_Dispatch(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		location string
		want     string
	}{
		{"testdata/zones.geojson", "*geodata.FileSource"},
		{"file:///srv/zones.geojson", "*geodata.FileSource"},
		{"https://example.com/zones.geojson", "*geodata.HTTPSource"},
		{"s3://maps/pd/zones.geojson", "*geodata.S3Source"},
	}
	for _, tc := range tests {
		src, err := Open(ctx, tc.location, mockS3Options(nil))
		if err != nil {
			t.Fatalf("Open(%q): %v", tc.location, err)
		}
		if got := typeName(src); got != tc.want {
			t.Errorf("Open(%q) = %s, want %s", tc.location, got, tc.want)
		}
	}
}

func typeName(src Source) string {
	switch src.(type) {
	case *FileSource:
		return "*geodata.FileSource"
	case *HTTPSource:
		return "*geodata.HTTPSource"
	case *S3Source:
		return "*geodata.S3Source"
	default:
		return "unknown"
	}
}

func TestOpen_Invalid(t *testing.T) {
	for _, loc := range []string{"", "   ", "ftp://host/file", "s3://bucket-only", "s3:///key"} {
		_, err := Open(context.Background(), loc, Options{})
		if !errors.Is(err, domain.ErrInvalidSource) {
			t.Errorf("Open(%q) error = %v, want ErrInvalidSource", loc, err)
		}
	}
}

func TestFileSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	if err := os.WriteFile(path, []byte(zonesJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := Open(context.Background(), path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	fc, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("features = %d, want 2", len(fc.Features))
	}
	if fc.ExtraMembers["name"] != "pd-pa" {
		t.Errorf("extra members = %v", fc.ExtraMembers)
	}
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.geojson"), DefaultMaxBytes)
	if _, err := Load(context.Background(), src); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileSource_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	if err := os.WriteFile(path, []byte(zonesJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileSource(path, 16).Fetch(context.Background())
	if !errors.Is(err, errTooLarge) {
		t.Errorf("expected errTooLarge, got %v", err)
	}
}

func TestHTTPSource_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pd-pa.geojson" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(zonesJSON))
	}))
	defer srv.Close()

	src, err := Open(context.Background(), srv.URL+"/pd-pa.geojson", Options{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatal(err)
	}
	fc, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("features = %d, want 2", len(fc.Features))
	}
}

func TestHTTPSource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.Client(), DefaultMaxBytes)
	if _, err := Load(context.Background(), src); err == nil {
		t.Error("expected error for 502")
	}
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(zonesJSON))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPSource(srv.URL, srv.Client(), DefaultMaxBytes).Fetch(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestS3Source_Load(t *testing.T) {
	opts := mockS3Options(map[string][]byte{"maps/pd/zones.geojson": []byte(zonesJSON)})

	src, err := Open(context.Background(), "s3://maps/pd/zones.geojson", opts)
	if err != nil {
		t.Fatal(err)
	}
	if src.String() != "s3://maps/pd/zones.geojson" {
		t.Errorf("String() = %q", src.String())
	}
	fc, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("features = %d, want 2", len(fc.Features))
	}
}

func TestS3Source_MissingKey(t *testing.T) {
	src, err := Open(context.Background(), "s3://maps/absent.geojson", mockS3Options(map[string][]byte{}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, in := range []string{"", "not json", `{"type":"Point","coordinates":[0,0]}`} {
		if _, err := Decode([]byte(in)); !errors.Is(err, domain.ErrInvalidSource) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidSource", in, err)
		}
	}
}

func TestBytesSource_Load(t *testing.T) {
	raw := []byte(zonesJSON)
	src := NewBytesSource(raw)
	raw[0] = 'x'

	fc, err := NewLoader(src).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("features = %d, want 2", len(fc.Features))
	}
}
