// Package geodata fetches the zoning FeatureCollection from a file, an HTTP(S) URL or S3.
package geodata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/kailas-cloud/zonemap/internal/domain"
)

// DefaultMaxBytes caps the size of a fetched document.
const DefaultMaxBytes int64 = 64 << 20

// Source fetches the raw GeoJSON document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// Options configures source construction.
type Options struct {
	HTTPClient *http.Client
	S3         S3Config
	MaxBytes   int64
}

// Open picks a source by location scheme: s3://bucket/key, http(s)://..., file://path or a bare path.
func Open(ctx context.Context, location string, opts Options) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", domain.ErrInvalidSource)
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	if !strings.Contains(location, "://") {
		return NewFileSource(location, opts.MaxBytes), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSource, err)
	}

	switch u.Scheme {
	case "file":
		return NewFileSource(u.Host+u.Path, opts.MaxBytes), nil
	case "http", "https":
		return NewHTTPSource(location, opts.HTTPClient, opts.MaxBytes), nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("%w: s3 location needs bucket and key: %s", domain.ErrInvalidSource, location)
		}
		return NewS3Source(ctx, u.Host, key, opts.S3, opts.MaxBytes)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidSource, u.Scheme)
	}
}

// Decode parses a GeoJSON FeatureCollection.
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode geojson: %w", domain.ErrInvalidSource, err)
	}
	return fc, nil
}

// Load fetches and decodes the collection.
func Load(ctx context.Context, src Source) (*geojson.FeatureCollection, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	return Decode(data)
}

var errTooLarge = errors.New("geodata document too large")

// readLimited reads r fully, failing when it exceeds limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", errTooLarge, limit)
	}
	return data, nil
}

// Loader adapts a Source to the feature store.
type Loader struct {
	src Source
}

// NewLoader wraps src.
func NewLoader(src Source) *Loader {
	return &Loader{src: src}
}

// Load fetches and decodes the collection.
func (l *Loader) Load(ctx context.Context) (*geojson.FeatureCollection, error) {
	return Load(ctx, l.src)
}
