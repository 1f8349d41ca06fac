package zonemap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain"
	"github.com/kailas-cloud/zonemap/internal/domain/hover"
	"github.com/kailas-cloud/zonemap/internal/repository/geodata"
	"github.com/kailas-cloud/zonemap/internal/transport/langserve"
	openaiQuery "github.com/kailas-cloud/zonemap/internal/transport/openai"
	"github.com/kailas-cloud/zonemap/internal/usecase/features"
	healthuc "github.com/kailas-cloud/zonemap/internal/usecase/health"
	"github.com/kailas-cloud/zonemap/internal/usecase/page"
	"github.com/kailas-cloud/zonemap/internal/usecase/query"
)

// QueryClient generates the explanation text for one prompt.
type QueryClient interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// QueryClientFunc adapts a function to QueryClient.
type QueryClientFunc func(ctx context.Context, prompt string) (string, error)

// Invoke calls f.
func (f QueryClientFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// featureStore is the internal interface over the published collection.
type featureStore interface {
	page.FeatureSource
	Load(ctx context.Context) error
	Loaded() bool
}

// Client is the zonemap SDK entry point.
type Client struct {
	features  featureStore
	query     domain.QueryClient
	pageCfg   page.Config
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. The collection is not fetched until Load.
// The provided context is used to set up the geodata source.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	src, err := createSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pageCfg, err := pageConfig(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store := features.NewStore(geodata.NewLoader(src), zap.NewNop())
	qc, checker := createQueryClient(cfg)

	return &Client{
		features:  store,
		query:     qc,
		pageCfg:   pageCfg,
		healthSvc: healthuc.New(store, nil, checker),
		obs:       obs,
	}, nil
}

func createSource(ctx context.Context, cfg *clientConfig) (geodata.Source, error) {
	if cfg.geojson != nil {
		return geodata.NewBytesSource(cfg.geojson), nil
	}
	if cfg.source == "" {
		return nil, errors.New("zonemap: geodata source required (use WithSource or WithGeoJSON)")
	}
	src, err := geodata.Open(ctx, cfg.source, geodata.Options{
		S3: geodata.S3Config{
			Region:          cfg.s3.Region,
			Endpoint:        cfg.s3.Endpoint,
			PathStyle:       cfg.s3.PathStyle,
			AccessKeyID:     cfg.s3.AccessKeyID,
			SecretAccessKey: cfg.s3.SecretAccessKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("zonemap: open source: %w", err)
	}
	return src, nil
}

func pageConfig(cfg *clientConfig) (page.Config, error) {
	pc := page.DefaultConfig()

	if cfg.promptTemplate != "" {
		if err := query.ValidateTemplate(cfg.promptTemplate); err != nil {
			return page.Config{}, fmt.Errorf("zonemap: %w", err)
		}
		pc.Query.PromptTemplate = cfg.promptTemplate
	}
	if cfg.failureMessage != "" {
		pc.Query.FailureMessage = cfg.failureMessage
	}
	if cfg.loadingMessage != "" {
		pc.LoadingMessage = cfg.loadingMessage
	}
	if cfg.queryTimeout > 0 {
		pc.Query.Timeout = cfg.queryTimeout
	}

	pc.Keys = mergeKeys(pc.Keys, cfg.keys)
	pc.Query.DescriptionKey = pc.Keys.Description
	return pc, nil
}

func mergeKeys(base hover.Keys, k AttributeKeys) hover.Keys {
	if k.Name != "" {
		base.Name = k.Name
	}
	if k.Description != "" {
		base.Description = k.Description
	}
	if k.Layer != "" {
		base.Layer = k.Layer
	}
	if k.Number != "" {
		base.Number = k.Number
	}
	return base
}

// createQueryClient picks the backend: custom client, OpenAI, LangServe, or a stub that always fails.
func createQueryClient(cfg *clientConfig) (domain.QueryClient, domain.HealthChecker) {
	switch {
	case cfg.queryClient != nil:
		var checker domain.HealthChecker
		if hc, ok := cfg.queryClient.(domain.HealthChecker); ok {
			checker = hc
		}
		return cfg.queryClient, checker
	case cfg.openai != nil:
		c := openaiQuery.NewClient(&openaiQuery.Config{
			APIKey:   cfg.openai.apiKey,
			BaseURL:  cfg.openai.baseURL,
			Model:    cfg.openai.model,
			Provider: "openai",
			Logger:   zap.NewNop(),
		})
		return c, c
	case cfg.langserve != "":
		c := langserve.NewClient(&langserve.Config{
			URL:      cfg.langserve,
			Provider: "langserve",
			Logger:   zap.NewNop(),
		})
		return c, c
	default:
		return noopQueryClient{}, nil
	}
}

// Load fetches and publishes the feature collection. Only the first call does work;
// later calls return the first outcome.
func (c *Client) Load(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("load", start, err) }()

	if err = c.features.Load(ctx); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// Loaded reports whether the collection is published.
func (c *Client) Loaded() bool {
	return c.features.Loaded()
}

// Features returns the collection with feature ids set, the shape a map renderer consumes.
// Before Load succeeds it is an empty FeatureCollection.
func (c *Client) Features() *geojson.FeatureCollection {
	return c.features.Collection().GeoJSON()
}

// NewPage opens an independent page session.
func (c *Client) NewPage() *Page {
	start := time.Now()
	p := &Page{
		ctrl: page.NewController(c.features, c.query, c.pageCfg, zap.NewNop()),
		obs:  c.obs,
	}
	c.obs.pageOpened()
	c.obs.observe("page.new", start, nil)
	return p
}

// noopQueryClient fails every query (used when no backend is configured).
type noopQueryClient struct{}

func (noopQueryClient) Invoke(_ context.Context, _ string) (string, error) {
	return "", errors.New(
		"zonemap: query client not configured (use WithQueryClient, WithOpenAI or WithLangServe)",
	)
}
