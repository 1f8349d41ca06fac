package zonemap

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	source  string
	geojson []byte
	s3      S3Options

	queryClient QueryClient
	openai      *openAIOptions
	langserve   string

	promptTemplate string
	failureMessage string
	loadingMessage string
	queryTimeout   time.Duration
	keys           AttributeKeys

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

type openAIOptions struct {
	apiKey  string
	baseURL string
	model   string
}

// S3Options configures s3:// sources. Empty fields fall back to the AWS default chain.
type S3Options struct {
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// AttributeKeys names the feature properties shown in the tooltip.
type AttributeKeys struct {
	Name        string
	Description string
	Layer       string
	Number      string
}

// WithSource loads the collection from a path, file://, http(s):// or s3://bucket/key location.
func WithSource(location string) Option {
	return optionFunc(func(c *clientConfig) {
		c.source = location
	})
}

// WithGeoJSON loads the collection from an in-memory FeatureCollection document.
// It takes precedence over WithSource.
func WithGeoJSON(data []byte) Option {
	return optionFunc(func(c *clientConfig) {
		c.geojson = data
	})
}

// WithS3 sets object storage options for s3:// sources.
func WithS3(opts S3Options) Option {
	return optionFunc(func(c *clientConfig) {
		c.s3 = opts
	})
}

// WithQueryClient sets a custom text-generation backend. It wins over WithOpenAI and WithLangServe.
func WithQueryClient(q QueryClient) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryClient = q
	})
}

// WithOpenAI queries an OpenAI-compatible chat endpoint. baseURL may be empty.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openai = &openAIOptions{apiKey: apiKey, baseURL: baseURL, model: model}
	})
}

// WithLangServe queries a LangServe runnable at url.
func WithLangServe(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.langserve = url
	})
}

// WithPromptTemplate sets the question template. It must contain {description} exactly once.
func WithPromptTemplate(tmpl string) Option {
	return optionFunc(func(c *clientConfig) {
		c.promptTemplate = tmpl
	})
}

// WithMessages sets the text shown while a query loads and when it fails.
// Empty values keep the defaults.
func WithMessages(loading, failure string) Option {
	return optionFunc(func(c *clientConfig) {
		c.loadingMessage = loading
		c.failureMessage = failure
	})
}

// WithQueryTimeout bounds one remote query. Default: 60s.
func WithQueryTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryTimeout = d
	})
}

// WithAttributeKeys overrides the tooltip property names. Empty fields keep the defaults.
func WithAttributeKeys(keys AttributeKeys) Option {
	return optionFunc(func(c *clientConfig) {
		c.keys = keys
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
