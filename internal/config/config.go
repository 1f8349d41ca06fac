package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/zonemap/internal/usecase/query"
)

// Config holds the zonemap server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Geodata   GeodataConfig   `yaml:"geodata"`
	Query     QueryConfig     `yaml:"query"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Pages     PagesConfig     `yaml:"pages"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: json in prod, console elsewhere)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// GeodataConfig describes where the zoning FeatureCollection comes from and how to read it.
type GeodataConfig struct {
	Source         string           `yaml:"source"` // path, file://, http(s):// or s3://bucket/key
	MaxBytes       int64            `yaml:"max_bytes"`
	LoadTimeoutSec int              `yaml:"load_timeout_sec"`
	S3             S3Config         `yaml:"s3"`
	Attributes     AttributesConfig `yaml:"attributes"`
	View           ViewConfig       `yaml:"view"`
}

// S3Config holds object storage settings for s3:// sources.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// AttributesConfig names the feature properties shown in the tooltip.
type AttributesConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Layer       string `yaml:"layer"`
	Number      string `yaml:"number"`
}

// ViewConfig is the initial map camera.
type ViewConfig struct {
	Lng  float64 `yaml:"lng"`
	Lat  float64 `yaml:"lat"`
	Zoom float64 `yaml:"zoom"`
}

// QueryConfig holds the click-to-explain settings.
type QueryConfig struct {
	Provider       string      `yaml:"provider"` // openai | langserve
	PromptTemplate string      `yaml:"prompt_template"`
	FailureMessage string      `yaml:"failure_message"`
	LoadingMessage string      `yaml:"loading_message"`
	TimeoutSec     int         `yaml:"timeout_sec"`
	Quota          QuotaConfig `yaml:"quota"`
}

// QuotaConfig limits remote calls per provider.
type QuotaConfig struct {
	DailyLimit   int64  `yaml:"daily_limit"`   // 0 = unlimited
	MonthlyLimit int64  `yaml:"monthly_limit"` // 0 = unlimited
	Action       string `yaml:"action"`        // "reject" | "warn" (default)
}

// ProvidersConfig holds the text-generation backends.
type ProvidersConfig struct {
	OpenAI    OpenAIConfig    `yaml:"openai"`
	LangServe LangServeConfig `yaml:"langserve"`
}

// OpenAIConfig holds OpenAI-compatible chat settings.
type OpenAIConfig struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
}

// LangServeConfig holds the RemoteRunnable endpoint.
type LangServeConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// CacheConfig holds the answer cache and quota store settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // none, valkey, redis, goredis (default: none)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a KV store is configured.
func (c CacheConfig) Enabled() bool { return c.Driver != "none" }

// PagesConfig bounds live page sessions.
type PagesConfig struct {
	IdleTTLSec       int `yaml:"idle_ttl_sec"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	MaxPages         int `yaml:"max_pages"` // 0 = unlimited
	WaitTimeoutSec   int `yaml:"wait_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// long-polling /query waits up to pages.wait_timeout_sec
		c.HTTP.WriteTimeoutSec = 75
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Geodata.LoadTimeoutSec <= 0 {
		c.Geodata.LoadTimeoutSec = 30
	}
	if c.Geodata.S3.Region == "" {
		c.Geodata.S3.Region = "us-east-1"
	}
	c.Geodata.Attributes.applyDefaults()
	if c.Geodata.View == (ViewConfig{}) {
		c.Geodata.View = ViewConfig{Lng: -45.938001208679935, Lat: -22.227282718304494, Zoom: 14}
	}

	if c.Query.Provider == "" {
		c.Query.Provider = "openai"
	}
	if c.Query.PromptTemplate == "" {
		c.Query.PromptTemplate = query.DefaultPromptTemplate
	}
	if c.Query.FailureMessage == "" {
		c.Query.FailureMessage = query.DefaultFailureMessage
	}
	if c.Query.LoadingMessage == "" {
		c.Query.LoadingMessage = query.DefaultLoadingMessage
	}
	if c.Query.TimeoutSec <= 0 {
		c.Query.TimeoutSec = 60
	}
	if c.Query.Quota.Action == "" {
		c.Query.Quota.Action = "warn"
	}
	if c.Providers.OpenAI.Model == "" {
		c.Providers.OpenAI.Model = "gpt-4o-mini"
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "none"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Pages.IdleTTLSec <= 0 {
		c.Pages.IdleTTLSec = 30 * 60
	}
	if c.Pages.SweepIntervalSec <= 0 {
		c.Pages.SweepIntervalSec = 60
	}
	if c.Pages.WaitTimeoutSec <= 0 {
		c.Pages.WaitTimeoutSec = 65
	}
}

func (a *AttributesConfig) applyDefaults() {
	if a.Name == "" {
		a.Name = "name"
	}
	if a.Description == "" {
		a.Description = "DESC"
	}
	if a.Layer == "" {
		a.Layer = "Layer"
	}
	if a.Number == "" {
		a.Number = "NUM"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if strings.TrimSpace(c.Geodata.Source) == "" {
		return fmt.Errorf("geodata.source is required")
	}
	if err := query.ValidateTemplate(c.Query.PromptTemplate); err != nil {
		return fmt.Errorf("query.prompt_template: %w", err)
	}

	switch c.Query.Provider {
	case "openai":
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("providers.openai.api_key is required for query.provider \"openai\"")
		}
	case "langserve":
		if c.Providers.LangServe.URL == "" {
			return fmt.Errorf("providers.langserve.url is required for query.provider \"langserve\"")
		}
	default:
		return fmt.Errorf("query.provider must be \"openai\" or \"langserve\", got %q", c.Query.Provider)
	}

	switch c.Query.Quota.Action {
	case "warn", "reject":
		// ok
	default:
		return fmt.Errorf("query.quota.action must be \"warn\" or \"reject\", got %q", c.Query.Quota.Action)
	}

	switch c.Cache.Driver {
	case "none":
		// ok
	case "valkey", "redis", "goredis":
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for driver %q", c.Cache.Driver)
		}
	default:
		return fmt.Errorf("cache.driver must be one of none, valkey, redis, goredis, got %q", c.Cache.Driver)
	}

	if c.Pages.MaxPages < 0 {
		return fmt.Errorf("pages.max_pages must be >= 0, got %d", c.Pages.MaxPages)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
