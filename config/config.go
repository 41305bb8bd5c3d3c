package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const (
	PROVIDER_GOOGLE = "google"
	PROVIDER_OPENAI = "openai"
	PROVIDER_GEMINI = "gemini"
	PROVIDER_VADER  = "vader"

	GRANULARITY_AUTO = "auto"
	GRANULARITY_HOUR = "hour"
	GRANULARITY_DAY  = "day"

	MAX_FETCH_LIMIT = 100
)

type Config struct {
	Bluesky   Bluesky   `yaml:"bluesky"`
	Sentiment Sentiment `yaml:"sentiment"`
	Analysis  Analysis  `yaml:"analysis"`
	Quota     Quota     `yaml:"quota"`
	Valkey    Valkey    `yaml:"valkey"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Bluesky struct {
	ServiceUsername         string        `yaml:"service_username"`
	ServicePassword         string        `yaml:"service_password"`
	Host                    string        `yaml:"host"`
	PublicHost              string        `yaml:"public_host"`
	FallbackUnauthenticated bool          `yaml:"fallback_unauthenticated"`
	FetchLimit              int           `yaml:"fetch_limit"`
	MaxPages                int           `yaml:"max_pages"`
	Timeout                 time.Duration `yaml:"timeout"`
}

type Sentiment struct {
	Provider             string        `yaml:"provider"`
	CloudCredentialsPath string        `yaml:"cloud_credentials_path"`
	OpenAIModel          string        `yaml:"openai_model"`
	GeminiModel          string        `yaml:"gemini_model"`
	Workers              int           `yaml:"workers"`
	CallTimeout          time.Duration `yaml:"call_timeout"`
	HealthCheckInterval  time.Duration `yaml:"health_check_interval"`

	// Secrets only ever come from the environment.
	OpenAIAPIKey string `yaml:"-"`
	GeminiAPIKey string `yaml:"-"`
}

type Analysis struct {
	PositiveThreshold float64 `yaml:"positive_threshold"`
	NegativeThreshold float64 `yaml:"negative_threshold"`
	Granularity       string  `yaml:"granularity"`
	Timezone          string  `yaml:"timezone"`
	TopK              int     `yaml:"top_k"`
	TopTerms          int     `yaml:"top_terms"`
	HistogramBins     int     `yaml:"histogram_bins"`
}

// Quota limits calls to the scoring backend. Zero disables a limit.
type Quota struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

type Valkey struct {
	InitAddress string `yaml:"init_address"`
	Password    string `yaml:"password"`
	TLS         bool   `yaml:"tls"`
}

type Server struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ResolveConfigPath returns the config file to overlay on the defaults:
// explicit path > ./config.yaml > none.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml", nil
	}
	return "", nil
}

// Load builds the configuration from the embedded defaults, the optional
// YAML file at path and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg, err := parse(DefaultConfigYAML, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if cfg, err = parse(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded defaults without consulting the environment.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML, nil)
	if err != nil {
		panic(fmt.Errorf("[Config] embedded default.yaml is invalid: %w", err))
	}
	return cfg
}

// parse decodes data on top of base. A nil base starts from zero values.
func parse(data []byte, base *Config) (*Config, error) {
	cfg := &Config{}
	if base != nil {
		copied := *base
		cfg = &copied
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and deployment values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString("BSKY_USERNAME", &c.Bluesky.ServiceUsername)
	setString("BSKY_PASSWORD", &c.Bluesky.ServicePassword)
	setString("GOOGLE_APPLICATION_CREDENTIALS", &c.Sentiment.CloudCredentialsPath)
	setString("SENTIMENT_PROVIDER", &c.Sentiment.Provider)
	setString("OPENAI_API_KEY", &c.Sentiment.OpenAIAPIKey)
	setString("GEMINI_API_KEY", &c.Sentiment.GeminiAPIKey)
	setString("VALKEY_INIT_ADDRESS", &c.Valkey.InitAddress)
	setString("VALKEY_PASSWORD", &c.Valkey.Password)
	setString("LOG_LEVEL", &c.Logging.Level)

	if v := getenv("VALKEY_TLS"); v != "" {
		c.Valkey.TLS = v == "true"
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) Validate() error {
	switch c.Sentiment.Provider {
	case PROVIDER_GOOGLE, PROVIDER_OPENAI, PROVIDER_GEMINI, PROVIDER_VADER:
	default:
		return fmt.Errorf("unknown sentiment provider %q", c.Sentiment.Provider)
	}

	switch c.Analysis.Granularity {
	case GRANULARITY_AUTO, GRANULARITY_HOUR, GRANULARITY_DAY:
	default:
		return fmt.Errorf("unknown time bucket granularity %q", c.Analysis.Granularity)
	}

	if c.Analysis.NegativeThreshold > c.Analysis.PositiveThreshold {
		return fmt.Errorf("negative_threshold (%.2f) must not exceed positive_threshold (%.2f)",
			c.Analysis.NegativeThreshold, c.Analysis.PositiveThreshold)
	}
	if c.Analysis.PositiveThreshold > 1 || c.Analysis.NegativeThreshold < -1 {
		return fmt.Errorf("label thresholds must lie within [-1, 1]")
	}

	if _, err := time.LoadLocation(c.Analysis.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Analysis.Timezone, err)
	}

	if c.Bluesky.FetchLimit < 1 || c.Bluesky.FetchLimit > MAX_FETCH_LIMIT {
		return fmt.Errorf("fetch_limit must be between 1 and %d, got %d", MAX_FETCH_LIMIT, c.Bluesky.FetchLimit)
	}
	if c.Bluesky.MaxPages < 1 {
		return fmt.Errorf("max_pages must be at least 1")
	}
	if c.Sentiment.Workers < 1 {
		return fmt.Errorf("sentiment workers must be at least 1")
	}
	if c.Analysis.TopK < 1 || c.Analysis.TopTerms < 1 || c.Analysis.HistogramBins < 1 {
		return fmt.Errorf("top_k, top_terms and histogram_bins must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

// HasBlueskyCredentials reports whether both halves of the Bluesky login are set.
func (c *Config) HasBlueskyCredentials() bool {
	return c.Bluesky.ServiceUsername != "" && c.Bluesky.ServicePassword != ""
}

// Location returns the time zone used for time buckets. Validate has
// already rejected unknown zones, so errors fall back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Analysis.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
