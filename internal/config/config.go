package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	RedisURL string

	// Credentials are the model API keys in failover order.
	Credentials []string

	OtelExporterOTLPEndpoint string
	SentryDSN                string

	Port string

	Synthesis SynthesisConfig
}

type SynthesisConfig struct {
	BaseURL               string        `yaml:"base_url"`
	RecipeModel           string        `yaml:"recipe_model"`
	VisionModel           string        `yaml:"vision_model"`
	ImageModel            string        `yaml:"image_model"`
	ImageAspectRatio      string        `yaml:"image_aspect_ratio"`
	ThinkingBudget        int           `yaml:"thinking_budget"`
	PlaceholderImageURL   string        `yaml:"placeholder_image_url"`
	RequireMainIngredient *bool         `yaml:"require_main_ingredient"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	CacheTTL              time.Duration `yaml:"cache_ttl"`
}

// MainIngredientRequired reports whether the main-ingredient precheck is on.
func (s SynthesisConfig) MainIngredientRequired() bool {
	return s.RequireMainIngredient == nil || *s.RequireMainIngredient
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		Credentials:              CredentialsFromEnv(os.Getenv),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
	}

	// Load from YAML file if available
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	if err := cfg.LoadFromYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	// Set defaults
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "chefai"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	cfg.SetSynthesisDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// CredentialsFromEnv collects API keys in failover order: API_KEY, API_KEY_SECONDARY, then
// each comma-separated entry of GEMINI_API_KEYS. Blank values are skipped; the pool drops
// duplicates.
func CredentialsFromEnv(getenv func(string) string) []string {
	var keys []string
	for _, name := range []string{"API_KEY", "API_KEY_SECONDARY"} {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			keys = append(keys, v)
		}
	}
	for _, v := range strings.Split(getenv("GEMINI_API_KEYS"), ",") {
		if v = strings.TrimSpace(v); v != "" {
			keys = append(keys, v)
		}
	}
	return keys
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Synthesis SynthesisConfig `yaml:"synthesis"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	y := yamlConfig.Synthesis
	if y.BaseURL != "" {
		c.Synthesis.BaseURL = y.BaseURL
	}
	if y.RecipeModel != "" {
		c.Synthesis.RecipeModel = y.RecipeModel
	}
	if y.VisionModel != "" {
		c.Synthesis.VisionModel = y.VisionModel
	}
	if y.ImageModel != "" {
		c.Synthesis.ImageModel = y.ImageModel
	}
	if y.ImageAspectRatio != "" {
		c.Synthesis.ImageAspectRatio = y.ImageAspectRatio
	}
	if y.ThinkingBudget != 0 {
		c.Synthesis.ThinkingBudget = y.ThinkingBudget
	}
	if y.PlaceholderImageURL != "" {
		c.Synthesis.PlaceholderImageURL = y.PlaceholderImageURL
	}
	if y.RequireMainIngredient != nil {
		c.Synthesis.RequireMainIngredient = y.RequireMainIngredient
	}
	if y.RequestTimeout != 0 {
		c.Synthesis.RequestTimeout = y.RequestTimeout
	}
	if y.CacheTTL != 0 {
		c.Synthesis.CacheTTL = y.CacheTTL
	}

	return nil
}

func (c *Config) SetSynthesisDefaults() {
	s := &c.Synthesis
	if s.BaseURL == "" {
		s.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if s.RecipeModel == "" {
		s.RecipeModel = "gemini-3-pro-preview"
	}
	if s.VisionModel == "" {
		s.VisionModel = "gemini-3-flash-preview"
	}
	if s.ImageModel == "" {
		s.ImageModel = "gemini-2.5-flash-image"
	}
	if s.ImageAspectRatio == "" {
		s.ImageAspectRatio = "16:9"
	}
	if s.ThinkingBudget == 0 {
		s.ThinkingBudget = 16000
	}
	if s.RequireMainIngredient == nil {
		required := true
		s.RequireMainIngredient = &required
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 120 * time.Second
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = 24 * time.Hour
	}
}

func (c *Config) validate() error {
	if c.Synthesis.ThinkingBudget < 0 {
		return fmt.Errorf("synthesis.thinking_budget must not be negative")
	}
	if c.Synthesis.RequestTimeout < 0 {
		return fmt.Errorf("synthesis.request_timeout must not be negative")
	}
	return nil
}

// RequireRedis reports an error when REDIS_URL is missing; the worker cannot run without it.
func (c *Config) RequireRedis() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}
