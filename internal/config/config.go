package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"house-prices/internal/price"
	"house-prices/internal/retry"
	"house-prices/internal/sites"
)

// Config holds all configuration for the application
type Config struct {
	Sites            []string                 `mapstructure:"sites"`
	SiteIntervals    map[string]time.Duration `mapstructure:"site_intervals"`
	DefaultInterval  time.Duration            `mapstructure:"default_interval"`
	GeocoderInterval time.Duration            `mapstructure:"geocoder_interval"`

	Cache    CacheConfig    `mapstructure:"cache"`
	Resolve  ResolveConfig  `mapstructure:"resolve"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Price    PriceConfig    `mapstructure:"price"`
	Server   ServerConfig   `mapstructure:"server"`
}

// CacheConfig holds resolved-URL cache configuration
type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Path    string        `mapstructure:"path"`
	Persist bool          `mapstructure:"persist"`
}

// ResolveConfig holds candidate matching thresholds
type ResolveConfig struct {
	MaxDistanceKm float64 `mapstructure:"max_distance_km"`
	TieEpsilonKm  float64 `mapstructure:"tie_epsilon_km"`
}

// RetryConfig holds the backoff policy
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Jitter      float64       `mapstructure:"jitter"`
}

// ScraperConfig holds orchestrator settings
type ScraperConfig struct {
	SiteTimeout    time.Duration `mapstructure:"site_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// BrowserConfig selects and tunes the page renderer
type BrowserConfig struct {
	Mode           string        `mapstructure:"mode"` // "chrome" or "scrapingbee"
	Headless       bool          `mapstructure:"headless"`
	ScrapingBeeKey string        `mapstructure:"scrapingbee_key"`
	RenderTimeout  time.Duration `mapstructure:"render_timeout"`
}

// GeocoderConfig holds Nominatim settings
type GeocoderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	Country   string `mapstructure:"country"`
}

// PriceConfig bounds plausible estimates
type PriceConfig struct {
	Min int64 `mapstructure:"min"`
	Max int64 `mapstructure:"max"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from path, or from config.yaml in the usual
// places when path is empty, then applies HOUSEPRICES_ environment
// overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/house-prices/")
	}

	// HOUSEPRICES_CACHE_TTL overrides cache.ttl
	v.SetEnvPrefix("HOUSEPRICES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sites", sites.Names())
	v.SetDefault("site_intervals", map[string]string{})
	v.SetDefault("default_interval", "1s")
	v.SetDefault("geocoder_interval", "1s")

	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.path", "data/house-prices.db")
	v.SetDefault("cache.persist", true)

	v.SetDefault("resolve.max_distance_km", 5.0)
	v.SetDefault("resolve.tie_epsilon_km", 0.01)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "500ms")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_delay", "10s")
	v.SetDefault("retry.jitter", 0.2)

	v.SetDefault("scraper.site_timeout", "30s")
	v.SetDefault("scraper.max_concurrency", 0)

	v.SetDefault("browser.mode", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.scrapingbee_key", "")
	v.SetDefault("browser.render_timeout", "20s")

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "house-prices/1.0")
	v.SetDefault("geocoder.country", "nz")

	v.SetDefault("price.min", 100000)
	v.SetDefault("price.max", 50000000)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
}

// Validate reports every setting that would stop a lookup from running
// correctly
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(c.Sites) == 0 {
		add("at least one site must be configured")
	}
	seen := make(map[string]bool)
	for _, name := range c.Sites {
		switch {
		case !sites.Known(name):
			add("unknown site %q (supported: %s)", name, strings.Join(sites.Names(), ", "))
		case seen[name]:
			add("site %q listed twice", name)
		}
		seen[name] = true
	}
	for name, d := range c.SiteIntervals {
		if !sites.Known(name) {
			add("site_intervals names unknown site %q", name)
		}
		if d < 0 {
			add("interval for %s must not be negative, got %s", name, d)
		}
	}
	if c.DefaultInterval < 0 {
		add("default_interval must not be negative, got %s", c.DefaultInterval)
	}
	if c.GeocoderInterval < 0 {
		add("geocoder_interval must not be negative, got %s", c.GeocoderInterval)
	}

	if c.Cache.TTL <= 0 {
		add("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.Persist && c.Cache.Path == "" {
		add("cache.path is required when cache.persist is set")
	}
	if c.Resolve.MaxDistanceKm <= 0 {
		add("resolve.max_distance_km must be positive, got %v", c.Resolve.MaxDistanceKm)
	}
	if c.Resolve.TieEpsilonKm < 0 {
		add("resolve.tie_epsilon_km must not be negative, got %v", c.Resolve.TieEpsilonKm)
	}

	if c.Retry.BaseDelay <= 0 {
		add("retry.base_delay must be positive, got %s", c.Retry.BaseDelay)
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		add("retry: %w", err)
	}

	if c.Scraper.SiteTimeout <= 0 {
		add("scraper.site_timeout must be positive, got %s", c.Scraper.SiteTimeout)
	}
	if c.Scraper.MaxConcurrency < 0 {
		add("scraper.max_concurrency must not be negative, got %d", c.Scraper.MaxConcurrency)
	}

	switch c.Browser.Mode {
	case "chrome":
	case "scrapingbee":
		if c.Browser.ScrapingBeeKey == "" {
			add("browser.scrapingbee_key is required when browser.mode is scrapingbee (set HOUSEPRICES_BROWSER_SCRAPINGBEE_KEY)")
		}
	default:
		add("browser.mode must be 'chrome' or 'scrapingbee', got: %s", c.Browser.Mode)
	}

	if c.Price.Min < 0 || c.Price.Min >= c.Price.Max {
		add("price.min must be non-negative and below price.max, got %d..%d", c.Price.Min, c.Price.Max)
	}

	return errors.Join(errs...)
}

// RetryPolicy converts the retry settings
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		Multiplier:  c.Retry.Multiplier,
		MaxDelay:    c.Retry.MaxDelay,
		Jitter:      c.Retry.Jitter,
	}
}

// Bounds returns the plausible price range
func (c *Config) Bounds() price.Bounds {
	return price.Bounds{Min: c.Price.Min, Max: c.Price.Max}
}

// Intervals returns per-site request spacing
func (c *Config) Intervals() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.SiteIntervals))
	for k, d := range c.SiteIntervals {
		out[k] = d
	}
	return out
}
