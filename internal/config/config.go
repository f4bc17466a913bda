// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Output   OutputConfig   `mapstructure:"output"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the fetch scheduler and per-request behavior.
type CrawlerConfig struct {
	Concurrency    int     `mapstructure:"concurrency"`
	DelayMinSec    float64 `mapstructure:"delay_min_seconds"`
	DelayMaxSec    float64 `mapstructure:"delay_max_seconds"`
	MaxRetries     int     `mapstructure:"max_retries"`
	MaxChapters    int     `mapstructure:"max_chapters"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// OutputConfig sets where chapters, progress, and assembled documents live.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// HeadlessConfig configures the chromedp rendering fetcher.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// ServerConfig controls the optional status/metrics HTTP endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOVELGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.delay_min_seconds", 1.0)
	v.SetDefault("crawler.delay_max_seconds", 3.0)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.max_chapters", 0)
	v.SetDefault("crawler.user_agent", "novelgrab/1.0 (+https://github.com/novelgrab/novelgrab)")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("output.dir", "novels")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.DelayMinSec < 0 || c.Crawler.DelayMaxSec < 0 {
		return fmt.Errorf("crawler delay bounds must be >= 0")
	}
	if c.Crawler.DelayMinSec > c.Crawler.DelayMaxSec {
		return fmt.Errorf("crawler.delay_min_seconds must be <= crawler.delay_max_seconds")
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.Crawler.MaxChapters < 0 {
		return fmt.Errorf("crawler.max_chapters must be >= 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}

// DelayMin returns the lower jitter bound as a duration.
func (c CrawlerConfig) DelayMin() time.Duration {
	return time.Duration(c.DelayMinSec * float64(time.Second))
}

// DelayMax returns the upper jitter bound as a duration.
func (c CrawlerConfig) DelayMax() time.Duration {
	return time.Duration(c.DelayMaxSec * float64(time.Second))
}

// Timeout returns the per-request fetch timeout.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NavTimeout returns the headless navigation timeout.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}
