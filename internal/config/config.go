// Package config loads service configuration from an optional config.yml,
// with environment-variable overrides (ISSTRACK_*). A .env file in the
// working directory is honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr       string `yaml:"addr" validate:"required"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

// FeedConfig controls the upstream ephemeris fetch.
type FeedConfig struct {
	URL            string `yaml:"url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gt=0"`
	Retries        int    `yaml:"retries" validate:"gte=0"`
	RefreshSeconds int    `yaml:"refresh_seconds" validate:"gte=0"`
	CacheDir       string `yaml:"cache_dir"`
	CacheMaxFiles  int    `yaml:"cache_max_files" validate:"gte=0"`
}

// GeocoderConfig controls the reverse-geocoding client.
type GeocoderConfig struct {
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	UserAgent      string `yaml:"user_agent" validate:"required"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gt=0"`
	Retries        int    `yaml:"retries" validate:"gte=0"`
}

// ConversionConfig controls the coordinate converter.
type ConversionConfig struct {
	// TruncateEpochSeconds reproduces the original tracker's behavior of
	// dropping sub-second epoch precision before the frame rotation.
	TruncateEpochSeconds bool `yaml:"truncate_epoch_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Feed       FeedConfig       `yaml:"feed"`
	Geocoder   GeocoderConfig   `yaml:"geocoder"`
	Conversion ConversionConfig `yaml:"conversion"`
	LogLevel   string           `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// defaultFeedURL is the NASA public ISS OEM ephemeris document.
const defaultFeedURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.xml"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Feed: FeedConfig{
			URL:            defaultFeedURL,
			TimeoutSeconds: 30,
			Retries:        1,
			RefreshSeconds: 3600,
			CacheDir:       "/tmp/isstrack/oem",
			CacheMaxFiles:  5,
		},
		Geocoder: GeocoderConfig{
			UserAgent:      "iss-data-analysis",
			TimeoutSeconds: 10,
			Retries:        1,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the yaml file at path (if it
// exists), then ISSTRACK_* environment overrides, then validation. An empty
// path means only defaults and environment are used.
func Load(path string) (Config, error) {
	// Best effort; absence of a .env file is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "ISSTRACK_HTTP_ADDR")
	setBool(&cfg.Server.TrustProxy, "ISSTRACK_TRUST_PROXY")
	setString(&cfg.Feed.URL, "ISSTRACK_FEED_URL")
	setInt(&cfg.Feed.TimeoutSeconds, "ISSTRACK_FEED_TIMEOUT")
	setInt(&cfg.Feed.Retries, "ISSTRACK_FEED_RETRIES")
	setInt(&cfg.Feed.RefreshSeconds, "ISSTRACK_FEED_REFRESH")
	setString(&cfg.Feed.CacheDir, "ISSTRACK_FEED_CACHE_DIR")
	setInt(&cfg.Feed.CacheMaxFiles, "ISSTRACK_FEED_CACHE_MAX_FILES")
	setString(&cfg.Geocoder.BaseURL, "ISSTRACK_GEOCODER_URL")
	setString(&cfg.Geocoder.UserAgent, "ISSTRACK_GEOCODER_USER_AGENT")
	setInt(&cfg.Geocoder.TimeoutSeconds, "ISSTRACK_GEOCODER_TIMEOUT")
	setInt(&cfg.Geocoder.Retries, "ISSTRACK_GEOCODER_RETRIES")
	setBool(&cfg.Conversion.TruncateEpochSeconds, "ISSTRACK_TRUNCATE_EPOCH_SECONDS")
	setString(&cfg.LogLevel, "ISSTRACK_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
