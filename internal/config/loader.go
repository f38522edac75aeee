package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "TRACKER_CONFIG"

// envKeys are the environment variables read by Load.
var envKeys = map[string]bool{
	"FEED_URL":         true,
	"FEED_FORMAT":      true,
	"FEED_TIMEOUT":     true,
	"FEED_MAX_BYTES":   true,
	"REFRESH_INTERVAL": true,
	"HTTP_ADDR":        true,
	"LOG_LEVEL":        true,
	"LOG_FORMAT":       true,
	"SHUTDOWN_TIMEOUT": true,
	"TOP_N":            true,
	"RECENT_LIMIT":     true,
	"KAFKA_ENABLED":    true,
	"KAFKA_BROKERS":    true,
	"KAFKA_TOPIC":      true,
}

// Load builds a Config by layering, from lowest to highest precedence:
//  1. Defaults()
//  2. the YAML file named by TRACKER_CONFIG, if set
//  3. environment variables (FEED_URL, HTTP_ADDR, ...)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// FEED_URL -> feed_url, matching the koanf tags. Unrelated variables are skipped.
	envProvider := env.Provider("", ".", func(s string) string {
		if !envKeys[s] {
			return ""
		}
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.KafkaBrokers = sharedcfg.ParseBrokers(strings.Join(cfg.KafkaBrokers, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings. Errors name the offending variable.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return errors.New("FEED_URL is required")
	}
	if u, err := url.Parse(c.FeedURL); err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
		return errors.New("invalid FEED_URL: expected an http(s) or file URL")
	}
	switch strings.ToLower(c.FeedFormat) {
	case "", "auto", "csv", "json":
	default:
		return errors.New("invalid FEED_FORMAT: expected auto, csv or json")
	}
	if c.FeedTimeout <= 0 {
		return errors.New("invalid FEED_TIMEOUT")
	}
	if c.FeedMaxBytes <= 0 {
		return errors.New("invalid FEED_MAX_BYTES")
	}
	if c.RefreshInterval < 0 {
		return errors.New("invalid REFRESH_INTERVAL")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("invalid SHUTDOWN_TIMEOUT")
	}
	if c.TopN <= 0 {
		return errors.New("invalid TOP_N")
	}
	if c.RecentLimit <= 0 {
		return errors.New("invalid RECENT_LIMIT")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}
