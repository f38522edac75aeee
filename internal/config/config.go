// Package config loads service settings from defaults, an optional YAML file
// and environment variables.
package config

import (
	"time"
)

// Config holds all service settings.
type Config struct {
	FeedURL         string        `koanf:"feed_url"`
	FeedFormat      string        `koanf:"feed_format"`
	FeedTimeout     time.Duration `koanf:"feed_timeout"`
	FeedMaxBytes    int64         `koanf:"feed_max_bytes"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	HTTPAddr        string        `koanf:"http_addr"`
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Query defaults for the HTTP API.
	TopN        int `koanf:"top_n"`
	RecentLimit int `koanf:"recent_limit"`

	// FieldAliases maps extra feed header spellings to canonical field names,
	// e.g. {"Community Affected": "victimGroup"}. File only.
	FieldAliases map[string]string `koanf:"field_aliases"`

	// Kafka change notifications (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled bool     `koanf:"kafka_enabled"`
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		FeedFormat:      "auto",
		FeedTimeout:     30 * time.Second,
		FeedMaxBytes:    64 << 20,
		RefreshInterval: 15 * time.Minute,
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		TopN:            10,
		RecentLimit:     20,
		KafkaBrokers:    []string{"localhost:9092"},
		KafkaTopic:      "incident-collection-events",
	}
}
