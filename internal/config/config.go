package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// Per-connection inbound message budget per minute. Zero disables limiting.
	WSMessagesPerMinute int `mapstructure:"ws_messages_per_minute" yaml:"ws_messages_per_minute"`

	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
	SFU SFUConfig `mapstructure:"sfu" yaml:"sfu"`
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// SFUConfig holds settings for the upstream media-server bridge.
type SFUConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	APISecret   string        `mapstructure:"api_secret" yaml:"api_secret"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`

	// PendingTTL bounds how long a forwarded request may wait for the SFU
	// before the origin client gets a timeout ack.
	PendingTTL    time.Duration `mapstructure:"pending_ttl" yaml:"pending_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// Reconnect backoff bounds.
	MinBackoff time.Duration `mapstructure:"min_backoff" yaml:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8080",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		DatabasePath:        "meetup.db",
		LogLevel:            "info",
		WSMessagesPerMinute: 600,
		JWT: JWTConfig{
			Secret:   "change-me",
			Issuer:   "meetup",
			Audience: "meetup-clients",
			TTL:      24 * time.Hour,
		},
		SFU: SFUConfig{
			URL:           "ws://localhost:4000/sfu",
			DialTimeout:   5 * time.Second,
			PendingTTL:    15 * time.Second,
			SweepInterval: 5 * time.Second,
			MinBackoff:    250 * time.Millisecond,
			MaxBackoff:    10 * time.Second,
		},
	}
}
