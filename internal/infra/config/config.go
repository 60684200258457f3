// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Player      PlayerConfig      `yaml:"player"`
	Jukebox     JukeboxConfig     `yaml:"jukebox"`
	Shuffle     ShuffleConfig     `yaml:"shuffle"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Spotify     SpotifyConfig     `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr     string      `yaml:"addr" default:":8080"`
	APIToken string      `yaml:"api_token"` // Empty disables authentication
	Hooks    HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// PlayerConfig represents remote player configuration.
type PlayerConfig struct {
	DeviceName        string `yaml:"device_name" default:"Jukebox" validate:"required"`
	PollIntervalMs    int    `yaml:"poll_interval_ms" default:"1000" validate:"gte=100,lte=60000"`
	SessionCeilingMin int    `yaml:"session_ceiling_min" default:"55" validate:"gte=1,lte=60"`
	Volume            int    `yaml:"volume" default:"30" validate:"gte=1,lte=100"`
	SelfTick          *bool  `yaml:"self_tick" default:"true"`
}

// JukeboxConfig represents queue controller configuration.
type JukeboxConfig struct {
	Name              string   `yaml:"name" default:"Jukebox"`
	AutoAdvance       *bool    `yaml:"auto_advance" default:"true"`
	MediaKeys         bool     `yaml:"media_keys"`
	InitialTracks     []string `yaml:"initial_tracks"`
	InitialPlaybackNo int      `yaml:"initial_playback_no" validate:"gte=0"`
}

// ShuffleConfig selects the SHUFFLE policy.
type ShuffleConfig struct {
	Type     string         `yaml:"type" default:"random" validate:"oneof=none random current_first"`
	Settings map[string]any `yaml:"settings"`
}

// CredentialsConfig selects where login tokens are kept.
type CredentialsConfig struct {
	Backend string      `yaml:"backend" default:"file" validate:"oneof=memory file redis"`
	File    string      `yaml:"file" default:"credentials.yaml"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig represents Redis connection configuration.
type RedisConfig struct {
	Host      string `yaml:"host" default:"localhost"`
	Port      int    `yaml:"port" default:"6379" validate:"gte=1,lte=65535"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"key_prefix" default:"jukebox:credential:"`
}

// CatalogConfig represents track catalog database configuration.
type CatalogConfig struct {
	Driver string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" default:"jukebox.db" validate:"required"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token"` // Seeds the credential store when it has none
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("JUKEBOX_API_TOKEN"); v != "" {
		c.Server.APIToken = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Credentials.Redis.Password = v
	}
	if v := os.Getenv("CATALOG_DSN"); v != "" {
		c.Catalog.DSN = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Jukebox.InitialPlaybackNo > 0 && c.Jukebox.InitialPlaybackNo >= len(c.Jukebox.InitialTracks) {
		return errors.Newf("initial_playback_no (%d) is out of range for %d initial tracks",
			c.Jukebox.InitialPlaybackNo, len(c.Jukebox.InitialTracks))
	}

	return nil
}

// PollInterval returns the credential and device polling interval.
func (c *PlayerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SessionCeiling returns the maximum lifetime of one device session.
func (c *PlayerConfig) SessionCeiling() time.Duration {
	return time.Duration(c.SessionCeilingMin) * time.Minute
}

// SelfTickEnabled reports whether the player advances its own position while playing.
func (c *PlayerConfig) SelfTickEnabled() bool {
	return c.SelfTick == nil || *c.SelfTick
}

// AutoAdvanceEnabled reports whether a finished track advances the queue.
func (c *JukeboxConfig) AutoAdvanceEnabled() bool {
	return c.AutoAdvance == nil || *c.AutoAdvance
}
