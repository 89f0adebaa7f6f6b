// Package config loads application configuration from a TOML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrMissingCredentials is returned when the Spotify client id or secret is
// not configured by either the config file or the environment.
var ErrMissingCredentials = errors.New("missing Spotify client id or secret")

// Config is the application configuration.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// SpotifyConfig holds Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Load reads the TOML file at path (if it exists) and applies environment
// overrides. A missing file is not an error; the environment alone can
// provide a full configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8080/callback",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	return cfg, nil
}

// applyEnv overrides config values from the environment. Variables follow
// the SPOTIFY_ID / SPOTIFY_SECRET convention plus DATABASE_URL and ADDR.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SPOTIFY_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		cfg.Spotify.RedirectURI = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}
