// Package config loads shell configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all shell configuration.
type Config struct {
	Shell     ShellConfig
	Window    WindowConfig
	Placement PlacementConfig
	Fetch     FetchConfig
	Modules   ModuleConfig
	Reveal    RevealConfig
	Logging   LogConfig
}

// ShellConfig holds navigation shell configuration.
type ShellConfig struct {
	// Header is the value of the X-Requested-With header on fragment requests.
	Header      string   `envconfig:"SHELL_HEADER" default:"saintjustus-shell"`
	Bypass      []string `envconfig:"SHELL_BYPASS" default:"/api/**,/**/*.pdf,/tracks/**"`
	ManifestDir string   `envconfig:"SHELL_MANIFEST_DIR"`
}

// WindowConfig holds window sizing and lifecycle configuration.
type WindowConfig struct {
	Gutter          float64       `envconfig:"WINDOW_GUTTER" default:"32"`
	MinWidth        float64       `envconfig:"WINDOW_MIN_WIDTH" default:"240"`
	MinHeight       float64       `envconfig:"WINDOW_MIN_HEIGHT" default:"160"`
	ActiveMinWidth  float64       `envconfig:"WINDOW_ACTIVE_MIN_WIDTH" default:"480"`
	ActiveMinHeight float64       `envconfig:"WINDOW_ACTIVE_MIN_HEIGHT" default:"340"`
	ZSeed           int           `envconfig:"WINDOW_Z_SEED" default:"10"`
	EmbedTimeout    time.Duration `envconfig:"EMBED_TIMEOUT" default:"8s"`
}

// PlacementConfig holds placement engine configuration.
type PlacementConfig struct {
	DefaultWidth   float64 `envconfig:"PLACEMENT_DEFAULT_WIDTH" default:"280"`
	DefaultHeight  float64 `envconfig:"PLACEMENT_DEFAULT_HEIGHT" default:"180"`
	Gutter         float64 `envconfig:"PLACEMENT_GUTTER" default:"24"`
	Buffer         float64 `envconfig:"PLACEMENT_BUFFER" default:"16"`
	RandomAttempts int     `envconfig:"PLACEMENT_RANDOM_ATTEMPTS" default:"16"`
	Seed           uint64  `envconfig:"PLACEMENT_SEED" default:"1"`
}

// FetchConfig holds fragment request configuration.
type FetchConfig struct {
	BaseURL         string        `envconfig:"FETCH_BASE_URL" default:"http://localhost:3000"`
	Timeout         time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	RetryCount      int           `envconfig:"FETCH_RETRY_COUNT" default:"1"`
	RequestsPerSec  float64       `envconfig:"FETCH_RPS" default:"0"`
	BreakerFailures uint32        `envconfig:"FETCH_BREAKER_FAILURES" default:"5"`
	BreakerTimeout  time.Duration `envconfig:"FETCH_BREAKER_TIMEOUT" default:"30s"`
}

// ModuleConfig holds script module configuration.
type ModuleConfig struct {
	EvalTimeout time.Duration `envconfig:"MODULE_EVAL_TIMEOUT" default:"2s"`
}

// RevealConfig holds layer choreography configuration.
type RevealConfig struct {
	Step time.Duration `envconfig:"REVEAL_STEP" default:"90ms"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Shell: ShellConfig{
			Header: "saintjustus-shell",
			Bypass: []string{"/api/**", "/**/*.pdf", "/tracks/**"},
		},
		Window: WindowConfig{
			Gutter:          32,
			MinWidth:        240,
			MinHeight:       160,
			ActiveMinWidth:  480,
			ActiveMinHeight: 340,
			ZSeed:           10,
			EmbedTimeout:    8 * time.Second,
		},
		Placement: PlacementConfig{
			DefaultWidth:   280,
			DefaultHeight:  180,
			Gutter:         24,
			Buffer:         16,
			RandomAttempts: 16,
			Seed:           1,
		},
		Fetch: FetchConfig{
			BaseURL:         "http://localhost:3000",
			Timeout:         10 * time.Second,
			RetryCount:      1,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Modules: ModuleConfig{
			EvalTimeout: 2 * time.Second,
		},
		Reveal: RevealConfig{
			Step: 90 * time.Millisecond,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
