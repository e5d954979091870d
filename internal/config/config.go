// Package config provides configuration management functionality.
//
// This package handles loading configuration from environment variables (.env file)
// and programmatic overrides. Overrides passed to Load take precedence over
// environment variables, which take precedence over built-in defaults.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables
// 3. Apply any programmatic overrides passed to Load
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// SimulationConfig holds the envelope of a single simulation run: how long
// it runs, what calendar date it starts at, how often global decay runs,
// where the event-sink database lives, and what log level to run at.
type SimulationConfig struct {
	Duration      int    // simulation length, in months
	StartMonth    int    // calendar month (1-12) that timestep 0 represents
	StartYear     int    // calendar year that timestep 0 represents
	SimStart      int    // absolute GENIUS timestep the simulation begins at (usually 0)
	DecayInterval int    // timesteps between global decay passes; <=0 disables decay
	DataDir       string // directory the event-sink database lives in, always absolute
	LogLevel      string // zerolog level name (debug, info, warn, error)
	HTTPPort      int    // port internal/inspect listens on; 0 disables the inspector
}

// Load reads configuration from environment variables, applying defaults
// for anything unset.
//
// dataDirOverride, if provided and non-empty, takes priority over the
// CYCLUS_DATA_DIR environment variable and the built-in default.
func Load(dataDirOverride ...string) (*SimulationConfig, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("CYCLUS_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./cyclus-data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("config: create data directory: %w", err)
	}

	cfg := &SimulationConfig{
		Duration:      getEnvAsInt("CYCLUS_DURATION", 120),
		StartMonth:    getEnvAsInt("CYCLUS_START_MONTH", 1),
		StartYear:     getEnvAsInt("CYCLUS_START_YEAR", 2020),
		SimStart:      getEnvAsInt("CYCLUS_SIM_START", 0),
		DecayInterval: getEnvAsInt("CYCLUS_DECAY_INTERVAL", 12),
		DataDir:       absDataDir,
		LogLevel:      getEnv("CYCLUS_LOG_LEVEL", "info"),
		HTTPPort:      getEnvAsInt("CYCLUS_HTTP_PORT", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configured simulation envelope is internally
// consistent.
func (c *SimulationConfig) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("config: duration must be positive, got %d", c.Duration)
	}
	if c.StartMonth < 1 || c.StartMonth > 12 {
		return fmt.Errorf("config: start_month must be in [1,12], got %d", c.StartMonth)
	}
	if c.DecayInterval < 0 {
		return fmt.Errorf("config: decay_interval must be >= 0, got %d", c.DecayInterval)
	}
	return nil
}

// ==========================================
// Helper Functions
// ==========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
