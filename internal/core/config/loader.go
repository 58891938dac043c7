package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Tracking.DebounceWindow == 0 {
		cfg.Tracking.DebounceWindow = 100 * time.Millisecond
	}
	if cfg.Reconciler.SlowPendingAge == 0 {
		cfg.Reconciler.SlowPendingAge = 5 * time.Minute
	}
	if cfg.Reconciler.SlowPendingBlocks == 0 {
		cfg.Reconciler.SlowPendingBlocks = 2
	}
	if cfg.Reconciler.LongPendingAge == 0 {
		cfg.Reconciler.LongPendingAge = time.Hour
	}
	if cfg.Reconciler.LongPendingBlocks == 0 {
		cfg.Reconciler.LongPendingBlocks = 9
	}

	for i := range cfg.Networks {
		if cfg.Networks[i].PollInterval == 0 {
			// BSC targets 3-second blocks
			cfg.Networks[i].PollInterval = 3 * time.Second
		}
	}

	return &cfg, nil
}
