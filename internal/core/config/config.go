package config

import (
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	redisclient "github.com/propulsorfi/txtracker/internal/infra/redis"
	"github.com/propulsorfi/txtracker/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Networks   []NetworkConfig    `yaml:"networks"`
	Database   postgres.Config    `yaml:"database"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	Tracking   TrackingConfig     `yaml:"tracking"`
	Reconciler ReconcilerConfig   `yaml:"reconciler"`
	Retention  RetentionConfig    `yaml:"retention"`
}

// RetentionConfig controls background pruning of finalized records.
// A zero period disables pruning; the admin command remains available for
// one-off purges.
type RetentionConfig struct {
	Period time.Duration `yaml:"period"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// NetworkConfig holds settings for one blockchain network.
type NetworkConfig struct {
	ChainID      domain.ChainID `yaml:"id"`
	RPCURL       string         `yaml:"rpc_url"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	Default      bool           `yaml:"default"` // initial active network
}

// TrackingConfig holds block tracker settings.
type TrackingConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// ReconcilerConfig holds the tiered receipt-check backoff thresholds.
// The defaults mirror the polling behavior the product shipped with;
// changing them changes observable query volume.
type ReconcilerConfig struct {
	SlowPendingAge    time.Duration `yaml:"slow_pending_age"`
	SlowPendingBlocks uint64        `yaml:"slow_pending_blocks"`
	LongPendingAge    time.Duration `yaml:"long_pending_age"`
	LongPendingBlocks uint64        `yaml:"long_pending_blocks"`
}
