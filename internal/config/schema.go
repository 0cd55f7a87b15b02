// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for southd.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goldstone-mgmt/southd/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "driver.mock").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Reconcile holds the per-entity reconciliation knobs.
	Reconcile ReconcileConfig `yaml:"reconcile,omitempty"`

	// Resync configures the periodic full hardware resync.
	Resync ResyncConfig `yaml:"resync,omitempty"`

	// Telemetry configures OpenTelemetry tracing (off by default).
	Telemetry telemetry.Config `yaml:"telemetry,omitempty"`
}

// ReconcileConfig mirrors the reconciler knobs in YAML form. Zero values
// fall back to the reconciler's own defaults.
type ReconcileConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	OpTimeout      time.Duration `yaml:"op_timeout"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	FaultThreshold int           `yaml:"fault_threshold"`
}

// ResyncConfig configures the scheduled full resync job.
type ResyncConfig struct {
	// Enabled turns the periodic resync on. Default off: steady-state
	// polling already covers most drift.
	Enabled bool `yaml:"enabled"`

	// Schedule is a 5-field cron expression. Empty uses the job default.
	Schedule string `yaml:"schedule,omitempty"`
}
