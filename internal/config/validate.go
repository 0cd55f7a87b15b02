package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/goldstone-mgmt/southd/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and sanity-checks the
// reconcile and resync sections.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateReconcile(cfg.Reconcile)...)

	if cfg.Resync.Enabled && cfg.Resync.Schedule != "" {
		if err := validateCronExpr(cfg.Resync.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: resync.schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}

func validateReconcile(rc ReconcileConfig) []error {
	var errs []error

	if rc.PollInterval < 0 {
		errs = append(errs, errors.New("config: reconcile.poll_interval must not be negative"))
	}
	if rc.OpTimeout < 0 {
		errs = append(errs, errors.New("config: reconcile.op_timeout must not be negative"))
	}
	if rc.BackoffInitial < 0 || rc.BackoffMax < 0 {
		errs = append(errs, errors.New("config: reconcile backoff durations must not be negative"))
	}
	if rc.BackoffInitial > 0 && rc.BackoffMax > 0 && rc.BackoffInitial > rc.BackoffMax {
		errs = append(errs, errors.New("config: reconcile.backoff_initial must not exceed backoff_max"))
	}
	if rc.FaultThreshold < 0 {
		errs = append(errs, errors.New("config: reconcile.fault_threshold must not be negative"))
	}

	return errs
}

func validateCronExpr(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(expr)
	return err
}
