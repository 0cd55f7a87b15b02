package config

import (
	"slices"
	"strings"
)

// Resolve returns the module load order for the configuration. Datastore
// modules load first so the store service they publish exists before
// drivers and the admin surface provision; drivers follow, everything
// else after. Stop runs in reverse, which keeps the datastore alive
// until the consumers of its change stream have unwound. Alphabetical
// within each group keeps the order deterministic.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if ga, gb := loadGroup(a), loadGroup(b); ga != gb {
			return ga - gb
		}
		return strings.Compare(a, b)
	})
	return ids
}

func loadGroup(id string) int {
	switch {
	case strings.HasPrefix(id, "datastore."):
		return 0
	case strings.HasPrefix(id, "driver."):
		return 1
	default:
		return 2
	}
}
