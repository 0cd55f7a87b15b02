package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} in the raw YAML. The
// default may contain "}" escaped as "\}".
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

var escapePattern = regexp.MustCompile(`\\(.)`)

// Load reads the southd YAML config file, expands environment variable
// references, and parses the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} references. A set
// environment variable wins over the default. Variables with neither a
// value nor a default are collected into one joined error so the
// operator sees every unresolved reference at once.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}

		if subs[2] != nil {
			return unescape(subs[2])
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}

// unescape strips the backslashes a default value needs to carry literal
// "}" characters, e.g. ${TAGS:-{a\}}.
func unescape(val []byte) []byte {
	return escapePattern.ReplaceAll(val, []byte("$1"))
}
