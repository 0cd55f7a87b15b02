package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadString(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "southd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return Load(path)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load on missing file: expected error")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SOUTHD_TEST_VERSION", "1")

	cfg, err := loadString(t, "version: \"${SOUTHD_TEST_VERSION}\"\n")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("version = %q, want %q", cfg.Version, "1")
	}
}

func TestLoad_EnvDefaultApplies(t *testing.T) {
	t.Parallel()

	cfg, err := loadString(t, "version: \"${SOUTHD_TEST_UNSET_VAR:-1}\"\n")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("version = %q, want default %q", cfg.Version, "1")
	}
}

func TestLoad_UnresolvedVariablesJoined(t *testing.T) {
	t.Parallel()

	_, err := loadString(t, "version: \"${SOUTHD_TEST_NO_A}\"\nextra: \"${SOUTHD_TEST_NO_B}\"\n")
	if err == nil {
		t.Fatal("expected unresolved-variable error")
	}
	for _, name := range []string{"SOUTHD_TEST_NO_A", "SOUTHD_TEST_NO_B"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestExpandEnv_EscapedBraceInDefault(t *testing.T) {
	t.Parallel()

	// "\}" carries a literal closing brace through the default; the
	// backslash must not leak into the expanded value.
	got, err := expandEnv([]byte(`${SOUTHD_TEST_UNSET_VAR:-a\}b}`))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	if string(got) != "a}b" {
		t.Errorf("expanded = %q, want %q", got, "a}b")
	}
}

func TestExpandEnv_EnvWinsOverDefault(t *testing.T) {
	t.Setenv("SOUTHD_TEST_SET_VAR", "from-env")

	got, err := expandEnv([]byte("${SOUTHD_TEST_SET_VAR:-fallback}"))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	if string(got) != "from-env" {
		t.Errorf("expanded = %q, want %q", got, "from-env")
	}
}
