package mock

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the mock driver inventory and timing knobs.
type Config struct {
	// Modules is the inline inventory of simulated transponder modules.
	Modules []ModuleSpec `yaml:"modules"`

	// InventoryPath optionally points to a YAML file with the same
	// modules list, merged after the inline entries.
	InventoryPath string `yaml:"inventory_path,omitempty"`

	// Latency is the simulated hardware access delay per operation.
	Latency time.Duration `yaml:"latency"`
}

// ModuleSpec describes one simulated module and its interfaces.
type ModuleSpec struct {
	Name              string   `yaml:"name"`
	Vendor            string   `yaml:"vendor,omitempty"`
	Model             string   `yaml:"model,omitempty"`
	HostInterfaces    []string `yaml:"host_interfaces"`
	NetworkInterfaces []string `yaml:"network_interfaces"`
}

func (c *Config) defaults() {
	if c.Latency <= 0 {
		c.Latency = time.Millisecond
	}
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Modules))
	for i, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("mock: modules[%d]: name is required", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("mock: duplicate module name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// loadInventory reads a modules list from the inventory file and appends
// it to the inline entries.
func (c *Config) loadInventory() error {
	if c.InventoryPath == "" {
		return nil
	}
	raw, err := os.ReadFile(c.InventoryPath)
	if err != nil {
		return fmt.Errorf("mock: reading inventory %s: %w", c.InventoryPath, err)
	}
	var file struct {
		Modules []ModuleSpec `yaml:"modules"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("mock: parsing inventory %s: %w", c.InventoryPath, err)
	}
	c.Modules = append(c.Modules, file.Modules...)
	return nil
}
