package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// configInitCmd walks the operator through an interactive form and writes
// a starter southd.yaml.
func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Interactively generate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "southd.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			answers, err := runInitForm()
			if err != nil {
				return err
			}

			content := renderConfig(answers)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			fmt.Printf("Wrote %s\n", path)
			fmt.Println("Start the daemon with: southd start --config", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

type initAnswers struct {
	adminBind    string
	adminToken   string
	persistent   bool
	mockModules  string
	pollInterval string
	resync       bool
}

func runInitForm() (initAnswers, error) {
	a := initAnswers{
		adminBind:    "127.0.0.1:8085",
		mockModules:  "1",
		pollInterval: "10s",
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Admin API bind address").
				Description("Local HTTP endpoint for health, status, metrics, and events.").
				Value(&a.adminBind),
			huh.NewInput().
				Title("Admin bearer token").
				Description("Leave empty to serve /status and /events without authentication.").
				EchoMode(huh.EchoModePassword).
				Value(&a.adminToken),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Persist config and state to SQLite?").
				Description("Without persistence all state lives in memory only.").
				Value(&a.persistent),
			huh.NewInput().
				Title("Simulated transponder modules").
				Description("Number of mock modules to serve (each with one host and one network interface).").
				Value(&a.mockModules).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative number")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Hardware poll interval").
				Description("Steady-state cadence for reading back hardware state (e.g. 10s).").
				Value(&a.pollInterval),
			huh.NewConfirm().
				Title("Enable the periodic full resync?").
				Value(&a.resync),
		),
	)

	if err := form.Run(); err != nil {
		return initAnswers{}, fmt.Errorf("config init aborted: %w", err)
	}
	return a, nil
}

func renderConfig(a initAnswers) string {
	n, _ := strconv.Atoi(a.mockModules)

	out := "version: \"1\"\n\nmodules:\n"

	if n == 0 {
		out += "  driver.mock:\n    modules: []\n"
	} else {
		out += "  driver.mock:\n    modules:\n"
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("piu%d", i+1)
			out += fmt.Sprintf("      - name: %s\n        host_interfaces: [\"0\"]\n        network_interfaces: [\"0\"]\n", name)
		}
	}

	if a.persistent {
		out += "  datastore.sqlite:\n    path: southd.db\n"
	}

	out += "  admin.http:\n"
	out += fmt.Sprintf("    bind: %q\n", a.adminBind)
	if a.adminToken != "" {
		out += fmt.Sprintf("    auth:\n      bearer_token: %q\n", a.adminToken)
	}

	out += "\nreconcile:\n"
	out += fmt.Sprintf("  poll_interval: %s\n", a.pollInterval)

	if a.resync {
		out += "\nresync:\n  enabled: true\n  schedule: \"*/15 * * * *\"\n"
	}
	return out
}
