package main

import (
	"fmt"
	"log/slog"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/goldstone-mgmt/southd/pkg/app"
)

// program adapts the daemon to the kardianos service interface. Start must
// not block, so the application loop runs in a goroutine; a failure there
// asks the service manager to stop us.
type program struct {
	params app.RunParams
	errCh  chan error
}

func (p *program) Start(_ service.Service) error {
	p.errCh = make(chan error, 1)
	go func() {
		p.errCh <- app.Run(p.params)
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	// app.Run exits on SIGTERM, which the service manager sends; nothing
	// to tear down beyond waiting would risk a stop timeout, so return.
	return nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage southd as a system service",
	}

	var cfgPath string
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	newService := func() (service.Service, *program, error) {
		args := []string{"service", "run"}
		if cfgPath != "" {
			args = append(args, "--config", cfgPath)
		}
		prg := &program{params: app.RunParams{
			ConfigPath: cfgPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
			LogLevel:   slog.LevelInfo,
		}}
		svc, err := service.New(prg, &service.Config{
			Name:        "southd",
			DisplayName: "southd transponder daemon",
			Description: "Southbound reconciliation daemon for optical transponders.",
			Arguments:   args,
		})
		return svc, prg, err
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install southd as a system service",
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, _, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Install(); err != nil {
					return fmt.Errorf("installing service: %w", err)
				}
				fmt.Println("Service installed.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Remove the southd system service",
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, _, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Uninstall(); err != nil {
					return fmt.Errorf("uninstalling service: %w", err)
				}
				fmt.Println("Service removed.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "start",
			Short: "Start the installed service",
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, _, err := newService()
				if err != nil {
					return err
				}
				return svc.Start()
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the installed service",
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, _, err := newService()
				if err != nil {
					return err
				}
				return svc.Stop()
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run under the service manager (not for interactive use)",
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, prg, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Run(); err != nil {
					return err
				}
				select {
				case err := <-prg.errCh:
					return err
				default:
					return nil
				}
			},
		},
	)
	return cmd
}
