package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goforge/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive first-time setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard()
		},
	}
}

func runOnboard() error {
	cfg := config.Default()

	workspace := cfg.Workspace.Root
	port := strconv.Itoa(cfg.Server.Port)
	enableSweep := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Workspace directory").
				Description("The single directory the agent is confined to").
				Value(&workspace),
			huh.NewInput().
				Title("Listen port").
				Value(&port).
				Validate(func(s string) error {
					p, err := strconv.Atoi(s)
					if err != nil || p <= 0 || p > 65535 {
						return fmt.Errorf("port must be 1-65535")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Enable hourly backup retention sweep?").
				Value(&enableSweep),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Workspace.Root = workspace
	cfg.Server.Port, _ = strconv.Atoi(port)
	if !enableSweep {
		cfg.Backup.SweepSchedule = ""
	}

	path := resolveConfigPath()
	if _, err := os.Stat(path); err == nil {
		overwrite := false
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("%s exists — overwrite?", path)).
			Value(&overwrite)
		if err := confirm.Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("aborted, existing config kept")
			return nil
		}
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("wrote %s — start the server with `goforge serve`\n", path)
	return nil
}
