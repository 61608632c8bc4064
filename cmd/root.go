// Package cmd provides spyrun's command-line interface: a single root
// command that loads a TOML config and runs the supervisor until a
// sentinel file signals shutdown.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yukimemi/spyrun/internal/supervisor"
)

var cfgFile string

// rootCmd is spyrun's only command surface: one config-file-driven CLI.
var rootCmd = &cobra.Command{
	Use:   "spyrun",
	Short: "Watch filesystem events and run templated commands against them",
	Long: `spyrun watches configured directories for filesystem events and, for each
matching event, renders a command template and runs it with rate-limiting
(debounce/throttle/mutex) and captured stdout/stderr.

Configuration is a single TOML file (default: spyrun.toml) describing the
spies to run, the optional startup command, and the sentinel files used to
signal shutdown.`,
	RunE: runRoot,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "spyrun.toml", "path to the spyrun TOML configuration file")
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	code := supervisor.Run(ctx, cfgFile)
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
