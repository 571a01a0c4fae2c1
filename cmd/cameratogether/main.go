package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/mmynk/cameratogether/internal/config"
	"github.com/mmynk/cameratogether/pkg/logging"
)

const programName = "cameratogether"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), "component", programName)
}

// commonRun installs the logger and sizes GOMAXPROCS to the CPU quota.
func commonRun(cfg *config.Config) *slog.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if globalFlags.debug {
		level = slog.LevelDebug
	}
	logging.SetupWithLevel(level)

	if _, err := maxprocs.Set(maxprocs.Logger(slogPrintf)); err != nil {
		slog.Error("Failed to set GOMAXPROCS", "error", err)
	}
	return slog.Default()
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Group photo sessions with a synchronized shutter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(composeCommand())
	rootCmd.AddCommand(shootCommand())

	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
