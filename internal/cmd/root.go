package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/vlist/internal/config"
	"github.com/charmbracelet/vlist/internal/log"
	"github.com/charmbracelet/vlist/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.Flags().BoolP("help", "h", false, "Help")
}

var rootCmd = &cobra.Command{
	Use:   "vlist",
	Short: "Virtualized lists of variable height items",
	Long: heredoc.Doc(`
		vlist renders long lists of items whose heights are only known once
		they are measured, keeping the item you are reading in place while
		heights change, items arrive at the bottom or history is loaded above.
	`),
	Example: heredoc.Doc(`
		# Run the interactive demo
		vlist

		# Replay a scenario file
		vlist simulate scenario.json

		# Run with debug logging in a specific directory
		vlist -d -c /path/to/project
	`),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd, demoOptions{Items: defaultDemoItems, Stream: true})
	},
}

func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version.Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// setupApp resolves the working directory, loads the configuration and
// routes logs to the data directory.
func setupApp(cmd *cobra.Command) (*config.Config, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	cwd, err := ResolveCwd(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cwd, debug)
	if err != nil {
		return nil, err
	}

	logFile := filepath.Join(cwd, cfg.Options.DataDirectory, "logs", "vlist.log")
	log.Setup(logFile, cfg.Options.Debug, cfg.Options.LogLevel)
	slog.Debug("Loaded configuration", "cwd", cwd, "debug", cfg.Options.Debug)
	return cfg, nil
}

func ResolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			return "", fmt.Errorf("failed to change directory: %v", err)
		}
		return cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %v", err)
	}
	return cwd, nil
}
