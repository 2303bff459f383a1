package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/charmbracelet/vlist/internal/scenario"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <file>",
	Short: "Replay a scenario and print what the viewport shows",
	Long: heredoc.Doc(`
		Replay the steps of a JSON scenario against the list core without a
		terminal. A line is printed for every tick and range step.
	`),
	Example: heredoc.Doc(`
		# Print the transcript
		vlist simulate testdata/prepend.json

		# Print it as JSON and replay again whenever the file changes
		vlist simulate --format json --watch testdata/prepend.json

		# Replay on a live frame loop at the configured frame rate
		vlist simulate --realtime testdata/prepend.json
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setupApp(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		watch, _ := cmd.Flags().GetBool("watch")
		var interval time.Duration
		if realtime, _ := cmd.Flags().GetBool("realtime"); realtime {
			interval = time.Duration(cfg.List.FrameMillis) * time.Millisecond
		}

		ctx := cmd.Context()
		path := args[0]
		out := cmd.OutOrStdout()
		if err := simulate(ctx, out, path, format, interval); err != nil {
			if !watch {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		if !watch {
			return nil
		}
		return watchScenario(ctx, path, func() {
			if err := simulate(ctx, out, path, format, interval); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringP("format", "f", "text", "Output format (text, json, yaml)")
	simulateCmd.Flags().BoolP("watch", "w", false, "Replay whenever the file changes")
	simulateCmd.Flags().BoolP("realtime", "r", false, "Replay on a frame loop instead of flushing at tick steps")
}

// simulate replays the scenario at path. A positive interval runs it on a
// frame loop ticking at that rate.
func simulate(ctx context.Context, w io.Writer, path, format string, interval time.Duration) error {
	s, err := scenario.Load(path)
	if err != nil {
		return err
	}
	var t scenario.Transcript
	if interval > 0 {
		t, err = scenario.RunRealtime(ctx, s, interval)
	} else {
		t, err = scenario.Run(s)
	}
	if err != nil {
		return fmt.Errorf("failed to run scenario: %w", err)
	}
	return writeTranscript(w, t, format)
}

func writeTranscript(w io.Writer, t scenario.Transcript, format string) error {
	switch format {
	case "text":
		return t.WriteText(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(t)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// watchScenario calls run each time path is written until ctx is done.
// Editors often replace files on save, so the parent directory is watched.
func watchScenario(ctx context.Context, path string, run func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	slog.Debug("Watching scenario", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Debug("Scenario changed", "path", abs, "op", event.Op.String())
				run()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "error", err)
		}
	}
}
