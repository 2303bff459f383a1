package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MakeNowJust/heredoc"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/vlist/internal/log"
	"github.com/charmbracelet/vlist/internal/tui"
	"github.com/spf13/cobra"
)

const defaultDemoItems = 200

type demoOptions struct {
	Items  int
	Stream bool
	Seed   uint64
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the interactive list demo",
	Long: heredoc.Doc(`
		Open a chat style transcript in the terminal. Items are measured as they
		scroll into view, the last message grows while streaming and older
		history is loaded above without moving what you are reading.
	`),
	Example: heredoc.Doc(`
		# A long transcript without streaming
		vlist demo --items 100000 --stream=false
	`),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, _ := cmd.Flags().GetInt("items")
		stream, _ := cmd.Flags().GetBool("stream")
		seed, _ := cmd.Flags().GetUint64("seed")
		return runDemo(cmd, demoOptions{Items: items, Stream: stream, Seed: seed})
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().IntP("items", "n", defaultDemoItems, "Number of initial items")
	demoCmd.Flags().Bool("stream", true, "Stream text into the last item")
	demoCmd.Flags().Uint64("seed", 1, "Seed for the generated text")
}

func runDemo(cmd *cobra.Command, opts demoOptions) error {
	if opts.Items < 0 {
		return fmt.Errorf("items must not be negative, got %d", opts.Items)
	}
	cfg, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer log.RecoverPanic("demo", nil)

	program := tea.NewProgram(
		tui.New(cfg, tui.Options{Items: opts.Items, Stream: opts.Stream, Seed: opts.Seed}),
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithMouseCellMotion(),
	)
	if _, err := program.Run(); err != nil {
		slog.Error("TUI run error", "error", err)
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
