// Package tui is the interactive demo: a chat style transcript that streams
// into its last message while older history can be loaded above.
package tui

import (
	"fmt"
	"image/color"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/v2/help"
	"github.com/charmbracelet/bubbles/v2/key"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/vlist/internal/config"
	"github.com/charmbracelet/vlist/internal/tui/vlist"
	"github.com/charmbracelet/x/exp/charmtone"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	historyBatch   = 20
	streamInterval = 40 * time.Millisecond
	wordsPerReply  = 60
)

var lorem = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do
eiusmod tempor incididunt ut labore et dolore magna aliqua ut enim ad minim veniam
quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat`)

// Options configures the demo.
type Options struct {
	Items  int
	Stream bool
	Seed   uint64
}

type streamMsg struct{}

type appModel struct {
	cfg     *config.Config
	list    *vlist.Model
	keyMap  KeyMap
	help    help.Model
	rng     *rand.Rand
	printer *message.Printer

	width, height int

	streaming bool
	current   *vlist.TextItem
	words     int
	messages  int
	history   int
}

// New returns the demo program model.
func New(cfg *config.Config, opts Options) tea.Model {
	a := &appModel{
		cfg:       cfg,
		keyMap:    DefaultKeyMap(),
		help:      help.New(),
		rng:       rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		printer:   message.NewPrinter(language.English),
		streaming: opts.Stream,
	}
	items := make([]vlist.Item, 0, opts.Items)
	for range opts.Items {
		items = append(items, a.newMessage(a.sentence(4+a.rng.IntN(40))))
	}
	a.list = vlist.New(items, ListOptions(cfg)...)
	return a
}

// ListOptions maps the list configuration to component options.
func ListOptions(cfg *config.Config) []vlist.Option {
	l := cfg.List
	opts := []vlist.Option{
		vlist.WithEstimate(l.Estimate),
		vlist.WithHeightBounds(l.Bounds.Min, cfg.MaxHeight()),
		vlist.WithOverscan(l.Overscan.Top, l.Overscan.Bottom),
		vlist.WithTail(l.Tail.Count, l.Tail.MaxWindowSize),
		vlist.WithFrameInterval(time.Duration(l.FrameMillis) * time.Millisecond),
		vlist.WithEnableMouse(),
	}
	if follow := cfg.FollowConfig(); follow.Enabled {
		opts = append(opts, vlist.WithFollow(follow))
	}
	if l.ZeroHeights {
		opts = append(opts, vlist.WithZeroHeights())
	}
	return opts
}

var bubbleColors = []charmtone.Key{
	charmtone.Charple,
	charmtone.Dolly,
	charmtone.Guac,
	charmtone.Malibu,
	charmtone.Zest,
}

func messageStyle(border color.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(border).
		PaddingLeft(1).
		MarginBottom(1)
}

func (a *appModel) newMessage(text string) *vlist.TextItem {
	a.messages++
	style := messageStyle(bubbleColors[a.messages%len(bubbleColors)])
	return vlist.NewTextItem(uuid.NewString(), text).WithStyle(style)
}

// replyColor moves the border of a streaming reply from Charple to Dolly as
// it fills up.
func replyColor(progress float64) colorful.Color {
	from, _ := colorful.MakeColor(charmtone.Charple)
	to, _ := colorful.MakeColor(charmtone.Dolly)
	return from.BlendLab(to, min(1, max(0, progress))).Clamped()
}

func (a *appModel) sentence(words int) string {
	out := make([]string, words)
	for i := range out {
		out[i] = lorem[a.rng.IntN(len(lorem))]
	}
	return strings.Join(out, " ")
}

func (a *appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{a.list.Init()}
	if a.streaming {
		cmds = append(cmds, a.startReply(), streamTick())
	}
	return tea.Batch(cmds...)
}

func streamTick() tea.Cmd {
	return tea.Tick(streamInterval, func(time.Time) tea.Msg {
		return streamMsg{}
	})
}

// startReply appends an empty message that stream ticks grow.
func (a *appModel) startReply() tea.Cmd {
	a.current = a.newMessage(fmt.Sprintf("reply %d:", a.messages+1))
	a.words = 0
	return a.list.AppendItem(a.current)
}

func (a *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, a.list.SetSize(msg.Width, max(0, msg.Height-2))
	case streamMsg:
		if !a.streaming {
			return a, nil
		}
		var cmds []tea.Cmd
		if a.current == nil || a.words >= wordsPerReply {
			cmds = append(cmds, a.startReply())
		}
		a.current.AppendText(" " + lorem[a.rng.IntN(len(lorem))])
		a.words++
		a.current.WithStyle(messageStyle(replyColor(float64(a.words) / wordsPerReply)))
		cmds = append(cmds, a.list.UpdateItem(a.current.ID(), a.current), streamTick())
		return a, tea.Batch(cmds...)
	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, a.keyMap.Quit):
			a.list.Close()
			return a, tea.Quit
		case key.Matches(msg, a.keyMap.Prepend):
			return a, a.loadHistory()
		case key.Matches(msg, a.keyMap.Append):
			return a, a.list.AppendItem(a.newMessage(a.sentence(4+a.rng.IntN(40))))
		case key.Matches(msg, a.keyMap.Stream):
			a.streaming = !a.streaming
			if a.streaming {
				return a, streamTick()
			}
			return a, nil
		}
	}
	var cmd tea.Cmd
	a.list, cmd = a.list.Update(msg)
	return a, cmd
}

func (a *appModel) loadHistory() tea.Cmd {
	items := make([]vlist.Item, historyBatch)
	for i := range items {
		a.history++
		items[i] = a.newMessage(fmt.Sprintf("history %d: %s", a.history, a.sentence(4+a.rng.IntN(30))))
	}
	return a.list.PrependItems(items...)
}

func (a *appModel) header() string {
	title := lipgloss.NewStyle().Foreground(charmtone.Charple).Bold(true).Render("vlist")
	bindings := append(a.keyMap.ShortHelp(), a.list.KeyMap().ShortHelp()...)
	return title + "  " + a.help.ShortHelpView(bindings)
}

func (a *appModel) status() string {
	r := a.list.Range()
	stats := a.list.Stats()
	follow := "detached"
	if a.list.Following() {
		follow = "following"
	}
	text := a.printer.Sprintf("%d items · rendering %d..%d · row %d · %s · %d flushes · %d compensations · %d prepends",
		a.list.Len(), r.Start, r.End, a.list.Offset(), follow, stats.Flushes, stats.Compensations, stats.Prepends)
	return lipgloss.NewStyle().Foreground(charmtone.Oyster).Render(text)
}

func (a *appModel) View() tea.View {
	if a.width <= 0 || a.height <= 0 {
		return tea.NewView("")
	}
	return tea.NewView(lipgloss.JoinVertical(lipgloss.Left,
		a.header(),
		a.list.View(),
		a.status(),
	))
}
