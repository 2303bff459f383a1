// Package vlist is a bubbletea list that renders only the items in view.
// Items are measured by rendering them; heights it has not seen yet count as
// an estimate, and the scroll position stays anchored to the item on screen
// while measurements, prepends and resizes change the layout.
package vlist

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/v2/key"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/vlist/internal/anchor"
	"github.com/charmbracelet/vlist/internal/frame"
	"github.com/charmbracelet/vlist/internal/ledger"
	"github.com/charmbracelet/vlist/internal/viewport"
)

const (
	ItemNotFound              = -1
	ViewportDefaultScrollSize = 2
)

var lastID atomic.Int64

func nextID() int {
	return int(lastID.Add(1))
}

// flushMsg runs the height reports collected since the last frame.
type flushMsg struct {
	id int
}

type confOptions struct {
	width, height int
	estimate      float64
	minHeight     float64
	maxHeight     float64
	overscan      viewport.Overscan
	tail          viewport.TailConfig
	follow        *anchor.FollowConfig
	interval      time.Duration
	keyMap        KeyMap
	enableMouse   bool
	zeroHeights   bool
	ctx           context.Context
}

type Option func(*confOptions)

// WithSize sets the size of the list.
func WithSize(width, height int) Option {
	return func(c *confOptions) {
		c.width = width
		c.height = height
	}
}

// WithEstimate sets the height, in rows, of items not measured yet.
func WithEstimate(rows float64) Option {
	return func(c *confOptions) {
		c.estimate = rows
	}
}

// WithHeightBounds clamps measured heights into [min, max].
func WithHeightBounds(min, max float64) Option {
	return func(c *confOptions) {
		c.minHeight = min
		c.maxHeight = max
	}
}

// WithOverscan renders extra rows above and below the viewport.
func WithOverscan(top, bottom float64) Option {
	return func(c *confOptions) {
		c.overscan = viewport.Overscan{Top: top, Bottom: bottom}
	}
}

// WithTail keeps the last count items rendered once they come into view.
func WithTail(count, maxWindowSize int) Option {
	return func(c *confOptions) {
		c.tail = viewport.TailConfig{Count: count, MaxWindowSize: maxWindowSize}
	}
}

// WithFollow keeps the list pinned to the bottom as items arrive.
func WithFollow(cfg anchor.FollowConfig) Option {
	return func(c *confOptions) {
		c.follow = &cfg
	}
}

// WithFrameInterval sets how often collected measurements are applied.
func WithFrameInterval(d time.Duration) Option {
	return func(c *confOptions) {
		c.interval = d
	}
}

func WithKeyMap(keyMap KeyMap) Option {
	return func(c *confOptions) {
		c.keyMap = keyMap
	}
}

func WithEnableMouse() Option {
	return func(c *confOptions) {
		c.enableMouse = true
	}
}

// WithZeroHeights lets items that render to nothing take no rows. By
// default an empty item still occupies one row.
func WithZeroHeights() Option {
	return func(c *confOptions) {
		c.zeroHeights = true
	}
}

// WithContext bounds prepend measurements.
func WithContext(ctx context.Context) Option {
	return func(c *confOptions) {
		c.ctx = ctx
	}
}

// Model is the list component.
type Model struct {
	*confOptions

	id    int
	items []Item
	keys  []string
	index map[string]int

	ledger *ledger.Ledger
	engine *viewport.Engine
	proto  *anchor.Protocol
	scroll *scroller
	sched  *frame.Manual
	cache  *renderCache

	ticking bool
}

// New creates a list of items.
func New(items []Item, opts ...Option) *Model {
	conf := &confOptions{
		estimate:  1,
		maxHeight: math.Inf(1),
		interval:  frame.DefaultInterval,
		keyMap:    DefaultKeyMap(),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(conf)
	}

	m := &Model{
		confOptions: conf,
		id:          nextID(),
		sched:       frame.NewManual(),
		cache:       newRenderCache(),
	}
	m.setItems(items)

	m.ledger = ledger.New(conf.estimate, ledger.WithBounds(conf.minHeight, conf.maxHeight))
	m.ledger.SetCount(len(items))
	m.engine = viewport.New(m.ledger,
		viewport.WithOverscan(conf.overscan.Top, conf.overscan.Bottom),
		viewport.WithTail(conf.tail.Count, conf.tail.MaxWindowSize),
	)
	m.scroll = &scroller{ledger: m.ledger, extent: float64(conf.height)}

	protoOpts := []anchor.Option{anchor.WithMeasurer(anchor.MeasurerFunc(m.measure))}
	if conf.follow != nil {
		protoOpts = append(protoOpts, anchor.WithFollow(*conf.follow))
	}
	if conf.zeroHeights {
		protoOpts = append(protoOpts, anchor.WithZeroHeights())
	}
	m.proto = anchor.New(m.engine, m.scroll, m.sched, protoOpts...)
	return m
}

func (m *Model) setItems(items []Item) {
	m.items = items
	m.keys = make([]string, len(items))
	m.index = make(map[string]int, len(items))
	for inx, item := range items {
		m.keys[inx] = item.ID()
		m.index[item.ID()] = inx
	}
}

// measure renders items off screen. It backs prepends, whose items have to
// be measured before they are inserted above the viewport.
func (m *Model) measure(ctx context.Context, keys []string) ([]float64, error) {
	heights := make([]float64, len(keys))
	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inx, ok := m.index[k]
		if !ok {
			heights[i] = math.NaN()
			continue
		}
		heights[i] = float64(m.rows(m.cache.render(m.items[inx], m.width)))
	}
	return heights, nil
}

// rows is the height of a rendered item.
func (m *Model) rows(view string) int {
	if view == "" && m.zeroHeights {
		return 0
	}
	return strings.Count(view, "\n") + 1
}

// Init measures the items in view.
func (m *Model) Init() tea.Cmd {
	return m.sync()
}

// Update handles frame ticks, keys and mouse input.
func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	switch msg := msg.(type) {
	case flushMsg:
		if msg.id != m.id {
			return m, nil
		}
		m.ticking = false
		m.sched.Tick()
		return m, m.sync()
	case tea.MouseWheelMsg:
		if m.enableMouse {
			return m, m.handleMouseWheel(msg)
		}
		return m, nil
	case tea.MouseClickMsg:
		if m.enableMouse {
			m.proto.BeginGesture()
		}
		return m, nil
	case tea.MouseReleaseMsg:
		if m.enableMouse {
			m.proto.EndGesture()
			return m, m.sync()
		}
		return m, nil
	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, m.keyMap.LineDown):
			return m, m.ScrollBy(1)
		case key.Matches(msg, m.keyMap.LineUp):
			return m, m.ScrollBy(-1)
		case key.Matches(msg, m.keyMap.NextItem):
			return m, m.NextItem()
		case key.Matches(msg, m.keyMap.PrevItem):
			return m, m.PrevItem()
		case key.Matches(msg, m.keyMap.HalfPageDown):
			return m, m.ScrollBy(m.height / 2)
		case key.Matches(msg, m.keyMap.HalfPageUp):
			return m, m.ScrollBy(-m.height / 2)
		case key.Matches(msg, m.keyMap.PageDown):
			return m, m.ScrollBy(m.height)
		case key.Matches(msg, m.keyMap.PageUp):
			return m, m.ScrollBy(-m.height)
		case key.Matches(msg, m.keyMap.Bottom):
			return m, m.GoToBottom()
		case key.Matches(msg, m.keyMap.Top):
			return m, m.GoToTop()
		}
	}
	return m, nil
}

func (m *Model) handleMouseWheel(msg tea.MouseWheelMsg) tea.Cmd {
	var cmd tea.Cmd
	switch msg.Button {
	case tea.MouseWheelDown:
		cmd = m.ScrollBy(ViewportDefaultScrollSize)
	case tea.MouseWheelUp:
		cmd = m.ScrollBy(-ViewportDefaultScrollSize)
	}
	return cmd
}

// sync reports the heights of the rendered items and schedules the next
// frame when reports are pending.
func (m *Model) sync() tea.Cmd {
	if m.width <= 0 || m.height <= 0 || m.proto.Closed() {
		return nil
	}
	r := m.proto.Range()
	for i := r.Start; i <= r.End; i++ {
		h := float64(m.rows(m.cache.render(m.items[i], m.width)))
		if !m.ledger.Measured(i) || m.ledger.Height(i) != h {
			m.proto.ReportHeight(i, h)
		}
	}
	if m.sched.Pending() == 0 || m.ticking {
		return nil
	}
	m.ticking = true
	id := m.id
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return flushMsg{id: id}
	})
}

// View renders the visible rows.
func (m *Model) View() string {
	if m.height <= 0 || m.width <= 0 {
		return ""
	}
	r := m.proto.Range()
	top := m.scroll.row()
	row := int(math.Round(r.OffsetY))
	lines := make([]string, 0, m.height)
	for i := r.Start; i <= r.End && len(lines) < m.height; i++ {
		view := m.cache.render(m.items[i], m.width)
		if m.rows(view) == 0 {
			continue
		}
		for _, line := range strings.Split(view, "\n") {
			if row >= top && len(lines) < m.height {
				lines = append(lines, line)
			}
			row++
		}
	}
	for len(lines) < m.height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// SetSize resizes the list. A new width invalidates every measurement.
func (m *Model) SetSize(width, height int) tea.Cmd {
	oldWidth, oldHeight := m.width, m.height
	m.width = width
	m.height = height
	if oldWidth != width {
		m.cache.clear()
		m.proto.Invalidate()
	}
	if oldHeight != height {
		m.scroll.extent = float64(height)
		m.proto.HandleResize()
	}
	return m.sync()
}

func (m *Model) GetSize() (int, int) {
	return m.width, m.height
}

// ScrollBy moves the viewport by n rows.
func (m *Model) ScrollBy(n int) tea.Cmd {
	return m.scrollTo(m.scroll.offset + float64(n))
}

func (m *Model) scrollTo(offset float64) tea.Cmd {
	before := m.scroll.offset
	m.scroll.SetOffset(offset)
	if m.scroll.offset == before {
		return nil
	}
	m.proto.HandleScroll()
	return m.sync()
}

// NextItem scrolls the next item to the top of the viewport.
func (m *Model) NextItem() tea.Cmd {
	inx := m.ledger.IndexForOffset(m.scroll.offset)
	if inx == ledger.NotFound || inx+1 >= m.ledger.Count() {
		return nil
	}
	return m.scrollTo(m.ledger.OffsetForIndex(inx + 1))
}

// PrevItem scrolls to the top of the item at the top of the viewport, or of
// the one above when that item is already aligned.
func (m *Model) PrevItem() tea.Cmd {
	inx := m.ledger.IndexForOffset(m.scroll.offset)
	if inx == ledger.NotFound {
		return nil
	}
	if m.ledger.OffsetForIndex(inx) == m.scroll.offset {
		inx = max(0, inx-1)
	}
	return m.scrollTo(m.ledger.OffsetForIndex(inx))
}

func (m *Model) GoToTop() tea.Cmd {
	return m.scrollTo(0)
}

// GoToBottom scrolls to the end and follows it when following is enabled.
func (m *Model) GoToBottom() tea.Cmd {
	m.proto.ScrollToBottom()
	return m.sync()
}

// SetItems replaces the items. A prepend keeps the viewport on the items it
// showed; appended items extend the list; anything else drops the measured
// heights.
func (m *Model) SetItems(items []Item) tea.Cmd {
	oldKeys := m.keys
	m.setItems(items)
	newKeys := m.keys

	structural := anchor.DetectPrependWithAppend(oldKeys, newKeys) == 0 && !isPrefix(oldKeys, newKeys)
	if err := m.proto.Reconcile(m.ctx, oldKeys, newKeys); err != nil {
		slog.Warn("Failed to reconcile list items", "error", err)
		m.proto.SetCount(len(newKeys))
		structural = true
	}
	if structural {
		m.proto.Invalidate()
	}
	m.settleOffset()
	return m.sync()
}

func isPrefix(old, next []string) bool {
	return len(old) <= len(next) && slices.Equal(next[:len(old)], old)
}

// settleOffset pulls the offset back into range after the list shrank.
func (m *Model) settleOffset() {
	if m.scroll.offset <= m.scroll.maxOffset() {
		return
	}
	m.scroll.SetOffset(m.scroll.offset)
	m.proto.HandleScroll()
}

func (m *Model) AppendItem(item Item) tea.Cmd {
	return m.SetItems(append(m.Items(), item))
}

// PrependItems inserts items at the top without moving the content on screen.
func (m *Model) PrependItems(items ...Item) tea.Cmd {
	if len(items) == 0 {
		return nil
	}
	next := make([]Item, 0, len(items)+len(m.items))
	next = append(next, items...)
	next = append(next, m.items...)
	return m.SetItems(next)
}

// UpdateItem replaces the item with the given id. An item outside the
// rendered range goes back to the estimate until it is rendered again.
func (m *Model) UpdateItem(id string, item Item) tea.Cmd {
	inx, ok := m.index[id]
	if !ok {
		return nil
	}
	m.items[inx] = item
	if item.ID() != id {
		delete(m.index, id)
		m.keys[inx] = item.ID()
		m.index[item.ID()] = inx
	}
	m.cache.drop(id)
	if r := m.proto.Range(); !r.Contains(inx) {
		m.proto.SetHeight(inx, math.NaN())
	}
	return m.sync()
}

func (m *Model) DeleteItem(id string) tea.Cmd {
	inx, ok := m.index[id]
	if !ok {
		return nil
	}
	next := make([]Item, 0, len(m.items)-1)
	next = append(next, m.items[:inx]...)
	next = append(next, m.items[inx+1:]...)
	m.cache.drop(id)
	return m.SetItems(next)
}

// Items returns a copy of the items.
func (m *Model) Items() []Item {
	return append([]Item(nil), m.items...)
}

func (m *Model) Len() int {
	return len(m.items)
}

// IndexOf returns the position of id or ItemNotFound.
func (m *Model) IndexOf(id string) int {
	if inx, ok := m.index[id]; ok {
		return inx
	}
	return ItemNotFound
}

// Range returns the items currently rendered.
func (m *Model) Range() viewport.Range {
	return m.proto.Range()
}

// Offset returns the scroll offset in rows.
func (m *Model) Offset() int {
	return m.scroll.row()
}

// Following reports whether the list is pinned to the bottom.
func (m *Model) Following() bool {
	return m.follow != nil && m.proto.Follower().Following()
}

func (m *Model) Stats() anchor.Stats {
	return m.proto.Stats()
}

// KeyMap returns the bindings the list responds to.
func (m *Model) KeyMap() KeyMap {
	return m.keyMap
}

// Pending reports whether collected measurements wait for the next frame.
func (m *Model) Pending() bool {
	return m.sched.Pending() > 0
}

// Close stops the list. Pending measurements are discarded.
func (m *Model) Close() {
	m.proto.Close()
}
