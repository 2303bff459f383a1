// Package viewport computes which slice of a virtualized list has to be
// rendered for a given scroll position.
package viewport

import (
	"math"

	"github.com/charmbracelet/vlist/internal/ledger"
)

// Range is the contiguous window of items to render. End is inclusive and is
// -1 when the list is empty.
type Range struct {
	Start       int
	End         int
	OffsetY     float64 // top edge of Start
	TotalHeight float64
}

// Len returns the number of items in the range.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Empty reports whether the range holds no items.
func (r Range) Empty() bool {
	return r.Len() == 0
}

// Contains reports whether index is inside the range.
func (r Range) Contains(index int) bool {
	return index >= r.Start && index <= r.End
}

// Overscan is the extra extent rendered beyond each edge of the viewport.
type Overscan struct {
	Top, Bottom float64
}

// TailConfig keeps the last Count items in the window once the overscanned
// viewport reaches them. MaxWindowSize, when positive, caps the window; items
// are dropped from the top, never from the tail.
type TailConfig struct {
	Count         int
	MaxWindowSize int
}

// Engine maps scroll state to a Range. It holds no scroll state itself, every
// call is a pure function of the ledger and its arguments.
type Engine struct {
	ledger   *ledger.Ledger
	overscan Overscan
	tail     TailConfig
}

type Option func(*Engine)

// WithOverscan sets the top and bottom overscan.
func WithOverscan(top, bottom float64) Option {
	return func(e *Engine) {
		e.UpdateOverscan(top, bottom)
	}
}

// WithTail enables the tail window rule.
func WithTail(count, maxWindowSize int) Option {
	return func(e *Engine) {
		e.UpdateTailConfig(TailConfig{Count: count, MaxWindowSize: maxWindowSize})
	}
}

// New creates an engine over l.
func New(l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{ledger: l}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the ledger the engine reads from.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// UpdateOverscan replaces the overscan. Negative or NaN values become 0.
func (e *Engine) UpdateOverscan(top, bottom float64) {
	e.overscan = Overscan{Top: nonNegative(top), Bottom: nonNegative(bottom)}
}

// Overscan returns the current overscan.
func (e *Engine) Overscan() Overscan {
	return e.overscan
}

// UpdateTailConfig replaces the tail window policy.
func (e *Engine) UpdateTailConfig(tc TailConfig) {
	tc.Count = max(tc.Count, 0)
	tc.MaxWindowSize = max(tc.MaxWindowSize, 0)
	e.tail = tc
}

// TailConfig returns the current tail window policy.
func (e *Engine) TailConfig() TailConfig {
	return e.tail
}

// OffsetForIndex returns the top edge of item index.
func (e *Engine) OffsetForIndex(index int) float64 {
	return e.ledger.OffsetForIndex(index)
}

// TotalHeight returns the height of all items.
func (e *Engine) TotalHeight() float64 {
	return e.ledger.Total()
}

// IndexForOffset returns the item containing offset.
func (e *Engine) IndexForOffset(offset float64) int {
	return e.ledger.IndexForOffset(offset)
}

// ComputeRange returns the items to render for a viewport of extent starting
// at scrollOffset.
func (e *Engine) ComputeRange(scrollOffset, extent float64) Range {
	count := e.ledger.Count()
	if count == 0 {
		return Range{Start: 0, End: -1}
	}
	scrollOffset = nonNegative(scrollOffset)
	extent = nonNegative(extent)
	total := e.ledger.Total()

	visibleStart := max(0, scrollOffset-e.overscan.Top)
	visibleEnd := min(total, scrollOffset+extent+e.overscan.Bottom)

	start := e.ledger.IndexForOffset(visibleStart)
	end := e.ledger.IndexForOffset(visibleEnd)

	if e.tail.Count > 0 {
		tailStart := max(0, count-e.tail.Count)
		if visibleEnd >= e.ledger.OffsetForIndex(tailStart) {
			end = count - 1
			start = min(start, tailStart)
			if e.tail.MaxWindowSize > 0 && end-start+1 > e.tail.MaxWindowSize {
				start = end - e.tail.MaxWindowSize + 1
			}
		}
	}

	end = clamp(end, 0, count-1)
	start = clamp(start, 0, end)

	return Range{
		Start:       start,
		End:         end,
		OffsetY:     e.ledger.OffsetForIndex(start),
		TotalHeight: total,
	}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
