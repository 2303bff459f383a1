package vlist

import (
	"math"

	"github.com/charmbracelet/vlist/internal/ledger"
)

// scroller is the scroll container of the list. Offsets are clamped to the
// scrollable extent of the ledger.
type scroller struct {
	ledger *ledger.Ledger
	offset float64
	extent float64
}

func (s *scroller) ScrollOffset() float64 {
	return s.offset
}

func (s *scroller) ViewportExtent() float64 {
	return s.extent
}

func (s *scroller) AddOffset(delta float64) {
	s.SetOffset(s.offset + delta)
}

func (s *scroller) SetOffset(offset float64) {
	s.offset = s.clamp(offset)
}

func (s *scroller) maxOffset() float64 {
	return max(0, s.ledger.Total()-s.extent)
}

func (s *scroller) clamp(offset float64) float64 {
	if math.IsNaN(offset) {
		return 0
	}
	return max(0, min(offset, s.maxOffset()))
}

func (s *scroller) row() int {
	return int(math.Round(s.offset))
}
