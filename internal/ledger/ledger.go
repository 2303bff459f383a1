// Package ledger keeps per-item heights of a vertical list and answers
// prefix-sum queries over them in O(log n).
//
// Heights are either measured or estimated. Unmeasured slots contribute the
// ledger's estimate to every sum, so offsets are always defined even before
// an item has ever been rendered. The prefix sums live in a binary indexed
// (Fenwick) tree stored in a flat slice; every operation is index based.
//
// Counts beyond 2^31 items are not supported.
package ledger

import (
	"math"
	"math/bits"
	"slices"
)

// NotFound is returned by IndexForOffset on an empty ledger.
const NotFound = -1

// Ledger is a dynamic array of item heights with a prefix-sum index.
// It is not safe for concurrent use.
type Ledger struct {
	estimate float64
	min, max float64

	heights  []float64 // effective heights, len == count
	measured []bool
	tree     []float64 // 1-based fenwick tree, len == count+1

	measuredCount int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithBounds clamps every measured height into [min, max]. A negative min is
// raised to zero; a max below min is raised to min.
func WithBounds(min, max float64) Option {
	return func(l *Ledger) {
		if math.IsNaN(min) || min < 0 {
			min = 0
		}
		if math.IsNaN(max) || max < min {
			max = min
		}
		l.min = min
		l.max = max
	}
}

// New creates an empty ledger whose unmeasured slots count as estimate.
func New(estimate float64, opts ...Option) *Ledger {
	l := &Ledger{
		min:  0,
		max:  math.Inf(1),
		tree: make([]float64, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		estimate = l.min
	}
	l.estimate = l.clamp(estimate)
	return l
}

// Count returns the number of slots.
func (l *Ledger) Count() int {
	return len(l.heights)
}

// Estimate returns the height used for unmeasured slots.
func (l *Ledger) Estimate() float64 {
	return l.estimate
}

// MeasuredCount returns how many slots carry a measured height.
func (l *Ledger) MeasuredCount() int {
	return l.measuredCount
}

// Height returns the effective height of index, or 0 when out of range.
func (l *Ledger) Height(index int) float64 {
	if index < 0 || index >= len(l.heights) {
		return 0
	}
	return l.heights[index]
}

// Measured reports whether index carries a measured height.
func (l *Ledger) Measured(index int) bool {
	if index < 0 || index >= len(l.measured) {
		return false
	}
	return l.measured[index]
}

// SetCount resizes the ledger to n slots. Growing appends unmeasured slots and
// leaves existing prefix sums untouched; shrinking drops trailing slots along
// with their measurements.
func (l *Ledger) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	old := len(l.heights)
	switch {
	case n == old:
		return
	case n < old:
		for i := n; i < old; i++ {
			if l.measured[i] {
				l.measuredCount--
			}
		}
		l.heights = l.heights[:n]
		l.measured = l.measured[:n]
		// Node j only covers items <= j, so truncating the tree keeps it valid.
		l.tree = l.tree[:n+1]
	default:
		for j := old + 1; j <= n; j++ {
			l.heights = append(l.heights, l.estimate)
			l.measured = append(l.measured, false)
			l.tree = append(l.tree, l.estimate)
			// Node j sums its children j-1, j-2, j-4, ... below lowbit(j).
			low := j & -j
			for k := 1; k < low; k <<= 1 {
				l.tree[j] += l.tree[j-k]
			}
		}
	}
}

// SetHeight records a measured height for index. Out of range indices are
// ignored so late measurements of discarded items are harmless. NaN and
// infinite heights revert the slot to the estimate.
func (l *Ledger) SetHeight(index int, height float64) {
	if index < 0 || index >= len(l.heights) {
		return
	}
	if math.IsNaN(height) || math.IsInf(height, 0) {
		l.unmeasure(index)
		return
	}
	height = l.clamp(height)
	if l.measured[index] && l.heights[index] == height {
		return
	}
	if !l.measured[index] {
		l.measured[index] = true
		l.measuredCount++
	}
	delta := height - l.heights[index]
	l.heights[index] = height
	if delta != 0 {
		l.add(index, delta)
	}
}

func (l *Ledger) unmeasure(index int) {
	if !l.measured[index] {
		return
	}
	l.measured[index] = false
	l.measuredCount--
	delta := l.estimate - l.heights[index]
	l.heights[index] = l.estimate
	if delta != 0 {
		l.add(index, delta)
	}
}

// BulkInsert inserts len(heights) slots before position at, which must lie in
// [0, Count()]. NaN entries are inserted unmeasured. The tree is rebuilt in
// O(n).
func (l *Ledger) BulkInsert(at int, heights []float64) {
	if at < 0 || at > len(l.heights) || len(heights) == 0 {
		return
	}
	eff := make([]float64, len(heights))
	meas := make([]bool, len(heights))
	for i, h := range heights {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			eff[i] = l.estimate
			continue
		}
		eff[i] = l.clamp(h)
		meas[i] = true
		l.measuredCount++
	}
	l.heights = slices.Insert(l.heights, at, eff...)
	l.measured = slices.Insert(l.measured, at, meas...)
	l.rebuild()
}

// Invalidate marks every slot unmeasured, e.g. after a width change made all
// measurements stale.
func (l *Ledger) Invalidate() {
	for i := range l.heights {
		l.heights[i] = l.estimate
		l.measured[i] = false
	}
	l.measuredCount = 0
	l.rebuild()
}

// Query returns the sum of heights of items 0 through index inclusive.
func (l *Ledger) Query(index int) float64 {
	if index < 0 || len(l.heights) == 0 {
		return 0
	}
	if index >= len(l.heights) {
		index = len(l.heights) - 1
	}
	return l.prefix(index + 1)
}

// Total returns the sum of all effective heights.
func (l *Ledger) Total() float64 {
	return l.prefix(len(l.heights))
}

// OffsetForIndex returns the top edge of item index.
func (l *Ledger) OffsetForIndex(index int) float64 {
	return l.Query(index - 1)
}

// IndexForOffset returns the item that owns offset, i.e. the item i with
// OffsetForIndex(i) <= offset < OffsetForIndex(i+1), clamped into the list.
// It returns NotFound on an empty ledger.
func (l *Ledger) IndexForOffset(offset float64) int {
	n := len(l.heights)
	if n == 0 {
		return NotFound
	}
	if math.IsNaN(offset) {
		offset = 0
	}
	return min(l.UpperBound(offset), n-1)
}

// LowerBound returns the smallest index whose inclusive prefix sum is >= value,
// or Count() if there is none.
func (l *Ledger) LowerBound(value float64) int {
	return l.search(func(node, rem float64) bool { return node < rem }, value)
}

// UpperBound returns the smallest index whose inclusive prefix sum is > value,
// or Count() if there is none. Item i owns [Query(i-1), Query(i)), so this is
// the item containing a pixel offset.
func (l *Ledger) UpperBound(value float64) int {
	return l.search(func(node, rem float64) bool { return node <= rem }, value)
}

// search descends the tree by binary lifting, skipping whole nodes while
// skip(node, remaining) holds. The number of skipped items is the answer.
func (l *Ledger) search(skip func(node, rem float64) bool, value float64) int {
	n := len(l.heights)
	pos := 0
	rem := value
	for step := highestPow2(n); step > 0; step >>= 1 {
		next := pos + step
		if next <= n && skip(l.tree[next], rem) {
			pos = next
			rem -= l.tree[next]
		}
	}
	return pos
}

func (l *Ledger) prefix(j int) float64 {
	var sum float64
	for ; j > 0; j -= j & -j {
		sum += l.tree[j]
	}
	return sum
}

func (l *Ledger) add(index int, delta float64) {
	for j := index + 1; j < len(l.tree); j += j & -j {
		l.tree[j] += delta
	}
}

func (l *Ledger) rebuild() {
	n := len(l.heights)
	if cap(l.tree) >= n+1 {
		l.tree = l.tree[:n+1]
		clear(l.tree)
	} else {
		l.tree = make([]float64, n+1)
	}
	for i := 1; i <= n; i++ {
		l.tree[i] += l.heights[i-1]
		if parent := i + (i & -i); parent <= n {
			l.tree[parent] += l.tree[i]
		}
	}
}

func (l *Ledger) clamp(h float64) float64 {
	if h < l.min {
		return l.min
	}
	if h > l.max {
		return l.max
	}
	return h
}

func highestPow2(n int) int {
	if n <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(n)) - 1)
}
