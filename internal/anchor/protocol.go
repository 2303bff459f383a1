// Package anchor batches height reports and structural changes of a
// virtualized list, applies them to the ledger once per scheduler tick and
// moves the scroll position so the item at the top of the rendered range
// keeps its place on screen.
//
// A Protocol is single threaded: every method must be called from the
// thread that owns the list, which is also the thread the Scheduler runs
// flushes on. The only exception is Close, which may race with a Measurer
// that is still working on a prepend batch.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/charmbracelet/vlist/internal/ledger"
	"github.com/charmbracelet/vlist/internal/viewport"
)

// ErrClosed is returned by operations on a closed protocol.
var ErrClosed = errors.New("anchor: protocol closed")

// bottomEpsilon is the distance from the bottom that still counts as being
// at the bottom.
const bottomEpsilon = 0.5

// State is the batching state of a Protocol.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Stats counts what the protocol has done since it was created.
type Stats struct {
	Reports       int     `json:"reports"`
	Coalesced     int     `json:"coalesced"`
	Flushes       int     `json:"flushes"`
	Compensations int     `json:"compensations"`
	Compensated   float64 `json:"compensated"`
	Prepends      int     `json:"prepends"`
	Snaps         int     `json:"snaps"`
}

// Protocol is the mutation protocol of one list.
type Protocol struct {
	engine   *viewport.Engine
	ledger   *ledger.Ledger
	scroll   ScrollPort
	sched    Scheduler
	measurer Measurer

	follow      FollowConfig
	follower    *Follower
	zeroHeights bool
	onRange     func(viewport.Range)

	pending   map[int]float64
	handle    Handle
	scheduled bool
	state     State
	rng       viewport.Range

	gesturing bool
	deferred  float64
	// snapHeld is set when the bottom snap is owed once the gesture ends.
	snapHeld bool

	// lastOffset is the scroll offset as of the last time the protocol moved
	// it or observed it; anything else is user movement.
	lastOffset float64
	atBottom   bool

	alive atomic.Bool
	stats Stats
}

type Option func(*Protocol)

// WithMeasurer routes prepend batches through m before insertion.
func WithMeasurer(m Measurer) Option {
	return func(p *Protocol) {
		p.measurer = m
	}
}

// WithFollow enables follow-bottom behaviour.
func WithFollow(cfg FollowConfig) Option {
	return func(p *Protocol) {
		p.follow = cfg
	}
}

// WithZeroHeights accepts zero height reports. By default they are dropped as
// render artifacts of detached or hidden items.
func WithZeroHeights() Option {
	return func(p *Protocol) {
		p.zeroHeights = true
	}
}

// WithRangeListener calls fn with every recomputed range.
func WithRangeListener(fn func(viewport.Range)) Option {
	return func(p *Protocol) {
		p.onRange = fn
	}
}

// New creates a protocol for the list indexed by engine, scrolled by scroll
// and flushed by sched.
func New(engine *viewport.Engine, scroll ScrollPort, sched Scheduler, opts ...Option) *Protocol {
	p := &Protocol{
		engine:  engine,
		ledger:  engine.Ledger(),
		scroll:  scroll,
		sched:   sched,
		pending: make(map[int]float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.follower = NewFollower(p.follow)
	p.alive.Store(true)
	p.lastOffset = scroll.ScrollOffset()
	p.updateBottom()
	p.recompute()
	return p
}

// Engine returns the range engine.
func (p *Protocol) Engine() *viewport.Engine {
	return p.engine
}

// Range returns the last computed range.
func (p *Protocol) Range() viewport.Range {
	return p.rng
}

// State returns the batching state.
func (p *Protocol) State() State {
	return p.state
}

// Stats returns the accumulated counters.
func (p *Protocol) Stats() Stats {
	return p.stats
}

// Pending returns the number of buffered height reports.
func (p *Protocol) Pending() int {
	return len(p.pending)
}

// Follower returns the follow-bottom state machine.
func (p *Protocol) Follower() *Follower {
	return p.follower
}

// Gesturing reports whether a user gesture is in progress.
func (p *Protocol) Gesturing() bool {
	return p.gesturing
}

// DeferredDelta returns the compensation held back by the current gesture.
func (p *Protocol) DeferredDelta() float64 {
	return p.deferred
}

// ReportHeight queues a measured extent for index. Reports for the same index
// within one tick coalesce to the latest value. Invalid extents and indices
// outside the list are dropped.
func (p *Protocol) ReportHeight(index int, extent float64) {
	if !p.alive.Load() {
		return
	}
	if index < 0 || index >= p.ledger.Count() || !p.validExtent(extent) {
		return
	}
	if _, ok := p.pending[index]; ok {
		p.stats.Coalesced++
	}
	p.pending[index] = extent
	p.stats.Reports++
	if p.state == StateIdle {
		p.state = StateAccumulating
	}
	p.schedule()
}

func (p *Protocol) validExtent(extent float64) bool {
	if math.IsNaN(extent) || math.IsInf(extent, 0) || extent < 0 {
		return false
	}
	return extent > 0 || p.zeroHeights
}

func (p *Protocol) schedule() {
	if p.scheduled {
		return
	}
	p.scheduled = true
	p.handle = p.sched.ScheduleFlush(p.Flush)
}

func (p *Protocol) unschedule() {
	if !p.scheduled {
		return
	}
	p.sched.Cancel(p.handle)
	p.scheduled = false
	p.handle = 0
}

// Flush applies every pending height report, compensates the scroll offset
// for the anchor item and recomputes the range. It is what the scheduler
// runs; calling it directly flushes early.
func (p *Protocol) Flush() {
	if !p.alive.Load() {
		return
	}
	p.unschedule()
	if len(p.pending) == 0 {
		p.state = StateIdle
		return
	}

	p.state = StateFlushing
	batch := p.pending
	p.pending = make(map[int]float64, len(batch))

	wasAtBottom := p.atBottom && p.scroll.ScrollOffset() == p.lastOffset

	anchor := p.rng.Start
	before := p.ledger.OffsetForIndex(anchor)
	for index, h := range batch {
		p.ledger.SetHeight(index, h)
	}
	delta := p.ledger.OffsetForIndex(anchor) - before
	if delta != 0 {
		p.compensate(delta)
	}

	snapped := p.followAfterFlush(wasAtBottom)
	p.updateBottom()
	p.recompute()
	p.stats.Flushes++

	slog.Debug("Flushed height reports",
		"reports", len(batch),
		"anchor", anchor,
		"delta", delta,
		"deferred", p.deferred,
		"snapped", snapped,
	)

	// Reports arriving from the range listener start the next batch.
	if len(p.pending) > 0 {
		p.state = StateAccumulating
	} else {
		p.state = StateIdle
	}
}

func (p *Protocol) compensate(delta float64) {
	if p.gesturing {
		p.deferred += delta
		return
	}
	p.moveBy(delta)
}

// moveBy shifts the scroll offset by delta. The container may clamp, so the
// counters record the movement actually applied.
func (p *Protocol) moveBy(delta float64) {
	before := p.scroll.ScrollOffset()
	p.scroll.AddOffset(delta)
	p.lastOffset = p.scroll.ScrollOffset()
	p.stats.Compensations++
	p.stats.Compensated += p.lastOffset - before
}

func (p *Protocol) followAfterFlush(wasAtBottom bool) bool {
	if !p.follow.Enabled || !p.follower.Following() {
		return false
	}
	if p.distanceToBottom() > p.follow.Threshold && !wasAtBottom {
		return false
	}
	if p.gesturing {
		p.snapHeld = true
		return false
	}
	return p.snapToBottom()
}

func (p *Protocol) snapToBottom() bool {
	target := max(0, p.ledger.Total()-p.scroll.ViewportExtent())
	if p.scroll.ScrollOffset() == target {
		return false
	}
	p.scroll.SetOffset(target)
	p.lastOffset = p.scroll.ScrollOffset()
	p.stats.Snaps++
	return true
}

func (p *Protocol) distanceToBottom() float64 {
	return p.ledger.Total() - (p.scroll.ScrollOffset() + p.scroll.ViewportExtent())
}

func (p *Protocol) updateBottom() {
	p.atBottom = p.distanceToBottom() <= bottomEpsilon
}

func (p *Protocol) recompute() {
	p.rng = p.engine.ComputeRange(p.scroll.ScrollOffset(), p.scroll.ViewportExtent())
	if p.onRange != nil {
		p.onRange(p.rng)
	}
}

// Recompute recalculates the range from the current scroll state without
// touching the ledger.
func (p *Protocol) Recompute() viewport.Range {
	if p.alive.Load() {
		p.recompute()
	}
	return p.rng
}

// HandleScroll tells the protocol the scroll offset changed. Movement the
// protocol caused itself is not counted as user movement.
func (p *Protocol) HandleScroll() {
	if !p.alive.Load() {
		return
	}
	offset := p.scroll.ScrollOffset()
	movement := offset - p.lastOffset
	p.lastOffset = offset
	if p.follow.Enabled && movement != 0 {
		p.follower.Observe(movement, p.distanceToBottom())
	}
	p.updateBottom()
	p.recompute()
}

// HandleResize tells the protocol the viewport extent changed. Offsets above
// the anchor do not depend on the extent, so only a list following the
// bottom needs to move.
func (p *Protocol) HandleResize() {
	if !p.alive.Load() {
		return
	}
	if p.follow.Enabled && p.follower.Following() && p.atBottom {
		p.snapToBottom()
	}
	p.updateBottom()
	p.recompute()
}

// ScrollToBottom moves to the end of the list and locks to it.
func (p *Protocol) ScrollToBottom() {
	if !p.alive.Load() {
		return
	}
	p.follower.Reattach()
	p.snapToBottom()
	p.updateBottom()
	p.recompute()
}

// BeginGesture holds back scroll compensation and the bottom snap until
// EndGesture, so a drag or touch scroll in progress is not fought.
func (p *Protocol) BeginGesture() {
	if p.gesturing {
		return
	}
	p.gesturing = true
	p.snapHeld = p.atBottom && p.scroll.ScrollOffset() == p.lastOffset
}

// EndGesture applies the compensation deferred during the gesture in full.
// A list that was at the bottom when the gesture began, and is still
// following, is snapped back to the bottom.
func (p *Protocol) EndGesture() {
	if !p.gesturing {
		return
	}
	p.gesturing = false
	snap := p.snapHeld
	p.snapHeld = false
	if !p.alive.Load() {
		return
	}
	if p.deferred != 0 {
		delta := p.deferred
		p.deferred = 0
		p.moveBy(delta)
		slog.Debug("Applied deferred compensation", "delta", delta)
	}
	if snap && p.follow.Enabled && p.follower.Following() {
		p.snapToBottom()
	}
	p.updateBottom()
	p.recompute()
}

// SetCount resizes the list. Pending reports for removed indices are dropped.
// Growth while following the bottom keeps the newest content in view.
func (p *Protocol) SetCount(n int) {
	if !p.alive.Load() {
		return
	}
	wasAtBottom := p.atBottom && p.scroll.ScrollOffset() == p.lastOffset
	old := p.ledger.Count()
	p.ledger.SetCount(n)
	for index := range p.pending {
		if index >= p.ledger.Count() {
			delete(p.pending, index)
		}
	}
	p.settlePending()
	if p.ledger.Count() > old && wasAtBottom && p.follow.Enabled && p.follower.Following() {
		p.snapToBottom()
	}
	p.updateBottom()
	p.recompute()
}

// SetHeight writes a height straight into the ledger, bypassing the batch,
// and compensates like a flush would.
func (p *Protocol) SetHeight(index int, height float64) {
	if !p.alive.Load() {
		return
	}
	delete(p.pending, index)
	p.settlePending()
	anchor := p.rng.Start
	before := p.ledger.OffsetForIndex(anchor)
	p.ledger.SetHeight(index, height)
	if delta := p.ledger.OffsetForIndex(anchor) - before; delta != 0 {
		p.compensate(delta)
	}
	p.updateBottom()
	p.recompute()
}

// BulkInsert inserts slots at position at. When the insertion lands at or
// above the anchor item the scroll offset moves by the inserted height in the
// same call, gesture or not, so the content on screen does not jump.
func (p *Protocol) BulkInsert(at int, heights []float64) {
	if !p.alive.Load() {
		return
	}
	old := p.ledger.Count()
	if at < 0 || at > old || len(heights) == 0 {
		return
	}

	anchor := p.rng.Start
	before := p.ledger.OffsetForIndex(anchor)

	p.ledger.BulkInsert(at, heights)
	p.shiftPending(at, len(heights))

	if old > 0 && at <= anchor {
		if delta := p.ledger.OffsetForIndex(anchor+len(heights)) - before; delta != 0 {
			p.moveBy(delta)
		}
	}
	p.updateBottom()
	p.recompute()
}

func (p *Protocol) shiftPending(at, n int) {
	if len(p.pending) == 0 {
		return
	}
	shifted := make(map[int]float64, len(p.pending))
	for index, h := range p.pending {
		if index >= at {
			index += n
		}
		shifted[index] = h
	}
	p.pending = shifted
}

func (p *Protocol) settlePending() {
	if len(p.pending) > 0 || p.state == StateFlushing {
		return
	}
	p.unschedule()
	p.state = StateIdle
}

// Invalidate forgets every measurement, keeping the anchor item in place.
// Use it when all heights went stale at once, e.g. on a width change.
func (p *Protocol) Invalidate() {
	if !p.alive.Load() {
		return
	}
	clear(p.pending)
	p.settlePending()
	anchor := p.rng.Start
	before := p.ledger.OffsetForIndex(anchor)
	p.ledger.Invalidate()
	if delta := p.ledger.OffsetForIndex(anchor) - before; delta != 0 {
		p.moveBy(delta)
	}
	p.updateBottom()
	p.recompute()
}

// InsertPrepended inserts already measured items at the front of the list
// and compensates the scroll offset by their height in the same call. NaN
// entries are inserted unmeasured.
func (p *Protocol) InsertPrepended(heights []float64) {
	if !p.alive.Load() || len(heights) == 0 {
		return
	}
	p.BulkInsert(0, heights)
	p.stats.Prepends++
	slog.Debug("Prepended items", "count", len(heights), "offset", p.scroll.ScrollOffset())
}

// Prepend compares the old and new item keys and, if the change is a
// prepend of k items, measures them when a Measurer is configured and
// inserts them ahead of the anchor. It returns k, which is 0 when the
// change was not an exact prepend. Measurement failures fall back to
// estimates; a cancelled ctx or a Close during measurement discards the
// batch.
func (p *Protocol) Prepend(ctx context.Context, oldKeys, newKeys []string) (int, error) {
	return p.prepend(ctx, DetectPrepend(oldKeys, newKeys), oldKeys, newKeys)
}

func (p *Protocol) prepend(ctx context.Context, k int, oldKeys, newKeys []string) (int, error) {
	if !p.alive.Load() {
		return 0, ErrClosed
	}
	if k == 0 {
		return 0, nil
	}
	if p.ledger.Count() != len(oldKeys) {
		slog.Debug("Ignoring prepend against a stale key list", "count", p.ledger.Count(), "keys", len(oldKeys))
		return 0, nil
	}

	heights := unmeasured(k)
	if p.measurer != nil {
		measured, err := p.measurer.Measure(ctx, newKeys[:k])
		if !p.alive.Load() {
			return 0, ErrClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("measure prepend: %w", ctxErr)
		}
		if err != nil {
			slog.Warn("Failed to measure prepended items, using estimates", "error", err, "count", k)
		} else {
			var ok bool
			heights, ok = sanitizeMeasured(measured, k)
			if !ok {
				slog.Warn("Measurer returned wrong number of heights", "want", k, "got", len(measured))
			}
		}
	}

	p.InsertPrepended(heights)
	return k, nil
}

// Reconcile brings the ledger in line with a new key list: a prepend is
// inserted with compensation, anything else resizes the list. Items appended
// after a prepended batch are added too.
func (p *Protocol) Reconcile(ctx context.Context, oldKeys, newKeys []string) error {
	k, err := p.prepend(ctx, DetectPrependWithAppend(oldKeys, newKeys), oldKeys, newKeys)
	if err != nil {
		return err
	}
	if k == 0 || p.ledger.Count() != len(newKeys) {
		p.SetCount(len(newKeys))
	}
	return nil
}

// Close cancels any scheduled flush and discards pending reports and
// in-flight measurements. Every later call is a no-op.
func (p *Protocol) Close() {
	if !p.alive.CompareAndSwap(true, false) {
		return
	}
	p.unschedule()
	p.pending = make(map[int]float64)
	p.state = StateIdle
	p.deferred = 0
	p.snapHeld = false
}

// Closed reports whether Close has been called.
func (p *Protocol) Closed() bool {
	return !p.alive.Load()
}
