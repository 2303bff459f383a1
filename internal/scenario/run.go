package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/vlist/internal/anchor"
	"github.com/charmbracelet/vlist/internal/frame"
	"github.com/charmbracelet/vlist/internal/ledger"
	"github.com/charmbracelet/vlist/internal/viewport"
)

// Frame is the viewport recorded after a tick or range step.
type Frame struct {
	Step     int     `json:"step" yaml:"step"`
	Op       Op      `json:"op" yaml:"op"`
	Start    int     `json:"start" yaml:"start"`
	End      int     `json:"end" yaml:"end"`
	OffsetY  float64 `json:"offset_y" yaml:"offset_y"`
	Total    float64 `json:"total" yaml:"total"`
	Scroll   float64 `json:"scroll" yaml:"scroll"`
	Pending  int     `json:"pending" yaml:"pending"`
	Follow   string  `json:"follow,omitempty" yaml:"follow,omitempty"`
	Deferred float64 `json:"deferred,omitempty" yaml:"deferred,omitempty"`
}

// Transcript is the outcome of a replay.
type Transcript struct {
	Name   string       `json:"name,omitempty" yaml:"name,omitempty"`
	Frames []Frame      `json:"frames" yaml:"frames"`
	Stats  anchor.Stats `json:"stats" yaml:"stats"`
}

// WriteText prints one line per frame followed by the protocol counters.
func (t Transcript) WriteText(w io.Writer) error {
	var b strings.Builder
	if t.Name != "" {
		fmt.Fprintf(&b, "# %s\n", t.Name)
	}
	for _, f := range t.Frames {
		fmt.Fprintf(&b, "%3d %-5s items %d..%d offset_y %g total %g scroll %g pending %d",
			f.Step, f.Op, f.Start, f.End, f.OffsetY, f.Total, f.Scroll, f.Pending)
		if f.Follow != "" {
			fmt.Fprintf(&b, " %s", f.Follow)
		}
		if f.Deferred != 0 {
			fmt.Fprintf(&b, " deferred %g", f.Deferred)
		}
		b.WriteByte('\n')
	}
	s := t.Stats
	fmt.Fprintf(&b, "reports %d coalesced %d flushes %d compensations %d (%g) prepends %d snaps %d\n",
		s.Reports, s.Coalesced, s.Flushes, s.Compensations, s.Compensated, s.Prepends, s.Snaps)
	_, err := io.WriteString(w, b.String())
	return err
}

// scroller is an unbounded scroll container.
type scroller struct {
	offset float64
	extent float64
}

func (s *scroller) ScrollOffset() float64   { return s.offset }
func (s *scroller) ViewportExtent() float64 { return s.extent }
func (s *scroller) AddOffset(d float64)     { s.offset += d }
func (s *scroller) SetOffset(v float64)     { s.offset = v }

type replay struct {
	s      *Scenario
	scroll *scroller
	proto  *anchor.Protocol
	t      Transcript
}

func newReplay(s *Scenario, sched anchor.Scheduler) *replay {
	var ledgerOpts []ledger.Option
	if s.MinHeight > 0 || s.MaxHeight != nil {
		maxHeight := math.Inf(1)
		if s.MaxHeight != nil {
			maxHeight = *s.MaxHeight
		}
		ledgerOpts = append(ledgerOpts, ledger.WithBounds(s.MinHeight, maxHeight))
	}
	l := ledger.New(s.Estimate, ledgerOpts...)
	l.SetCount(s.Count)

	engine := viewport.New(l,
		viewport.WithOverscan(s.Overscan.Top, s.Overscan.Bottom),
		viewport.WithTail(s.Tail.Count, s.Tail.MaxWindowSize),
	)

	var opts []anchor.Option
	if s.Follow != nil {
		cfg := anchor.DefaultFollowConfig()
		if s.Follow.Threshold > 0 {
			cfg.Threshold = s.Follow.Threshold
		}
		if s.Follow.DetachThreshold > 0 {
			cfg.DetachThreshold = s.Follow.DetachThreshold
		}
		if s.Follow.ReattachThreshold > 0 {
			cfg.ReattachThreshold = s.Follow.ReattachThreshold
		}
		opts = append(opts, anchor.WithFollow(cfg))
	}
	if s.ZeroHeights {
		opts = append(opts, anchor.WithZeroHeights())
	}

	scroll := &scroller{offset: s.Offset, extent: s.Viewport}
	return &replay{
		s:      s,
		scroll: scroll,
		proto:  anchor.New(engine, scroll, sched, opts...),
		t:      Transcript{Name: s.Name},
	}
}

func (r *replay) record(i int, op Op) {
	p := r.proto
	rng := p.Range()
	f := Frame{
		Step:     i,
		Op:       op,
		Start:    rng.Start,
		End:      rng.End,
		OffsetY:  rng.OffsetY,
		Total:    rng.TotalHeight,
		Scroll:   r.scroll.offset,
		Pending:  p.Pending(),
		Deferred: p.DeferredDelta(),
	}
	if r.s.Follow != nil {
		f.Follow = p.Follower().State().String()
	}
	r.t.Frames = append(r.t.Frames, f)
}

// apply runs every step but tick, which depends on the scheduler.
func (r *replay) apply(i int, step Step) {
	p := r.proto
	switch step.Op {
	case OpSetCount:
		p.SetCount(step.Count)
	case OpSetHeight:
		p.SetHeight(step.Index, step.Height)
	case OpReport:
		if len(step.Heights) == 0 {
			p.ReportHeight(step.Index, step.Height)
			break
		}
		for j, h := range step.heights() {
			p.ReportHeight(step.Index+j, h)
		}
	case OpBulkInsert:
		p.BulkInsert(step.Index, step.heights())
	case OpPrepend:
		heights := step.heights()
		if len(heights) == 0 {
			heights = make([]float64, step.Count)
			for j := range heights {
				heights[j] = r.s.Estimate
			}
		}
		p.InsertPrepended(heights)
	case OpInvalidate:
		p.Invalidate()
	case OpScroll:
		if step.Offset != nil {
			r.scroll.offset = *step.Offset
		}
		r.scroll.offset += step.Delta
		p.HandleScroll()
	case OpScrollToBottom:
		p.ScrollToBottom()
	case OpResize:
		r.scroll.extent = step.Extent
		p.HandleResize()
	case OpGestureBegin:
		p.BeginGesture()
	case OpGestureEnd:
		p.EndGesture()
	case OpRange:
		p.Recompute()
		r.record(i, step.Op)
	}
}

func (r *replay) finish() Transcript {
	r.t.Stats = r.proto.Stats()
	r.proto.Close()
	return r.t
}

// Run replays s and returns the transcript. Flushes run exactly at tick
// steps.
func Run(s *Scenario) (Transcript, error) {
	if err := s.Validate(); err != nil {
		return Transcript{}, err
	}
	sched := frame.NewManual()
	r := newReplay(s, sched)
	for i, step := range s.Steps {
		if step.Op != OpTick {
			r.apply(i, step)
			continue
		}
		n := sched.Tick()
		slog.Debug("Scenario tick", "step", i, "callbacks", n)
		r.record(i, step.Op)
	}
	return r.finish(), nil
}

// RunRealtime replays s on a frame loop ticking every interval. Flushes run
// on the loop's frames, which may fall between any two steps; a tick step
// waits for the next frame before it is recorded.
func RunRealtime(ctx context.Context, s *Scenario, interval time.Duration) (Transcript, error) {
	if err := s.Validate(); err != nil {
		return Transcript{}, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := frame.NewLoop(interval)
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	var r *replay
	if err := loop.Do(ctx, func() { r = newReplay(s, loop) }); err != nil {
		return Transcript{}, err
	}
	for i, step := range s.Steps {
		if step.Op == OpTick {
			if err := loop.WaitFrame(ctx); err != nil {
				return Transcript{}, fmt.Errorf("step %d: %w", i, err)
			}
		}
		err := loop.Do(ctx, func() {
			if step.Op == OpTick {
				r.record(i, step.Op)
				return
			}
			r.apply(i, step)
		})
		if err != nil {
			return Transcript{}, fmt.Errorf("step %d: %w", i, err)
		}
	}

	var t Transcript
	if err := loop.Do(ctx, func() { t = r.finish() }); err != nil {
		return Transcript{}, err
	}
	loop.Close()
	if err := <-errc; err != nil {
		return Transcript{}, err
	}
	return t, nil
}
