package anchor

import "context"

// ScrollPort is the scroll container the list lives in. The protocol reads
// the current values whenever it needs them and never caches them across a
// scheduler tick, since user input may change them at any time.
type ScrollPort interface {
	ScrollOffset() float64
	ViewportExtent() float64
	AddOffset(delta float64)
	SetOffset(offset float64)
}

// Handle identifies a scheduled flush.
type Handle uint64

// Scheduler runs flushes on the list's thread, typically once per frame.
type Scheduler interface {
	// ScheduleFlush arranges for fn to run on the next tick.
	ScheduleFlush(fn func()) Handle
	// Cancel drops a scheduled fn. Unknown handles are ignored.
	Cancel(h Handle)
}

// Measurer renders items off-screen and reports their heights, one per key in
// the same order. It is only consulted for prepend batches.
type Measurer interface {
	Measure(ctx context.Context, keys []string) ([]float64, error)
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(ctx context.Context, keys []string) ([]float64, error)

func (f MeasurerFunc) Measure(ctx context.Context, keys []string) ([]float64, error) {
	return f(ctx, keys)
}
