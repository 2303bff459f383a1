// Package frame provides schedulers that run list flushes once per frame.
//
// Manual is driven by the caller and suits tests and hosts that already own
// a render loop. Loop owns a goroutine that serializes posted work and runs
// scheduled flushes on a fixed frame interval; realtime scenario replays run
// on it.
package frame

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/vlist/internal/anchor"
)

// DefaultInterval is one frame at 60Hz.
const DefaultInterval = 16 * time.Millisecond

// ErrLoopClosed is returned when work is handed to a closed Loop.
var ErrLoopClosed = errors.New("frame: loop closed")

type entry struct {
	handle anchor.Handle
	fn     func()
}

// queue is an ordered set of scheduled callbacks. It is not safe for
// concurrent use.
type queue struct {
	next    anchor.Handle
	entries []entry
}

func (q *queue) add(fn func()) anchor.Handle {
	q.next++
	q.entries = append(q.entries, entry{handle: q.next, fn: fn})
	return q.next
}

func (q *queue) remove(h anchor.Handle) {
	for i, e := range q.entries {
		if e.handle == h {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// drain runs every callback queued before the call. Callbacks scheduled while
// draining wait for the next drain.
func (q *queue) drain() int {
	entries := q.entries
	q.entries = nil
	for _, e := range entries {
		e.fn()
	}
	return len(entries)
}

// Manual is a Scheduler whose ticks are triggered by calling Tick.
type Manual struct {
	q queue
}

// NewManual returns an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// ScheduleFlush implements anchor.Scheduler.
func (m *Manual) ScheduleFlush(fn func()) anchor.Handle {
	return m.q.add(fn)
}

// Cancel implements anchor.Scheduler.
func (m *Manual) Cancel(h anchor.Handle) {
	m.q.remove(h)
}

// Tick runs the callbacks scheduled so far and returns how many ran.
func (m *Manual) Tick() int {
	return m.q.drain()
}

// Pending returns the number of scheduled callbacks.
func (m *Manual) Pending() int {
	return len(m.q.entries)
}

// Loop is a single goroutine event loop. Work reaches it through Post; the
// Scheduler methods must only be called from work running on the loop, which
// is where the anchor protocol lives.
type Loop struct {
	interval time.Duration
	posts    chan func()
	done     chan struct{}
	once     sync.Once

	q       queue
	waiters []chan struct{}
}

// NewLoop returns a loop ticking every interval. A non-positive interval
// uses DefaultInterval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		interval: interval,
		posts:    make(chan func(), 64),
		done:     make(chan struct{}),
	}
}

// Run processes posted work and frame ticks until ctx is done or Close is
// called.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.posts:
			fn()
		case <-ticker.C:
			if n := l.q.drain(); n > 0 {
				slog.Debug("Frame tick", "callbacks", n)
			}
			for _, ch := range l.waiters {
				close(ch)
			}
			l.waiters = nil
		}
	}
}

// Post hands fn to the loop goroutine. It returns false once the loop is
// closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.posts <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(done)
	}) {
		return ErrLoopClosed
	}
	return l.wait(ctx, done)
}

// WaitFrame blocks until the loop has run the flushes of its next frame.
func (l *Loop) WaitFrame(ctx context.Context) error {
	ch := make(chan struct{})
	if !l.Post(func() { l.waiters = append(l.waiters, ch) }) {
		return ErrLoopClosed
	}
	return l.wait(ctx, ch)
}

func (l *Loop) wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	}
}

// Close stops the loop. Queued work and scheduled flushes are dropped.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.done)
	})
}

// ScheduleFlush implements anchor.Scheduler.
func (l *Loop) ScheduleFlush(fn func()) anchor.Handle {
	return l.q.add(fn)
}

// Cancel implements anchor.Scheduler.
func (l *Loop) Cancel(h anchor.Handle) {
	l.q.remove(h)
}
