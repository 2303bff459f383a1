// Package scenario replays scripted list mutations against the anchor
// protocol without a terminal and records what the viewport would show.
package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
)

// Op names a scenario step.
type Op string

const (
	OpSetCount       Op = "set_count"
	OpSetHeight      Op = "set_height"
	OpReport         Op = "report"
	OpBulkInsert     Op = "bulk_insert"
	OpPrepend        Op = "prepend"
	OpInvalidate     Op = "invalidate"
	OpScroll         Op = "scroll"
	OpScrollToBottom Op = "scroll_to_bottom"
	OpResize         Op = "resize"
	OpGestureBegin   Op = "gesture_begin"
	OpGestureEnd     Op = "gesture_end"
	OpTick           Op = "tick"
	OpRange          Op = "range"
)

var ops = []Op{
	OpSetCount, OpSetHeight, OpReport, OpBulkInsert, OpPrepend, OpInvalidate,
	OpScroll, OpScrollToBottom, OpResize, OpGestureBegin, OpGestureEnd,
	OpTick, OpRange,
}

// Overscan mirrors viewport.Overscan with JSON names.
type Overscan struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Tail mirrors viewport.TailConfig with JSON names.
type Tail struct {
	Count         int `json:"count"`
	MaxWindowSize int `json:"max_window_size"`
}

// Follow enables follow-bottom for the replay. Zero thresholds take the
// anchor package defaults.
type Follow struct {
	Threshold         float64 `json:"threshold"`
	DetachThreshold   float64 `json:"detach_threshold"`
	ReattachThreshold float64 `json:"reattach_threshold"`
}

// Scenario is a list setup followed by the steps to replay.
type Scenario struct {
	Name        string   `json:"name,omitempty"`
	Estimate    float64  `json:"estimate"`
	Viewport    float64  `json:"viewport"`
	Offset      float64  `json:"offset,omitempty"`
	Count       int      `json:"count,omitempty"`
	Overscan    Overscan `json:"overscan"`
	Tail        Tail     `json:"tail"`
	Follow      *Follow  `json:"follow,omitempty"`
	MinHeight   float64  `json:"min_height,omitempty"`
	MaxHeight   *float64 `json:"max_height,omitempty"`
	ZeroHeights bool     `json:"zero_heights,omitempty"`
	Steps       []Step   `json:"steps"`
}

// Step is one operation. Only the fields the op reads need to be set. A null
// entry in Heights inserts an unmeasured slot.
type Step struct {
	Op      Op         `json:"op"`
	Index   int        `json:"index,omitempty"`
	Count   int        `json:"count,omitempty"`
	Height  float64    `json:"height,omitempty"`
	Heights []*float64 `json:"heights,omitempty"`
	Offset  *float64   `json:"offset,omitempty"`
	Delta   float64    `json:"delta,omitempty"`
	Extent  float64    `json:"extent,omitempty"`
}

func (s Step) heights() []float64 {
	out := make([]float64, len(s.Heights))
	for i, h := range s.Heights {
		if h == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *h
	}
	return out
}

// Parse decodes and validates a scenario.
func Parse(r io.Reader) (*Scenario, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks the setup and every step op.
func (s *Scenario) Validate() error {
	if s.Estimate <= 0 {
		return fmt.Errorf("estimate must be positive, got %v", s.Estimate)
	}
	if s.Viewport < 0 {
		return fmt.Errorf("viewport must not be negative, got %v", s.Viewport)
	}
	if s.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", s.Count)
	}
	for i, step := range s.Steps {
		if !slices.Contains(ops, step.Op) {
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
		if step.Op == OpScroll && step.Offset == nil && step.Delta == 0 {
			return fmt.Errorf("step %d: scroll needs offset or delta", i)
		}
	}
	return nil
}
