package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/vlist/internal/anchor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPrepend(t *testing.T) {
	t.Parallel()
	s, err := Load("testdata/prepend.json")
	require.NoError(t, err)

	tr, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, []Frame{
		{Step: 0, Op: OpRange, Start: 0, End: 3, OffsetY: 0, Total: 100, Scroll: 0},
		{Step: 2, Op: OpRange, Start: 5, End: 8, OffsetY: 50, Total: 100, Scroll: 50},
		{Step: 5, Op: OpRange, Start: 5, End: 8, OffsetY: 50, Total: 100, Scroll: 50, Pending: 2},
		{Step: 6, Op: OpTick, Start: 5, End: 7, OffsetY: 70, Total: 130, Scroll: 70},
		{Step: 8, Op: OpRange, Start: 7, End: 9, OffsetY: 90, Total: 150, Scroll: 90},
	}, tr.Frames)
	assert.Equal(t, anchor.Stats{
		Reports:       2,
		Flushes:       1,
		Compensations: 2,
		Compensated:   40,
		Prepends:      1,
	}, tr.Stats)
}

func TestRunFollow(t *testing.T) {
	t.Parallel()
	s, err := Parse(strings.NewReader(`{
		"estimate": 1,
		"viewport": 5,
		"count": 10,
		"follow": {"threshold": 1, "detach_threshold": 1, "reattach_threshold": 3},
		"steps": [
			{"op": "scroll_to_bottom"},
			{"op": "set_count", "count": 12},
			{"op": "range"},
			{"op": "scroll", "delta": -4},
			{"op": "set_count", "count": 14},
			{"op": "range"},
			{"op": "scroll", "delta": 4},
			{"op": "report", "index": 13, "height": 2},
			{"op": "tick"},
			{"op": "scroll_to_bottom"},
			{"op": "report", "index": 13, "height": 4},
			{"op": "tick"}
		]
	}`))
	require.NoError(t, err)

	tr, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, []Frame{
		{Step: 2, Op: OpRange, Start: 7, End: 11, OffsetY: 7, Total: 12, Scroll: 7, Follow: "following"},
		{Step: 5, Op: OpRange, Start: 3, End: 8, OffsetY: 3, Total: 14, Scroll: 3, Follow: "detached"},
		{Step: 8, Op: OpTick, Start: 7, End: 12, OffsetY: 7, Total: 15, Scroll: 7, Follow: "following"},
		{Step: 11, Op: OpTick, Start: 12, End: 13, OffsetY: 12, Total: 17, Scroll: 12, Follow: "following"},
	}, tr.Frames)
	assert.Equal(t, 4, tr.Stats.Snaps)
	assert.Equal(t, 0, tr.Stats.Compensations)
}

func TestRunGesture(t *testing.T) {
	t.Parallel()
	s, err := Parse(strings.NewReader(`{
		"estimate": 10,
		"viewport": 30,
		"count": 10,
		"offset": 50,
		"steps": [
			{"op": "gesture_begin"},
			{"op": "report", "index": 0, "height": 25},
			{"op": "tick"},
			{"op": "gesture_end"},
			{"op": "range"}
		]
	}`))
	require.NoError(t, err)

	tr, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, []Frame{
		{Step: 2, Op: OpTick, Start: 3, End: 6, OffsetY: 45, Total: 115, Scroll: 50, Deferred: 15},
		{Step: 4, Op: OpRange, Start: 5, End: 8, OffsetY: 65, Total: 115, Scroll: 65},
	}, tr.Frames)
}

func TestRunRealtime(t *testing.T) {
	t.Parallel()
	const src = `{
		"estimate": 10,
		"viewport": 30,
		"count": 10,
		"offset": 50,
		"steps": [
			{"op": "report", "index": 0, "height": 25},
			{"op": "tick"},
			{"op": "range"}
		]
	}`
	s, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	want, err := Run(s)
	require.NoError(t, err)
	got, err := RunRealtime(context.Background(), s, time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, want, got, "a single report flushes the same on either scheduler")
	assert.Equal(t, 65.0, got.Frames[0].Scroll)
	assert.Equal(t, 1, got.Stats.Flushes)
}

func TestRunRealtimeCancelled(t *testing.T) {
	t.Parallel()
	s, err := Parse(strings.NewReader(`{"estimate": 10, "viewport": 30, "count": 3, "steps": [{"op": "tick"}]}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RunRealtime(ctx, s, time.Millisecond)
	require.Error(t, err)
}

func TestRunBatchReport(t *testing.T) {
	t.Parallel()
	s, err := Parse(strings.NewReader(`{
		"estimate": 10,
		"viewport": 20,
		"count": 4,
		"steps": [
			{"op": "report", "index": 1, "heights": [5, 5, null]},
			{"op": "report", "index": 1, "height": 15},
			{"op": "tick"},
			{"op": "bulk_insert", "index": 4, "heights": [1, 1]},
			{"op": "invalidate"},
			{"op": "range"}
		]
	}`))
	require.NoError(t, err)

	tr, err := Run(s)
	require.NoError(t, err)
	require.Len(t, tr.Frames, 2)
	assert.Equal(t, 40.0, tr.Frames[0].Total, "10 + 15 + 5 + 10")
	assert.Equal(t, 60.0, tr.Frames[1].Total, "six unmeasured slots")
	assert.Equal(t, 3, tr.Stats.Reports, "the null entry is dropped")
	assert.Equal(t, 1, tr.Stats.Coalesced)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"syntax", `{"estimate":`, "decode"},
		{"unknown field", `{"estimate": 1, "bogus": true}`, "bogus"},
		{"estimate", `{"estimate": 0}`, "estimate"},
		{"op", `{"estimate": 1, "steps": [{"op": "jump"}]}`, `unknown op "jump"`},
		{"scroll", `{"estimate": 1, "steps": [{"op": "scroll"}]}`, "offset or delta"},
		{"viewport", `{"estimate": 1, "viewport": -1}`, "viewport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(strings.NewReader(tt.input))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()
	_, err := Load("testdata/missing.json")
	require.Error(t, err)
}

func TestWriteText(t *testing.T) {
	t.Parallel()
	tr := Transcript{
		Name: "demo",
		Frames: []Frame{
			{Step: 1, Op: OpTick, Start: 2, End: 4, OffsetY: 20, Total: 100, Scroll: 25, Follow: "following", Deferred: 5},
		},
		Stats: anchor.Stats{Reports: 3, Flushes: 1},
	}
	var b strings.Builder
	require.NoError(t, tr.WriteText(&b))
	assert.Equal(t,
		"# demo\n"+
			"  1 tick  items 2..4 offset_y 20 total 100 scroll 25 pending 0 following deferred 5\n"+
			"reports 3 coalesced 0 flushes 1 compensations 0 (0) prepends 0 snaps 0\n",
		b.String())
}
