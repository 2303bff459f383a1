package ledger

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumEffective(l *Ledger) float64 {
	var sum float64
	for i := range l.Count() {
		sum += l.Height(i)
	}
	return sum
}

func TestLedgerScenarios(t *testing.T) {
	t.Parallel()

	t.Run("estimate drives totals", func(t *testing.T) {
		t.Parallel()
		l := New(50)
		l.SetCount(5)
		assert.Equal(t, 250.0, l.Total())

		l.SetHeight(0, 100)
		assert.Equal(t, 300.0, l.Total())
		assert.Equal(t, 100.0, l.OffsetForIndex(1))
	})

	t.Run("bulk insert at front", func(t *testing.T) {
		t.Parallel()
		l := New(50)
		l.SetCount(5)
		l.SetHeight(0, 100)

		l.BulkInsert(0, []float64{80, 80})
		require.Equal(t, 7, l.Count())
		assert.Equal(t, 160.0, l.OffsetForIndex(2))
		assert.Equal(t, 100.0, l.Height(2))
		assert.True(t, l.Measured(2))
		assert.Equal(t, 460.0, l.Total())
	})

	t.Run("shrink then grow keeps prefix", func(t *testing.T) {
		t.Parallel()
		l := New(50)
		l.SetCount(2)
		l.SetHeight(0, 100)
		l.SetCount(4)
		assert.Equal(t, 100.0, l.OffsetForIndex(1))
		assert.Equal(t, 250.0, l.Total())
	})

	t.Run("shrink discards measurements", func(t *testing.T) {
		t.Parallel()
		l := New(10)
		l.SetCount(4)
		l.SetHeight(3, 40)
		require.Equal(t, 1, l.MeasuredCount())
		l.SetCount(3)
		assert.Equal(t, 0, l.MeasuredCount())
		l.SetCount(4)
		assert.False(t, l.Measured(3))
		assert.Equal(t, 40.0, l.Total())
	})
}

func TestLedgerEmpty(t *testing.T) {
	t.Parallel()
	l := New(20)
	assert.Equal(t, 0.0, l.Total())
	assert.Equal(t, 0.0, l.Query(-1))
	assert.Equal(t, 0.0, l.Query(3))
	assert.Equal(t, NotFound, l.IndexForOffset(10))
	assert.Equal(t, 0, l.LowerBound(1))
	assert.Equal(t, 0, l.UpperBound(0))

	l.SetCount(-3)
	assert.Equal(t, 0, l.Count())
}

func TestLedgerSetHeightTolerance(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.SetCount(3)

	l.SetHeight(-1, 99)
	l.SetHeight(3, 99)
	assert.Equal(t, 30.0, l.Total(), "out of range indices are ignored")

	l.SetHeight(1, -5)
	assert.Equal(t, 0.0, l.Height(1), "negative heights clamp to the minimum")
	assert.True(t, l.Measured(1))

	l.SetHeight(1, math.NaN())
	assert.False(t, l.Measured(1), "NaN reverts to the estimate")
	assert.Equal(t, 30.0, l.Total())

	l.SetHeight(2, math.Inf(1))
	assert.False(t, l.Measured(2))
	assert.Equal(t, 30.0, l.Total())
}

func TestLedgerBounds(t *testing.T) {
	t.Parallel()
	l := New(500, WithBounds(1, 200))
	assert.Equal(t, 200.0, l.Estimate())
	l.SetCount(2)
	l.SetHeight(0, 0)
	l.SetHeight(1, 1000)
	assert.Equal(t, 1.0, l.Height(0))
	assert.Equal(t, 200.0, l.Height(1))
}

func TestLedgerIdenticalHeightIsNoop(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.SetCount(2)
	l.SetHeight(0, 10)
	assert.True(t, l.Measured(0), "measuring the estimate still marks the slot")
	assert.Equal(t, 1, l.MeasuredCount())
	l.SetHeight(0, 10)
	assert.Equal(t, 1, l.MeasuredCount())
	assert.Equal(t, 20.0, l.Total())
}

func TestLedgerBulkInsertBounds(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.SetCount(2)

	l.BulkInsert(-1, []float64{5})
	l.BulkInsert(3, []float64{5})
	l.BulkInsert(1, nil)
	assert.Equal(t, 2, l.Count())

	l.BulkInsert(2, []float64{5, math.NaN()})
	require.Equal(t, 4, l.Count())
	assert.Equal(t, 35.0, l.Total())
	assert.True(t, l.Measured(2))
	assert.False(t, l.Measured(3))
}

func TestLedgerBounds_LowerUpper(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.SetCount(4)
	l.SetHeight(1, 0)
	// prefix sums: 10, 10, 20, 30

	tests := []struct {
		value        float64
		lower, upper int
	}{
		{value: -1, lower: 0, upper: 0},
		{value: 0, lower: 0, upper: 0},
		{value: 5, lower: 0, upper: 0},
		{value: 10, lower: 0, upper: 2},
		{value: 15, lower: 2, upper: 2},
		{value: 20, lower: 2, upper: 3},
		{value: 30, lower: 3, upper: 4},
		{value: 31, lower: 4, upper: 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.lower, l.LowerBound(tt.value), "lower bound of %v", tt.value)
		assert.Equal(t, tt.upper, l.UpperBound(tt.value), "upper bound of %v", tt.value)
	}
	assert.Equal(t, 3, l.IndexForOffset(30), "offsets past the end clamp to the last item")
}

func TestLedgerInvalidate(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.SetCount(3)
	l.SetHeight(0, 30)
	l.SetHeight(2, 50)
	l.Invalidate()
	assert.Equal(t, 0, l.MeasuredCount())
	assert.Equal(t, 30.0, l.Total())
}

func TestLedgerRandomOperations(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	l := New(16)

	for step := range 2000 {
		switch op := rng.IntN(10); {
		case op < 6:
			if l.Count() > 0 {
				l.SetHeight(rng.IntN(l.Count()), float64(1+rng.IntN(120)))
			}
		case op < 8:
			l.SetCount(rng.IntN(64))
		default:
			heights := make([]float64, 1+rng.IntN(4))
			for i := range heights {
				if rng.IntN(3) == 0 {
					heights[i] = math.NaN()
				} else {
					heights[i] = float64(1 + rng.IntN(80))
				}
			}
			l.BulkInsert(rng.IntN(l.Count()+1), heights)
		}

		require.Equal(t, sumEffective(l), l.Total(), "total diverged at step %d", step)
		prev := 0.0
		for i := range l.Count() {
			off := l.OffsetForIndex(i)
			require.GreaterOrEqual(t, off, prev, "offsets must be non-decreasing")
			require.Equal(t, i, l.IndexForOffset(off), "round trip at step %d index %d", step, i)
			prev = off
		}
	}
}

func TestLedgerBulkInsertShift(t *testing.T) {
	t.Parallel()
	l := New(10)
	l.SetCount(6)
	for i := range 6 {
		l.SetHeight(i, float64(10*(i+1)))
	}
	before := make([]float64, 6)
	for i := range before {
		before[i] = l.Height(i)
	}

	inserted := []float64{7, 9, 11}
	l.BulkInsert(0, inserted)

	for i, h := range before {
		assert.Equal(t, h, l.Height(i+len(inserted)))
	}
	assert.Equal(t, 27.0, l.OffsetForIndex(len(inserted)))
}
