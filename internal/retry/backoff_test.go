package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaseDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		attempt  int
		initial  time.Duration
		max      time.Duration
		expected time.Duration
	}{
		{"first attempt", 0, time.Second, 30 * time.Second, time.Second},
		{"second attempt", 1, time.Second, 30 * time.Second, 2 * time.Second},
		{"fourth attempt", 3, time.Second, 30 * time.Second, 8 * time.Second},
		{"capped", 5, time.Second, 30 * time.Second, 30 * time.Second},
		{"far past cap", 60, time.Second, 30 * time.Second, 30 * time.Second},
		{"negative attempt treated as zero", -3, 2 * time.Second, 30 * time.Second, 2 * time.Second},
		{"initial equals max", 4, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, BaseDelay(tt.attempt, tt.initial, tt.max))
		})
	}
}

func TestDelay_WithoutJitterIsExponentialSchedule(t *testing.T) {
	t.Parallel()

	initial := 100 * time.Millisecond
	max := 5 * time.Second

	for attempt := 0; attempt < 20; attempt++ {
		want := initial << attempt
		if want > max || want <= 0 {
			want = max
		}
		assert.Equal(t, want, Delay(attempt, initial, max, false, nil), "attempt %d", attempt)
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	t.Parallel()

	initial := time.Second
	max := 30 * time.Second
	rng := rand.New(rand.NewSource(42))

	for attempt := 0; attempt < 8; attempt++ {
		base := float64(BaseDelay(attempt, initial, max))
		for i := 0; i < 200; i++ {
			d := Delay(attempt, initial, max, true, rng.Float64)
			assert.GreaterOrEqual(t, float64(d), 0.75*base-1)
			assert.LessOrEqual(t, float64(d), 1.25*base)
		}
	}
}

func TestDelay_JitterExtremes(t *testing.T) {
	t.Parallel()

	base := 8 * time.Second

	low := Delay(3, time.Second, 30*time.Second, true, func() float64 { return 0 })
	high := Delay(3, time.Second, 30*time.Second, true, func() float64 { return 0.999999 })
	mid := Delay(3, time.Second, 30*time.Second, true, func() float64 { return 0.5 })

	assert.Equal(t, 6*time.Second, low)
	assert.InDelta(t, float64(10*time.Second), float64(high), float64(time.Millisecond))
	assert.Equal(t, base, mid)
}

func TestDelay_JitterMayExceedMax(t *testing.T) {
	t.Parallel()

	d := Delay(10, time.Second, 4*time.Second, true, func() float64 { return 0.99 })
	assert.Greater(t, d, 4*time.Second)
	assert.LessOrEqual(t, d, 5*time.Second)
}

func TestDelay_NeverNegative(t *testing.T) {
	t.Parallel()

	d := Delay(0, 0, 0, true, func() float64 { return 0 })
	assert.Equal(t, time.Duration(0), d)
}

func TestExponentialBackoff_DeterministicWithFixedSource(t *testing.T) {
	t.Parallel()

	a := NewExponentialBackoffWithSource(time.Second, 30*time.Second, true, rand.NewSource(7))
	b := NewExponentialBackoffWithSource(time.Second, 30*time.Second, true, rand.NewSource(7))

	for attempt := 0; attempt < 6; attempt++ {
		assert.Equal(t, a.Next(attempt), b.Next(attempt))
	}
}

func TestExponentialBackoff_NoJitter(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff(200*time.Millisecond, time.Second, false)

	assert.Equal(t, 200*time.Millisecond, b.Next(0))
	assert.Equal(t, 400*time.Millisecond, b.Next(1))
	assert.Equal(t, 800*time.Millisecond, b.Next(2))
	assert.Equal(t, time.Second, b.Next(3))
}
