package gcra

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideFreshKey(t *testing.T) {
	tests := []struct {
		name                      string
		burst, rate, period, cost float64
		granted, remaining        float64
		resetAfter                float64
	}{
		{name: "standard bucket", burst: 10, rate: 10, period: 1, cost: 1, granted: 1, remaining: 9, resetAfter: 0.1},
		{name: "weighted", burst: 20, rate: 10, period: 60, cost: 5, granted: 5, remaining: 15, resetAfter: 30},
		{name: "cost clamped to burst", burst: 5, rate: 10, period: 60, cost: 6, granted: 5, remaining: 0, resetAfter: 30},
		{name: "single token", burst: 1, rate: 1, period: 60, cost: 1, granted: 1, remaining: 0, resetAfter: 60},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := decide(0, false, 0, tc.burst, tc.rate, tc.period, tc.cost)
			assert.Equal(t, tc.granted, d.granted)
			assert.InDelta(t, tc.remaining, d.remaining, 1e-9)
			assert.Equal(t, float64(-1), d.retryAfter)
			assert.InDelta(t, tc.resetAfter, d.resetAfter, 1e-9)
			assert.True(t, d.write)
			assert.InDelta(t, tc.resetAfter, d.newTAT, 1e-9)
		})
	}
}

func TestDecideZeroBurstNeverGrants(t *testing.T) {
	d := decide(0, false, 0, 0, 1, 1, 1)
	assert.Zero(t, d.granted)
	assert.Zero(t, d.remaining)
	assert.Equal(t, float64(1), d.retryAfter)
	assert.Zero(t, d.resetAfter)
	assert.False(t, d.write)
}

func TestDecideDeniesWithoutWriting(t *testing.T) {
	// 10 req/s: tat one second ahead means the bucket is empty.
	d := decide(1, true, 0, 10, 10, 1, 1)
	assert.Zero(t, d.granted)
	assert.Zero(t, d.remaining)
	assert.InDelta(t, 0.1, d.retryAfter, 1e-12)
	assert.Equal(t, float64(1), d.resetAfter)
	assert.False(t, d.write)
}

func TestDecideClampsPastTAT(t *testing.T) {
	stale := decide(-500, true, 0, 3, 3, 3, 1)
	fresh := decide(0, false, 0, 3, 3, 3, 1)
	assert.Equal(t, fresh, stale)
}

func TestDecideExhaustsBurstThenDenies(t *testing.T) {
	var (
		tat   float64
		found bool
	)
	for i := 0; i < 10; i++ {
		d := decide(tat, found, 0, 10, 10, 1, 1)
		require.Equal(t, float64(1), d.granted, "call %d", i+1)
		tat, found = d.newTAT, true
	}
	d := decide(tat, found, 0, 10, 10, 1, 1)
	assert.Zero(t, d.granted)
	assert.Zero(t, d.remaining)
}

func TestDecideRefillsOneEmissionInterval(t *testing.T) {
	var tat float64
	for i := 0; i < 5; i++ {
		tat = decide(tat, i > 0, 0, 5, 5, 15, 1).newTAT
	}
	d := decide(tat, true, 3, 5, 5, 15, 1)
	assert.Equal(t, float64(1), d.granted)
	assert.Zero(t, d.remaining)
}

func TestDecideInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		burst := float64(1 + rnd.Intn(50))
		rate := float64(1 + rnd.Intn(50))
		period := float64(1 + rnd.Intn(120))
		var (
			tat   float64
			found bool
			now   float64
		)
		for j := 0; j < 50; j++ {
			cost := float64(1 + rnd.Intn(int(rate)))
			d := decide(tat, found, now, burst, rate, period, cost)
			require.LessOrEqual(t, d.granted, cost)
			require.GreaterOrEqual(t, d.resetAfter, float64(0))
			if d.granted > 0 {
				require.Equal(t, float64(-1), d.retryAfter)
			} else {
				require.Zero(t, d.remaining)
				require.Greater(t, d.retryAfter, float64(0))
			}
			if d.write {
				tat, found = d.newTAT, true
			}
			if rnd.Intn(4) == 0 {
				// Waiting out resetAfter always leaves room for one request.
				now += d.resetAfter + 0.001
				next := decide(tat, found, now, burst, rate, period, cost)
				require.Greater(t, next.granted, float64(0))
			} else {
				now += rnd.Float64() * period / rate
			}
		}
	}
}

func TestInspectMatchesDecide(t *testing.T) {
	tat := decide(0, false, 0, 4, 4, 1, 3).newTAT

	p := inspect(tat, true, 0, 4, 4, 1)
	assert.Equal(t, float64(1), p.remaining)
	assert.Equal(t, float64(-1), p.retryAfter)
	assert.Equal(t, 0.75, p.resetAfter)

	tat = decide(tat, true, 0, 4, 4, 1, 1).newTAT
	p = inspect(tat, true, 0, 4, 4, 1)
	assert.Zero(t, p.remaining)
	assert.Equal(t, 0.25, p.retryAfter)
	assert.Equal(t, float64(1), p.resetAfter)
}

func TestStoreSeconds(t *testing.T) {
	assert.Zero(t, storeSeconds(jan2017))
	assert.Equal(t, 1.5, storeSeconds(jan2017.Add(1500*time.Millisecond)))
	// Sub-microsecond precision is dropped like Redis TIME does.
	assert.Equal(t, 0.000001, storeSeconds(jan2017.Add(1999*time.Nanosecond)))
}

func TestTTLSeconds(t *testing.T) {
	assert.Equal(t, int64(1), ttlSeconds(0.1))
	assert.Equal(t, int64(60), ttlSeconds(60))
	assert.Equal(t, int64(61), ttlSeconds(60.000001))
}

func TestDecideAtCurrentStoreTime(t *testing.T) {
	t.Run("burst of one", func(t *testing.T) {
		for us := 0; us < 2000; us++ {
			now := storeSeconds(oct2026.Add(time.Duration(us) * time.Microsecond))
			d := decide(0, false, now, 1, 3, 1, 1)
			require.Equal(t, float64(1), d.granted, "offset %dus", us)
			require.Zero(t, d.remaining)
			require.Equal(t, float64(1)/3, d.resetAfter)

			later := now + d.resetAfter
			next := decide(d.newTAT, true, later, 1, 3, 1, 1)
			require.Equal(t, float64(1), next.granted, "offset %dus after reset", us)
		}
	})

	t.Run("same instant burst", func(t *testing.T) {
		for us := 0; us < 1000; us++ {
			now := storeSeconds(oct2026.Add(time.Duration(us) * time.Microsecond))
			var (
				tat   float64
				found bool
			)
			for i := 0; i < 10; i++ {
				d := decide(tat, found, now, 10, 10, 1, 1)
				require.Equal(t, float64(1), d.granted, "offset %dus call %d", us, i+1)
				require.Equal(t, float64(9-i), d.remaining, "offset %dus call %d", us, i+1)
				// Stored text must read back to the same value.
				stored, err := strconv.ParseFloat(formatTAT(d.newTAT), 64)
				require.NoError(t, err)
				require.Equal(t, d.newTAT, stored)
				tat, found = stored, true
			}
			d := decide(tat, found, now, 10, 10, 1, 1)
			require.Zero(t, d.granted, "offset %dus", us)
			require.InDelta(t, 0.1, d.retryAfter, 1e-6)
		}
	})
}

func TestAvailableRoundsWithinOneTick(t *testing.T) {
	tests := []struct {
		name           string
		diff, interval float64
		want           float64
	}{
		{name: "exact", diff: 0.5, interval: 0.25, want: 2},
		{name: "just below whole", diff: 1 - 1e-7, interval: 1.0 / 3, want: 3},
		{name: "just above whole", diff: 1.0/3 + 1e-7, interval: 1.0 / 3, want: 1},
		{name: "fraction kept", diff: 0.375, interval: 0.25, want: 1.5},
		{name: "outside tick", diff: 1 - 1e-5, interval: 1, want: 1 - 1e-5},
		{name: "near zero", diff: 2e-8, interval: 0.1, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, available(tc.diff, tc.interval))
		})
	}
}
