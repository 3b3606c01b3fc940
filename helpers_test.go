package gcra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// jan2017 is the store epoch; at this instant the scripts see now == 0,
// which keeps tenth-of-a-second schedules exact in tests.
var jan2017 = time.Unix(epoch2017, 0)

// oct2026 is a realistic store time: about 3.1e8 seconds after the epoch,
// where one float64 ulp is ~6e-8s.
var oct2026 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// storeClocks are the start times scenario tests run at.
var storeClocks = []struct {
	name  string
	start time.Time
}{
	{"epoch", jan2017},
	{"2026", oct2026},
}

// testTime is a fake clock.
type testTime struct {
	mu  sync.Mutex
	cur time.Time
}

func newTestTime(start time.Time) *testTime {
	return &testTime{cur: start}
}

// now returns the current fake time.
func (tt *testTime) now() time.Time {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.cur
}

// advance advances the fake time.
func (tt *testTime) advance(dur time.Duration) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.cur = tt.cur.Add(dur)
}

// countingClient records calls made through it and can inject failures.
type countingClient struct {
	Client

	loads    atomic.Int32
	evals    atomic.Int32
	loadErr  error
	evalErrs []error // returned in order, one per EvalSha call
	mu       sync.Mutex
}

func (c *countingClient) ScriptLoad(ctx context.Context, src string) (string, error) {
	c.loads.Add(1)
	if c.loadErr != nil {
		return "", c.loadErr
	}
	return c.Client.ScriptLoad(ctx, src)
}

func (c *countingClient) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) ([]interface{}, error) {
	c.evals.Add(1)
	c.mu.Lock()
	if len(c.evalErrs) > 0 {
		err := c.evalErrs[0]
		c.evalErrs = c.evalErrs[1:]
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()
	return c.Client.EvalSha(ctx, sha, keys, args...)
}

func newMemoryLimiter(t *testing.T, opts ...Option) (*Limiter, *MemoryClient, *testTime) {
	t.Helper()
	return newMemoryLimiterAt(t, jan2017, opts...)
}

func newMemoryLimiterAt(t *testing.T, start time.Time, opts ...Option) (*Limiter, *MemoryClient, *testTime) {
	t.Helper()
	clock := newTestTime(start)
	store := NewMemoryClient(WithClock(clock.now))
	return NewLimiter(store, opts...), store, clock
}

func call(t *testing.T, l *Limiter, key string, spec RateSpec) *Result {
	t.Helper()
	res, err := l.Allow(context.Background(), key, spec)
	require.NoError(t, err, "Allow(%s, %s)", key, spec)
	return res
}
