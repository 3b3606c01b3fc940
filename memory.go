package gcra

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemoryClient is an in-process store that runs the limiter scripts
// natively. Every script call holds one mutex, which gives the same
// atomicity Redis gives a Lua script, but only within this process.
// It is meant for tests and single-instance deployments.
//
// Script registration behaves like Redis: EvalSha fails with ErrNoScript
// until the script is loaded, and FlushScripts forgets every script.
type MemoryClient struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
	loaded  map[string]bool
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memoryProcedure func(m *MemoryClient, key string, args []float64, now time.Time) ([]interface{}, error)

var memoryProcedures = map[string]memoryProcedure{
	allowScript.Hash(): (*MemoryClient).runAllow,
	peekScript.Hash():  (*MemoryClient).runPeek,
}

// MemoryOption configures a MemoryClient.
type MemoryOption func(*MemoryClient)

// WithClock replaces time.Now as the store clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryClient) { m.now = now }
}

// NewMemoryClient returns an empty in-process store.
func NewMemoryClient(opts ...MemoryOption) *MemoryClient {
	m := &MemoryClient{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		loaded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ScriptLoad registers one of the limiter scripts. Other scripts cannot run
// in process and are rejected.
func (m *MemoryClient) ScriptLoad(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sha := NewScript(src).Hash()
	if _, ok := memoryProcedures[sha]; !ok {
		return "", fmt.Errorf("gcra: memory store cannot run script %s", sha)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded[sha] = true
	return sha, nil
}

func (m *MemoryClient) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(keys) != 1 {
		return nil, fmt.Errorf("gcra: memory store expects 1 key, got %d", len(keys))
	}
	nums := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(fmt.Sprint(a), 64)
		if err != nil {
			return nil, fmt.Errorf("gcra: argument %d: %w", i+1, err)
		}
		nums[i] = f
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded[sha] {
		return nil, fmt.Errorf("%w: NOSCRIPT No matching script %s", ErrNoScript, sha)
	}
	return memoryProcedures[sha](m, keys[0], nums, m.now())
}

func (m *MemoryClient) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key, m.now())
	return e.value, ok, nil
}

func (m *MemoryClient) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryClient) Close() error { return nil }

// TTL returns the time left before key expires.
func (m *MemoryClient) TTL(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.lookup(key, now)
	if !ok {
		return 0, false
	}
	return e.expiresAt.Sub(now), true
}

// FlushScripts forgets every loaded script, like SCRIPT FLUSH.
func (m *MemoryClient) FlushScripts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = make(map[string]bool)
}

// Len returns the number of live keys.
func (m *MemoryClient) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k := range m.entries {
		if _, ok := m.lookup(k, now); ok {
			n++
		}
	}
	return n
}

// lookup must be called with mu held. Expired entries are dropped.
func (m *MemoryClient) lookup(key string, now time.Time) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryClient) storedTAT(key string, now time.Time) (float64, bool, error) {
	e, ok := m.lookup(key, now)
	if !ok {
		return 0, false, nil
	}
	tat, err := strconv.ParseFloat(e.value, 64)
	if err != nil {
		return 0, false, fmt.Errorf("gcra: stored value for %q is not a number: %w", key, err)
	}
	return tat, true, nil
}

func (m *MemoryClient) runAllow(key string, args []float64, now time.Time) ([]interface{}, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("gcra: allow script expects 4 arguments, got %d", len(args))
	}
	tat, found, err := m.storedTAT(key, now)
	if err != nil {
		return nil, err
	}
	d := decide(tat, found, storeSeconds(now), args[0], args[1], args[2], args[3])
	if d.write {
		m.entries[key] = memoryEntry{
			value:     formatTAT(d.newTAT),
			expiresAt: now.Add(time.Duration(ttlSeconds(d.resetAfter)) * time.Second),
		}
	}
	return d.reply(), nil
}

func (m *MemoryClient) runPeek(key string, args []float64, now time.Time) ([]interface{}, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("gcra: peek script expects 3 arguments, got %d", len(args))
	}
	tat, found, err := m.storedTAT(key, now)
	if err != nil {
		return nil, err
	}
	return inspect(tat, found, storeSeconds(now), args[0], args[1], args[2]).reply(), nil
}

// reply encodes d the way Redis returns the script result: Lua numbers
// become truncated integers, timings stay text.
func (d decision) reply() []interface{} {
	return []interface{}{
		int64(d.granted),
		int64(d.remaining),
		strconv.FormatFloat(d.retryAfter, 'g', -1, 64),
		strconv.FormatFloat(d.resetAfter, 'g', -1, 64),
	}
}
