package gcra

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptHashIsContentSHA1(t *testing.T) {
	sum := sha1.Sum([]byte(allowScriptSrc))
	assert.Equal(t, hex.EncodeToString(sum[:]), allowScript.Hash())
	assert.Equal(t, allowScriptSrc, allowScript.Source())
	assert.NotEqual(t, allowScript.Hash(), peekScript.Hash())
	assert.Equal(t, allowScript.Hash(), NewScript(allowScriptSrc).Hash())
}

func TestScriptReloadsAfterFlush(t *testing.T) {
	store := NewMemoryClient()
	client := &countingClient{Client: store}
	limiter := NewLimiter(client)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "k", PerSecond(5))
	require.NoError(t, err)
	require.Equal(t, int32(1), client.loads.Load())

	store.FlushScripts()

	res, err := limiter.Allow(ctx, "k", PerSecond(5))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Allowed)
	assert.Equal(t, int32(2), client.loads.Load())
	// one call before the flush, the failed one and its retry after it
	assert.Equal(t, int32(3), client.evals.Load())
}

func TestScriptRetriesOnlyOnce(t *testing.T) {
	stale := noScript(errors.New("NOSCRIPT No matching script. Please use EVAL."))
	client := &countingClient{Client: NewMemoryClient(), evalErrs: []error{stale, stale, stale}}
	limiter := NewLimiter(client)

	_, err := limiter.Allow(context.Background(), "k", PerSecond(5))

	require.ErrorIs(t, err, ErrNoScript)
	assert.Equal(t, int32(2), client.evals.Load())
	assert.Equal(t, int32(2), client.loads.Load())
}

func TestScriptLoadFailureIsRetriedNextCall(t *testing.T) {
	down := errors.New("dial tcp: connection refused")
	client := &countingClient{Client: NewMemoryClient(), loadErr: down}
	limiter := NewLimiter(client)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "k", PerSecond(5))
	require.ErrorIs(t, err, down)
	assert.Zero(t, client.evals.Load())

	client.loadErr = nil
	res, err := limiter.Allow(ctx, "k", PerSecond(5))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int32(2), client.loads.Load())
}

func TestScriptConcurrentFirstUseLoadsOnce(t *testing.T) {
	client := &countingClient{Client: NewMemoryClient()}
	limiter := NewLimiter(client)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limiter.Allow(context.Background(), "k", PerSecond(100))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), client.loads.Load())
}

func TestScriptInvalidateKeepsNewerHandle(t *testing.T) {
	h := newScriptHandle(allowScript, NewMemoryClient(), zerolog.Nop(), nil)
	old, err := h.ensure(context.Background())
	require.NoError(t, err)

	h.invalidate(old)
	fresh, err := h.ensure(context.Background())
	require.NoError(t, err)

	h.invalidate(old)
	assert.Same(t, fresh, h.sha.Load())
}

func TestNoScriptWrapping(t *testing.T) {
	assert.Nil(t, noScript(nil))

	other := errors.New("ERR wrong number of arguments")
	assert.Same(t, other, noScript(other))

	orig := errors.New("NOSCRIPT No matching script. Please use EVAL.")
	err := noScript(orig)
	assert.ErrorIs(t, err, ErrNoScript)
	assert.ErrorIs(t, err, orig)
}

func TestMemoryClientRejectsUnknownScript(t *testing.T) {
	store := NewMemoryClient()
	ctx := context.Background()

	_, err := store.ScriptLoad(ctx, "return 1")
	require.Error(t, err)

	_, err = store.EvalSha(ctx, allowScript.Hash(), []string{"k"}, "1", "1", "1", "1")
	require.ErrorIs(t, err, ErrNoScript)
}
