package gcra

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Script is a Lua script addressed by the SHA1 of its body, the same
// digest Redis uses for SCRIPT LOAD and EVALSHA.
type Script struct {
	src  string
	hash string
}

// NewScript returns a Script for src.
func NewScript(src string) *Script {
	sum := sha1.Sum([]byte(src))
	return &Script{src: src, hash: hex.EncodeToString(sum[:])}
}

// Hash returns the lowercase hex SHA1 of the script body.
func (s *Script) Hash() string { return s.hash }

// Source returns the script body.
func (s *Script) Source() string { return s.src }

// scriptHandle tracks whether a Script is registered with one Client.
// Concurrent first callers share a single SCRIPT LOAD; a failed load leaves
// the handle empty so that the next caller tries again.
type scriptHandle struct {
	script  *Script
	client  Client
	log     zerolog.Logger
	metrics *Metrics

	mu  sync.Mutex
	sha atomic.Pointer[string]
}

func newScriptHandle(s *Script, c Client, log zerolog.Logger, m *Metrics) *scriptHandle {
	return &scriptHandle{script: s, client: c, log: log, metrics: m}
}

// ensure returns the registered SHA, loading the script first if needed.
func (h *scriptHandle) ensure(ctx context.Context) (*string, error) {
	if sha := h.sha.Load(); sha != nil {
		return sha, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sha := h.sha.Load(); sha != nil {
		return sha, nil
	}

	got, err := h.client.ScriptLoad(ctx, h.script.src)
	if err != nil {
		h.metrics.storeError("script_load")
		return nil, fmt.Errorf("gcra: load script %s: %w", h.script.hash, err)
	}
	h.metrics.scriptLoaded()
	if got != h.script.hash {
		h.log.Warn().Str("want", h.script.hash).Str("got", got).Msg("store returned a different script sha")
	}
	h.log.Debug().Str("sha", got).Msg("script loaded")
	h.sha.Store(&got)
	return &got, nil
}

// invalidate forgets stale unless another caller already replaced it.
func (h *scriptHandle) invalidate(stale *string) {
	h.sha.CompareAndSwap(stale, nil)
}

// run invokes the script by SHA. When the store no longer knows the SHA the
// script is loaded again and the call retried once.
func (h *scriptHandle) run(ctx context.Context, keys []string, args ...interface{}) ([]interface{}, error) {
	sha, err := h.ensure(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := h.client.EvalSha(ctx, *sha, keys, args...)
	if err == nil {
		return reply, nil
	}
	if !errors.Is(err, ErrNoScript) {
		h.metrics.storeError("evalsha")
		return nil, err
	}

	h.log.Warn().Str("sha", *sha).Msg("script missing from store, reloading")
	h.invalidate(sha)
	sha, err = h.ensure(ctx)
	if err != nil {
		return nil, err
	}
	reply, err = h.client.EvalSha(ctx, *sha, keys, args...)
	if err != nil {
		h.metrics.storeError("evalsha")
		return nil, fmt.Errorf("gcra: run script %s after reload: %w", *sha, err)
	}
	return reply, nil
}
