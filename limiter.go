package gcra

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sagarsuperuser/gcra"

// Limiter checks keys against RateSpecs held in a shared store.
// It is safe for concurrent use; all coordination happens in the store.
type Limiter struct {
	client         Client
	prefix         string
	log            zerolog.Logger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer

	allow *scriptHandle
	peek  *scriptHandle
}

// NewLimiter returns a new Limiter. Scripts are loaded on first use; call
// Init to load them eagerly.
func NewLimiter(client Client, opts ...Option) *Limiter {
	l := &Limiter{
		client: client,
		prefix: DefaultPrefix,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracerProvider == nil {
		l.tracerProvider = otel.GetTracerProvider()
	}
	l.tracer = l.tracerProvider.Tracer(tracerName)
	l.allow = newScriptHandle(allowScript, client, l.log, l.metrics)
	l.peek = newScriptHandle(peekScript, client, l.log, l.metrics)
	return l
}

// Init registers the limiter scripts with the store.
func (l *Limiter) Init(ctx context.Context) error {
	if _, err := l.allow.ensure(ctx); err != nil {
		return err
	}
	_, err := l.peek.ensure(ctx)
	return err
}

// Allow spends spec.Cost tokens from key's bucket, or as many as are left.
// An invalid spec fails with ErrInvalidSpec without contacting the store.
// Store failures are returned as errors, never as a denial.
func (l *Limiter) Allow(ctx context.Context, key string, spec RateSpec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ctx, span := l.tracer.Start(ctx, "gcra.Allow", trace.WithAttributes(
		attribute.String("gcra.key", key),
		attribute.Int64("gcra.cost", spec.Cost),
	))
	defer span.End()

	start := time.Now()
	res, err := l.run(ctx, l.allow, key, spec, spec.args())
	l.metrics.observe(res, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.log.Error().Err(err).Str("key", key).Msg("allow failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("gcra.allowed", res.Allowed),
		attribute.Int64("gcra.remaining", res.Remaining),
	)
	l.log.Debug().
		Str("key", key).
		Int64("cost", spec.Cost).
		Int64("allowed", res.Allowed).
		Int64("remaining", res.Remaining).
		Msg("allow")
	return res, nil
}

// AllowPerSecond allows at most n requests every seconds seconds with a
// burst of n. seconds below 1 means 1.
func (l *Limiter) AllowPerSecond(ctx context.Context, key string, n int64, seconds int) (*Result, error) {
	return l.Allow(ctx, key, Every(n, multiple(seconds)*time.Second))
}

// AllowPerMinute allows at most n requests every minutes minutes with a
// burst of n. minutes below 1 means 1.
func (l *Limiter) AllowPerMinute(ctx context.Context, key string, n int64, minutes int) (*Result, error) {
	return l.Allow(ctx, key, Every(n, multiple(minutes)*time.Minute))
}

// AllowPerHour allows at most n requests every hours hours with a burst of
// n. hours below 1 means 1.
func (l *Limiter) AllowPerHour(ctx context.Context, key string, n int64, hours int) (*Result, error) {
	return l.Allow(ctx, key, Every(n, multiple(hours)*time.Hour))
}

// Peek reports the state of key's bucket under spec without spending
// anything. Allowed is always 0; Remaining is the number of whole tokens
// available and RetryAfter is NoRetry when at least one is.
func (l *Limiter) Peek(ctx context.Context, key string, spec RateSpec) (*Result, error) {
	spec.Cost = 1
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return l.run(ctx, l.peek, key, spec, spec.args()[:3])
}

// Reset removes any tracking for this key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key); err != nil {
		l.metrics.storeError("del")
		return err
	}
	return nil
}

// Key returns the store key used for key.
func (l *Limiter) Key(key string) string {
	return l.prefix + key
}

func (l *Limiter) run(ctx context.Context, h *scriptHandle, key string, spec RateSpec, args []interface{}) (*Result, error) {
	reply, err := h.run(ctx, []string{l.prefix + key}, args...)
	if err != nil {
		return nil, err
	}
	return parseReply(spec, reply)
}
