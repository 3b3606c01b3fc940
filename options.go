package gcra

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPrefix namespaces limiter keys in the store.
const DefaultPrefix = "rate_limit:"

// Option configures a Limiter.
type Option func(*Limiter)

// WithPrefix sets the namespace prepended to every key.
func WithPrefix(prefix string) Option {
	return func(l *Limiter) { l.prefix = prefix }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// WithMetrics records decisions and store activity in m.
func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithTracerProvider sets the provider used to trace Allow calls. The
// default is the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Limiter) { l.tracerProvider = tp }
}
