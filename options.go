package vecmatch

import (
	"log/slog"

	"github.com/vecmatch/vecmatch/codec"
	"github.com/vecmatch/vecmatch/embedding"
	"github.com/vecmatch/vecmatch/index/flat"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	embedder         embedding.Embedder
	indexOptFns      []func(o *flat.Options)
}

// Option configures collection constructor behavior.
type Option func(*options)

// WithCodec configures the codec used for writing snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithEmbedder configures the text embedder used by SearchText and
// InsertText. Without an embedder, text operations fail with
// ErrNoEmbedder.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithIndexOptions forwards options to the underlying index, e.g. to
// tune the parallel scan threshold.
func WithIndexOptions(optFns ...func(o *flat.Options)) Option {
	return func(o *options) {
		o.indexOptFns = append(o.indexOptFns, optFns...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecmatch.BasicMetricsCollector{}
//	c, _ := vecmatch.New(128, vecmatch.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecmatch.NewJSONLogger(slog.LevelInfo)
//	c, _ := vecmatch.New(128, vecmatch.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
