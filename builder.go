// This file implements a fluent builder API for creating and configuring
// collections. The builder is immutable - each method returns a new
// builder with the updated configuration.
package vecmatch

import (
	"github.com/vecmatch/vecmatch/codec"
	"github.com/vecmatch/vecmatch/distance"
	"github.com/vecmatch/vecmatch/embedding"
	"github.com/vecmatch/vecmatch/index/flat"
)

// Flat creates a new builder for an exact-search collection with the
// specified dimension.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration. This ensures thread-safety and prevents
// accidental state sharing.
//
// Example:
//
//	c, err := vecmatch.Flat(128).
//	    Cosine().
//	    Metrics(&vecmatch.BasicMetricsCollector{}).
//	    Build()
func Flat(dimension int) FlatBuilder {
	return FlatBuilder{
		dimension: dimension,
		metric:    distance.MetricEuclidean,
	}
}

// FlatBuilder is an immutable fluent builder for creating collections.
// Each method returns a new builder with the updated configuration.
type FlatBuilder struct {
	dimension         int
	metric            distance.Metric
	parallelThreshold int
	codec             codec.Codec
	logger            *Logger
	metrics           MetricsCollector
	embedder          embedding.Embedder
}

// Euclidean sets the distance metric to Euclidean (L2) distance.
func (b FlatBuilder) Euclidean() FlatBuilder {
	b.metric = distance.MetricEuclidean
	return b
}

// Cosine sets the distance metric to cosine distance.
func (b FlatBuilder) Cosine() FlatBuilder {
	b.metric = distance.MetricCosine
	return b
}

// DotProduct sets the distance metric to negated inner product.
func (b FlatBuilder) DotProduct() FlatBuilder {
	b.metric = distance.MetricDotProduct
	return b
}

// ParallelThreshold sets the collection size above which searches scan
// partitions in parallel.
func (b FlatBuilder) ParallelThreshold(n int) FlatBuilder {
	b.parallelThreshold = n
	return b
}

// Codec sets the codec used for writing snapshots.
func (b FlatBuilder) Codec(c codec.Codec) FlatBuilder {
	b.codec = c
	return b
}

// Logger sets the structured logger.
func (b FlatBuilder) Logger(l *Logger) FlatBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector.
func (b FlatBuilder) Metrics(mc MetricsCollector) FlatBuilder {
	b.metrics = mc
	return b
}

// Embedder sets the text embedder used by SearchText and InsertText.
func (b FlatBuilder) Embedder(e embedding.Embedder) FlatBuilder {
	b.embedder = e
	return b
}

// Build creates the collection.
func (b FlatBuilder) Build() (*Collection, error) {
	optFns := []Option{
		WithIndexOptions(func(o *flat.Options) {
			o.Metric = b.metric
			if b.parallelThreshold > 0 {
				o.ParallelThreshold = b.parallelThreshold
			}
		}),
	}

	if b.codec != nil {
		optFns = append(optFns, WithCodec(b.codec))
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(b.metrics))
	}
	if b.embedder != nil {
		optFns = append(optFns, WithEmbedder(b.embedder))
	}

	return New(b.dimension, optFns...)
}
