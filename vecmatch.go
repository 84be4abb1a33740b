package vecmatch

import (
	"context"
	"io"
	"time"

	"github.com/vecmatch/vecmatch/blobstore"
	"github.com/vecmatch/vecmatch/distance"
	"github.com/vecmatch/vecmatch/embedding"
	"github.com/vecmatch/vecmatch/index"
	"github.com/vecmatch/vecmatch/index/flat"
	"github.com/vecmatch/vecmatch/metadata"
	"github.com/vecmatch/vecmatch/snapshot"
	"github.com/vecmatch/vecmatch/store"
)

// Record is a vector with its identifier and optional metadata.
type Record = store.Record

// SearchResult is a single nearest-neighbor match.
type SearchResult = index.SearchResult

// Collection is a vector collection with exact nearest-neighbor search,
// metadata filtering, and optional text embedding.
//
// All operations are safe for concurrent use. Readers never block
// writers; searches observe the collection state at the moment they
// start.
type Collection struct {
	mem      *store.Memory
	idx      *flat.Flat
	opts     options
	embedder embedding.Embedder
	metrics  MetricsCollector
	logger   *Logger
}

// New creates an empty collection with the given vector dimensionality.
// A dimension of zero means the collection adopts the dimension of the
// first inserted vector.
func New(dimension int, optFns ...Option) (*Collection, error) {
	opts := applyOptions(optFns)

	mem, err := store.NewMemory(dimension)
	if err != nil {
		return nil, translateError(err)
	}

	idx, err := flat.New(mem, opts.indexOptFns...)
	if err != nil {
		return nil, translateError(err)
	}

	return &Collection{
		mem:      mem,
		idx:      idx,
		opts:     opts,
		embedder: opts.embedder,
		metrics:  opts.metricsCollector,
		logger:   opts.logger,
	}, nil
}

// Dimension returns the collection's vector dimensionality. Zero means
// the dimension is not fixed yet.
func (c *Collection) Dimension() int {
	return c.mem.Dimension()
}

// Metric returns the distance metric used for search.
func (c *Collection) Metric() distance.Metric {
	return c.idx.Metric()
}

// Len returns the number of records in the collection.
func (c *Collection) Len(ctx context.Context) (int, error) {
	n, err := c.mem.Len(ctx)
	return n, translateError(err)
}

// Insert adds a new record to the collection. The identifier must be
// non-empty and unique.
func (c *Collection) Insert(ctx context.Context, rec Record) error {
	start := time.Now()
	err := translateError(c.mem.Insert(ctx, rec))
	c.metrics.RecordInsert(time.Since(start), err)
	c.logger.LogInsert(ctx, rec.ID, len(rec.Vector), err)
	return err
}

// Update replaces an existing record's vector and metadata.
func (c *Collection) Update(ctx context.Context, rec Record) error {
	start := time.Now()
	err := translateError(c.mem.Update(ctx, rec))
	c.metrics.RecordUpdate(time.Since(start), err)
	c.logger.LogUpdate(ctx, rec.ID, err)
	return err
}

// Delete removes a record by identifier.
func (c *Collection) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := translateError(c.mem.Delete(ctx, id))
	c.metrics.RecordDelete(time.Since(start), err)
	c.logger.LogDelete(ctx, id, err)
	return err
}

// Get retrieves a record by identifier.
func (c *Collection) Get(ctx context.Context, id string) (Record, error) {
	rec, err := c.mem.Get(ctx, id)
	return rec, translateError(err)
}

// BulkLoad inserts a batch of records atomically: either every record is
// added or the collection is left unchanged.
func (c *Collection) BulkLoad(ctx context.Context, recs []Record) error {
	start := time.Now()
	err := translateError(c.mem.BulkLoad(ctx, recs))
	c.metrics.RecordBulkLoad(len(recs), time.Since(start), err)
	c.logger.LogBulkLoad(ctx, len(recs), err)
	return err
}

// KNNSearchOptions holds optional settings for KNNSearch.
type KNNSearchOptions struct {
	// Filter restricts results to records whose metadata matches every
	// condition in the set.
	Filter *metadata.FilterSet

	// FilterFunc restricts results to identifiers for which it returns
	// true.
	FilterFunc func(id string) bool
}

// KNNSearch returns the k nearest neighbors of the query vector, ordered
// by ascending distance with ties broken by ascending identifier.
func (c *Collection) KNNSearch(ctx context.Context, query []float32, k int, optFns ...func(o *KNNSearchOptions)) ([]SearchResult, error) {
	opts := KNNSearchOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()
	results, err := c.idx.Query(ctx, query, k, &index.SearchOptions{
		Filter:     opts.Filter,
		FilterFunc: opts.FilterFunc,
	})
	err = translateError(err)
	c.metrics.RecordSearch(k, time.Since(start), err)
	c.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SaveToWriter writes a snapshot of the collection to w.
func (c *Collection) SaveToWriter(w io.Writer, optFns ...func(o *snapshot.Options)) error {
	optFns = append([]func(o *snapshot.Options){func(o *snapshot.Options) {
		o.Codec = c.opts.codec
	}}, optFns...)
	return snapshot.Write(c.mem, w, optFns...)
}

// SaveSnapshot writes a snapshot of the collection to the blob store
// under the given name.
func (c *Collection) SaveSnapshot(ctx context.Context, bs blobstore.Store, name string, optFns ...func(o *snapshot.Options)) error {
	optFns = append([]func(o *snapshot.Options){func(o *snapshot.Options) {
		o.Codec = c.opts.codec
	}}, optFns...)
	err := snapshot.Save(ctx, bs, name, c.mem, optFns...)
	c.logger.LogSnapshot(ctx, name, err)
	return err
}

// LoadFromReader rebuilds a collection from a snapshot.
func LoadFromReader(r io.Reader, optFns ...Option) (*Collection, error) {
	opts := applyOptions(optFns)

	mem, err := snapshot.Read(r)
	if err != nil {
		return nil, err
	}

	return newFromMemory(mem, opts)
}

// LoadSnapshot rebuilds a collection from a snapshot blob.
func LoadSnapshot(ctx context.Context, bs blobstore.Store, name string, optFns ...Option) (*Collection, error) {
	opts := applyOptions(optFns)

	mem, err := snapshot.Load(ctx, bs, name)
	if err != nil {
		return nil, err
	}

	return newFromMemory(mem, opts)
}

func newFromMemory(mem *store.Memory, opts options) (*Collection, error) {
	idx, err := flat.New(mem, opts.indexOptFns...)
	if err != nil {
		return nil, translateError(err)
	}

	return &Collection{
		mem:      mem,
		idx:      idx,
		opts:     opts,
		embedder: opts.embedder,
		metrics:  opts.metricsCollector,
		logger:   opts.logger,
	}, nil
}
