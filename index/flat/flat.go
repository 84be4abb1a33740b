// Package flat provides an exact brute-force similarity index.
//
// The flat index is the correctness reference: it computes the distance to
// every live record and keeps the k best in a bounded heap. Scans over large
// collections are partitioned across goroutines with a deterministic merge,
// so the result is identical to a sequential scan.
package flat

import (
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/vecmatch/vecmatch/distance"
	"github.com/vecmatch/vecmatch/index"
	"github.com/vecmatch/vecmatch/internal/queue"
	"github.com/vecmatch/vecmatch/store"
)

// Compile-time check to ensure Flat satisfies the Index interface.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Metric is the distance metric used for ranking.
	Metric distance.Metric

	// ParallelThreshold is the minimum number of rows before a scan is
	// partitioned across goroutines. Small collections scan sequentially.
	ParallelThreshold int

	// Procs caps the number of scan goroutines. Defaults to GOMAXPROCS.
	Procs int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric:            distance.MetricEuclidean,
	ParallelThreshold: 4096,
}

// Flat is an exact brute-force index over a Memory store.
type Flat struct {
	mem      *store.Memory
	distFunc distance.Func
	opts     Options
}

// New creates a flat index over the given store.
func New(mem *store.Memory, optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultOptions.ParallelThreshold
	}
	if opts.Procs <= 0 {
		opts.Procs = runtime.GOMAXPROCS(0)
	}

	return &Flat{
		mem:      mem,
		distFunc: distFunc,
		opts:     opts,
	}, nil
}

// Metric implements index.Index.
func (f *Flat) Metric() distance.Metric {
	return f.opts.Metric
}

// Query implements index.Index.
func (f *Flat) Query(ctx context.Context, q []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, index.ErrInvalidK
	}

	sn := f.mem.Snapshot()
	if sn.Len() == 0 {
		return nil, nil
	}
	if dim := sn.Dimension(); dim > 0 && len(q) != dim {
		return nil, &store.ErrDimensionMismatch{Expected: dim, Actual: len(q)}
	}

	accept := f.compileFilter(sn, opts)

	if sn.Rows() < f.opts.ParallelThreshold {
		return f.scan(ctx, sn, q, k, 0, uint32(sn.Rows()), accept)
	}
	return f.scanParallel(ctx, sn, q, k, accept)
}

// rowFilter decides whether a live record participates in the scan.
type rowFilter func(rowID uint32, rec store.Record) bool

// compileFilter builds the candidate predicate from the search options.
// Equality filters are compiled against the store's inverted metadata index;
// other operators fall back to matching the record's document during the scan.
func (f *Flat) compileFilter(sn *store.Snapshot, opts *index.SearchOptions) rowFilter {
	if opts == nil || (opts.Filter == nil && opts.FilterFunc == nil) {
		return nil
	}

	var metaAccept func(rec store.Record, rowID uint32) bool
	if fs := opts.Filter; fs != nil && len(fs.Filters) > 0 {
		if compiled, ok := sn.MetaIndex().Compile(fs); ok {
			metaAccept = func(_ store.Record, rowID uint32) bool { return compiled(rowID) }
		} else {
			metaAccept = func(rec store.Record, _ uint32) bool { return fs.Matches(rec.Metadata) }
		}
	}

	idAccept := opts.FilterFunc

	return func(rowID uint32, rec store.Record) bool {
		if metaAccept != nil && !metaAccept(rec, rowID) {
			return false
		}
		if idAccept != nil && !idAccept(rec.ID) {
			return false
		}
		return true
	}
}

// scan performs a sequential top-k scan over the row range [lo, hi).
func (f *Flat) scan(ctx context.Context, sn *store.Snapshot, q []float32, k int, lo, hi uint32, accept rowFilter) ([]index.SearchResult, error) {
	top := queue.NewTopK(k)

	for rowID := lo; rowID < hi; rowID++ {
		if rowID%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, ok := sn.RowAt(rowID)
		if !ok {
			continue
		}
		if accept != nil && !accept(rowID, rec) {
			continue
		}
		top.Push(queue.Item{ID: rec.ID, Distance: f.distFunc(q, rec.Vector)})
	}

	items := top.Drain()
	results := make([]index.SearchResult, len(items))
	for i, item := range items {
		results[i] = index.SearchResult{ID: item.ID, Distance: item.Distance}
	}
	return results, nil
}

// scanParallel partitions the row space across goroutines and merges the
// partial top-k sets deterministically.
func (f *Flat) scanParallel(ctx context.Context, sn *store.Snapshot, q []float32, k int, accept rowFilter) ([]index.SearchResult, error) {
	rows := uint32(sn.Rows())
	procs := f.opts.Procs
	if procs > int(rows) {
		procs = int(rows)
	}

	partials := make([][]index.SearchResult, procs)
	chunk := (rows + uint32(procs) - 1) / uint32(procs)

	g, gctx := errgroup.WithContext(ctx)
	for p := range procs {
		lo := uint32(p) * chunk
		hi := min(lo+chunk, rows)
		g.Go(func() error {
			part, err := f.scan(gctx, sn, q, k, lo, hi, accept)
			if err != nil {
				return err
			}
			partials[p] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]index.SearchResult, 0, procs*k)
	for _, part := range partials {
		merged = append(merged, part...)
	}
	slices.SortFunc(merged, func(a, b index.SearchResult) int {
		if a.Distance != b.Distance {
			if a.Distance < b.Distance {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}
