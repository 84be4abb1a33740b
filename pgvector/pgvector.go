// Package pgvector provides a PostgreSQL-backed vector store using the
// pgvector extension. It offers the same insert/update/delete contract as
// the in-memory store plus server-side nearest-neighbor search.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vecmatch/vecmatch/distance"
	"github.com/vecmatch/vecmatch/index"
	"github.com/vecmatch/vecmatch/internal/queue"
	"github.com/vecmatch/vecmatch/metadata"
	"github.com/vecmatch/vecmatch/store"
)

// Compile-time checks: the PostgreSQL store satisfies both contracts.
var (
	_ store.Store = (*Store)(nil)
	_ index.Index = (*Store)(nil)
)

// Options customize the PostgreSQL store.
type Options struct {
	// Table is the table holding the collection. Defaults to "vectors".
	Table string

	// Metric selects the distance metric used by Query.
	Metric distance.Metric

	// ApproximateIndex creates an HNSW index on the embedding column
	// during migration. The planner may then serve ordered queries from
	// the approximate index scan, trading the exact top-k guarantee for
	// speed. Off by default: queries run exact sequential scans.
	ApproximateIndex bool
}

// DefaultOptions are the default PostgreSQL store options.
var DefaultOptions = Options{
	Table:  "vectors",
	Metric: distance.MetricEuclidean,
}

// Store is a vector store backed by PostgreSQL with the pgvector extension.
type Store struct {
	db        *sql.DB
	dimension int
	opts      Options
}

// New opens a PostgreSQL-backed store, creating the table and index if
// they do not exist.
func New(ctx context.Context, dsn string, dimension int, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dimension: dimension, opts: opts}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, m := range s.migrationStatements() {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// migrationStatements builds the DDL run by migrate. The HNSW index is
// only included when opted in via Options.ApproximateIndex.
func (s *Store) migrationStatements() []string {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB DEFAULT '{}'
		)`, s.opts.Table, s.dimension),
	}

	if s.opts.ApproximateIndex {
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding %s)`,
			s.opts.Table, s.opts.Table, s.vectorOps()))
	}

	return stmts
}

func (s *Store) vectorOps() string {
	switch s.opts.Metric {
	case distance.MetricCosine:
		return "vector_cosine_ops"
	case distance.MetricDotProduct:
		return "vector_ip_ops"
	default:
		return "vector_l2_ops"
	}
}

// distanceOperator returns the pgvector operator matching the configured
// metric. Each operator already yields the distance convention used by the
// in-memory indexes: true L2, cosine distance, negated inner product.
func (s *Store) distanceOperator() string {
	switch s.opts.Metric {
	case distance.MetricCosine:
		return "<=>"
	case distance.MetricDotProduct:
		return "<#>"
	default:
		return "<->"
	}
}

// Dimension returns the collection's vector dimensionality.
func (s *Store) Dimension() int {
	return s.dimension
}

// Metric returns the distance metric used by Query.
func (s *Store) Metric() distance.Metric {
	return s.opts.Metric
}

// Len returns the number of stored vectors.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.opts.Table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func (s *Store) validate(rec store.Record) error {
	if rec.ID == "" {
		return &store.ErrEmptyID{}
	}

	if len(rec.Vector) != s.dimension {
		return &store.ErrDimensionMismatch{Expected: s.dimension, Actual: len(rec.Vector)}
	}

	return rec.Metadata.Validate()
}

// Insert adds a new record. It fails with ErrDuplicateID when the
// identifier already exists.
func (s *Store) Insert(ctx context.Context, rec store.Record) error {
	if err := s.validate(rec); err != nil {
		return err
	}

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, s.opts.Table), rec.ID, formatVector(rec.Vector), meta)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return &store.ErrDuplicateID{ID: rec.ID}
	}

	return nil
}

// Update replaces an existing record. It fails with ErrNotFound when the
// identifier does not exist.
func (s *Store) Update(ctx context.Context, rec store.Record) error {
	if err := s.validate(rec); err != nil {
		return err
	}

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET embedding = $2, metadata = $3 WHERE id = $1
	`, s.opts.Table), rec.ID, formatVector(rec.Vector), meta)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return &store.ErrNotFound{ID: rec.ID}
	}

	return nil
}

// Delete removes a record by identifier.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &store.ErrEmptyID{}
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.opts.Table), id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return &store.ErrNotFound{ID: id}
	}

	return nil
}

// Get retrieves a record by identifier.
func (s *Store) Get(ctx context.Context, id string) (store.Record, error) {
	if id == "" {
		return store.Record{}, &store.ErrEmptyID{}
	}

	var (
		vectorStr string
		metaBytes []byte
	)

	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT embedding::text, metadata FROM %s WHERE id = $1
	`, s.opts.Table), id).Scan(&vectorStr, &metaBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, &store.ErrNotFound{ID: id}
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("query record: %w", err)
	}

	vec, err := parseVector(vectorStr)
	if err != nil {
		return store.Record{}, err
	}

	rec := store.Record{ID: id, Vector: vec}
	if len(metaBytes) > 0 {
		if err := json.Unmarshal(metaBytes, &rec.Metadata); err != nil {
			return store.Record{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return rec, nil
}

// BulkLoad inserts all records inside a single transaction. Either every
// record is committed or none are.
func (s *Store) BulkLoad(ctx context.Context, recs []store.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[string]struct{}, len(recs))

	for i, rec := range recs {
		if err := s.validate(rec); err != nil {
			return fmt.Errorf("bulk load entry %d (%q): %w", i, rec.ID, err)
		}

		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("bulk load entry %d (%q): %w", i, rec.ID, &store.ErrDuplicateID{ID: rec.ID})
		}
		seen[rec.ID] = struct{}{}

		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("bulk load entry %d (%q): marshal metadata: %w", i, rec.ID, err)
		}

		res, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, embedding, metadata)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, s.opts.Table), rec.ID, formatVector(rec.Vector), meta)
		if err != nil {
			return fmt.Errorf("bulk load entry %d (%q): %w", i, rec.ID, err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("bulk load entry %d (%q): %w", i, rec.ID, &store.ErrDuplicateID{ID: rec.ID})
		}
	}

	return tx.Commit()
}

// Query returns the k nearest neighbors of q, ordered by ascending
// distance with ties broken by ascending identifier. Filtered queries
// stream candidates and rank them client-side; unfiltered queries rank
// entirely in SQL.
func (s *Store) Query(ctx context.Context, q []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k < 1 {
		return nil, fmt.Errorf("k = %d: %w", k, index.ErrInvalidK)
	}

	if len(q) != s.dimension {
		return nil, &store.ErrDimensionMismatch{Expected: s.dimension, Actual: len(q)}
	}

	if opts == nil || (opts.Filter == nil && opts.FilterFunc == nil) {
		return s.queryAll(ctx, q, k)
	}

	return s.queryFiltered(ctx, q, k, opts)
}

func (s *Store) queryAll(ctx context.Context, q []float32, k int) ([]index.SearchResult, error) {
	op := s.distanceOperator()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, embedding %[1]s $1 AS dist
		FROM %[2]s
		ORDER BY dist, id
		LIMIT $2
	`, op, s.opts.Table), formatVector(q), k)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	var results []index.SearchResult
	for rows.Next() {
		var r index.SearchResult
		if err := rows.Scan(&r.ID, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

func (s *Store) queryFiltered(ctx context.Context, q []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	op := s.distanceOperator()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, metadata, embedding %[1]s $1 AS dist
		FROM %[2]s
	`, op, s.opts.Table), formatVector(q))
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	top := queue.NewTopK(k)

	for rows.Next() {
		var (
			id        string
			metaBytes []byte
			dist      float32
		)
		if err := rows.Scan(&id, &metaBytes, &dist); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if opts.FilterFunc != nil && !opts.FilterFunc(id) {
			continue
		}

		if opts.Filter != nil {
			var doc metadata.Document
			if len(metaBytes) > 0 {
				if err := json.Unmarshal(metaBytes, &doc); err != nil {
					return nil, fmt.Errorf("unmarshal metadata for %q: %w", id, err)
				}
			}
			if !opts.Filter.Matches(doc) {
				continue
			}
		}

		top.Push(queue.Item{ID: id, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := top.Drain()
	results := make([]index.SearchResult, len(items))
	for i, it := range items {
		results[i] = index.SearchResult{ID: it.ID, Distance: it.Distance}
	}

	return results, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// formatVector renders a vector in pgvector text form: "[0.1,0.2,0.3]".
func formatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector parses pgvector text form back into a float32 slice.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
