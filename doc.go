// Package vecmatch provides an embedded vector similarity matching core
// for Go.
//
// A Collection holds vectors keyed by opaque string identifiers and
// answers exact k-nearest-neighbor queries under Euclidean, cosine, or
// inner-product distance. Results come back ordered by ascending
// distance; equal distances are broken by ascending identifier, so
// queries are fully deterministic.
//
// Features:
//
//   - Thread-safe CRUD with copy-on-write snapshots: searches never
//     block writers and always observe a consistent state
//   - Atomic bulk loading: a batch either fully loads or leaves the
//     collection untouched
//   - Metadata filtering with a Roaring-Bitmap-backed inverted index
//   - Optional text pipeline: plug in an OpenAI-compatible embedder and
//     query by text instead of raw vectors
//   - Self-describing snapshots with pluggable codecs and compression,
//     storable on disk, in memory, S3, or MinIO
//   - A PostgreSQL/pgvector backend with the same store contract
//
// # Quick Start
//
// Create a collection with the fluent builder:
//
//	ctx := context.Background()
//	c, err := vecmatch.Flat(128).
//	    Cosine().
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//
// Insert vectors with metadata:
//
//	err = c.Insert(ctx, vecmatch.Record{
//	    ID:     "doc-1",
//	    Vector: vec,
//	    Metadata: metadata.Document{
//	        "category": metadata.String("tech"),
//	        "year":     metadata.Int(2024),
//	    },
//	})
//
// Search with the fluent API:
//
//	results, err := c.Search(query).
//	    KNN(10).
//	    WithMetadata(metadata.NewFilterSet(
//	        metadata.Eq("category", metadata.String("tech")),
//	    )).
//	    Execute(ctx)
//
// Query by text when an embedder is configured:
//
//	emb, _ := embedding.NewOpenAI(cfg)
//	c, _ := vecmatch.Flat(1536).Cosine().Embedder(emb).Build()
//	results, err := c.SearchText(ctx, "storage engines", 5)
package vecmatch
