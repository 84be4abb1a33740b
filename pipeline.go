package vecmatch

import (
	"context"
	"time"

	"github.com/vecmatch/vecmatch/metadata"
)

// embed runs the configured embedder with metrics and logging attached.
func (c *Collection) embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, ErrNoEmbedder
	}

	start := time.Now()
	vec, err := c.embedder.Embed(ctx, text)
	err = translateError(err)
	c.metrics.RecordEmbed(time.Since(start), err)
	c.logger.LogEmbed(ctx, len(text), err)
	return vec, err
}

// InsertText embeds the given text and inserts the resulting vector
// under the given identifier. Requires an embedder; see WithEmbedder.
func (c *Collection) InsertText(ctx context.Context, id, text string, meta metadata.Document) error {
	vec, err := c.embed(ctx, text)
	if err != nil {
		return err
	}

	return c.Insert(ctx, Record{ID: id, Vector: vec, Metadata: meta})
}

// UpdateText embeds the given text and replaces the record's vector and
// metadata.
func (c *Collection) UpdateText(ctx context.Context, id, text string, meta metadata.Document) error {
	vec, err := c.embed(ctx, text)
	if err != nil {
		return err
	}

	return c.Update(ctx, Record{ID: id, Vector: vec, Metadata: meta})
}

// SearchText embeds the query text and returns its k nearest neighbors.
// Requires an embedder; see WithEmbedder.
func (c *Collection) SearchText(ctx context.Context, text string, k int, optFns ...func(o *KNNSearchOptions)) ([]SearchResult, error) {
	vec, err := c.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	return c.KNNSearch(ctx, vec, k, optFns...)
}
