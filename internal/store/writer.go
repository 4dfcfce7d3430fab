package store

import (
	"context"

	"github.com/manak-ai/stratum/internal/apperr"
	"github.com/manak-ai/stratum/internal/chunk"
	"github.com/manak-ai/stratum/internal/infer"
)

// Writer embeds content and persists it into one collection.
type Writer struct {
	col      *Collection
	embedder infer.Embedder
}

func NewWriter(col *Collection, embedder infer.Embedder) *Writer {
	return &Writer{col: col, embedder: embedder}
}

// WriteChunks embeds the chunk contents in one batch and upserts them.
func (w *Writer) WriteChunks(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	records := make([]Record, len(chunks))
	for i, ch := range chunks {
		records[i] = Record{ID: ch.ID, Content: ch.Content, Meta: ch.Meta, Vector: vectors[i]}
	}
	if err := w.col.Upsert(records); err != nil {
		return apperr.StoreWrite("upsert chunks into "+w.col.Name(), err)
	}
	return nil
}

// WriteOverview embeds a single overview text and upserts it.
func (w *Writer) WriteOverview(ctx context.Context, id, text string, meta map[string]any) error {
	vector, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	rec := Record{ID: id, Content: text, Meta: meta, Vector: vector}
	if err := w.col.Upsert([]Record{rec}); err != nil {
		return apperr.StoreWrite("upsert overview into "+w.col.Name(), err)
	}
	return nil
}
