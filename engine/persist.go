package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/viant/imagespider/catalog"
	"github.com/viant/imagespider/index"
	"github.com/viant/imagespider/store"
)

func (e *Engine) header() catalog.Header {
	return catalog.Header{
		Model:     e.extractor.Model(),
		Dimension: e.extractor.Dimension(),
		Metric:    e.opts.Index.Metric,
		Root:      e.Root(),
	}
}

func (e *Engine) expect() catalog.Expect {
	return catalog.Expect{
		Model:     e.extractor.Model(),
		Dimension: e.extractor.Dimension(),
		Metric:    e.opts.Index.Metric,
	}
}

// entries pairs stored embeddings with their record paths.
func (e *Engine) entries() []catalog.Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stored := e.store.All()
	out := make([]catalog.Entry, len(stored))
	for i, s := range stored {
		out[i] = catalog.Entry{Seq: s.Seq, ID: s.ID, Path: e.records[s.ID].Path, Vector: s.Vector}
	}
	return out
}

// Save writes the stored embeddings into c.
func (e *Engine) Save(ctx context.Context, c *catalog.Catalog) error {
	return c.Save(ctx, e.header(), e.entries())
}

// Load replaces the collection with the content of c. The catalog must
// have been written with the same model, dimension and metric. An engine
// without a root adopts the catalog's so stored paths keep resolving to
// their identifiers.
func (e *Engine) Load(ctx context.Context, c *catalog.Catalog) (int, error) {
	h, entries, err := c.Load(ctx, e.expect())
	if err != nil {
		return 0, err
	}
	return len(entries), e.restore(ctx, h, entries)
}

// WriteSnapshot writes the stored embeddings as a portable snapshot.
func (e *Engine) WriteSnapshot(w io.Writer) error {
	return catalog.WriteSnapshot(w, e.header(), e.entries())
}

// ReadSnapshot replaces the collection with a snapshot's content.
func (e *Engine) ReadSnapshot(ctx context.Context, r io.Reader) (int, error) {
	h, entries, err := catalog.ReadSnapshot(r)
	if err != nil {
		return 0, err
	}
	if err := e.expect().Check(h); err != nil {
		return 0, err
	}
	return len(entries), e.restore(ctx, h, entries)
}

func (e *Engine) restore(ctx context.Context, h catalog.Header, entries []catalog.Entry) error {
	st := store.New(e.extractor.Dimension())
	records := make(map[string]Record, len(entries))
	for _, entry := range entries {
		if err := st.AddAt(entry.Seq, entry.ID, entry.Vector); err != nil {
			return fmt.Errorf("engine: restore %q: %w", entry.ID, err)
		}
		records[entry.ID] = Record{ID: entry.ID, Path: entry.Path, Status: StatusOK, Seq: entry.Seq}
	}
	sim, err := index.Build(st, e.opts.Index)
	e.log.LogRebuild(ctx, st.Len(), strategyOf(sim), err)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.store, e.sim, e.records = st, sim, records
	if e.root == "" {
		e.root = h.Root
	}
	e.mu.Unlock()
	return nil
}
