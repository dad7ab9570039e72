package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/viant/imagespider/extractor"
	"github.com/viant/imagespider/imaging"
	"github.com/viant/imagespider/index"
	"github.com/viant/imagespider/store"
)

// ReasonTimeout is the skip reason of an image whose embedding exceeded
// Options.EmbedTimeout.
const ReasonTimeout = "timeout"

// DefaultK is used when neither the request nor Options set k.
const DefaultK = 5

// Options configure an Engine.
type Options struct {
	// Root is the collection folder identifiers are derived relative to.
	Root string
	// Workers bounds parallel decode+embed, runtime.NumCPU() when 0.
	Workers int
	// EmbedTimeout bounds one image's embedding, 0 for no limit.
	EmbedTimeout time.Duration
	// KDefault replaces a non-positive k in FindSimilar.
	KDefault int
	Index    index.Options
	// Decoder sets normalisation; its Size is taken from the extractor.
	Decoder imaging.Options
	Logger  *Logger
}

// Engine is safe for concurrent use. Queries run under a read lock;
// indexing swaps in a new store and index under the write lock.
type Engine struct {
	extractor extractor.Extractor
	decoder   *imaging.Decoder
	opts      Options
	log       *Logger

	mu      sync.RWMutex
	root    string
	store   *store.Store
	sim     *index.Similarity
	records map[string]Record
}

// New creates an engine with an empty collection.
func New(ext extractor.Extractor, opts Options) (*Engine, error) {
	if ext == nil {
		return nil, errors.New("engine: nil extractor")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.KDefault <= 0 {
		opts.KDefault = DefaultK
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.Root != "" {
		root, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, fmt.Errorf("engine: root: %w", err)
		}
		opts.Root = root
	}
	decOpts := opts.Decoder
	decOpts.Size = ext.InputSize()
	e := &Engine{
		extractor: ext,
		decoder:   imaging.NewDecoder(decOpts),
		opts:      opts,
		log:       opts.Logger,
	}
	st := store.New(ext.Dimension())
	sim, err := index.Build(st, opts.Index)
	if err != nil {
		return nil, err
	}
	e.root, e.store, e.sim, e.records = opts.Root, st, sim, map[string]Record{}
	e.opts.Index = sim.Options()
	return e, nil
}

// Extractor returns the feature extractor.
func (e *Engine) Extractor() extractor.Extractor { return e.extractor }

// Options returns the effective options.
func (e *Engine) Options() Options {
	opts := e.opts
	opts.Root = e.Root()
	return opts
}

// Root returns the collection folder identifiers are derived from. A
// catalog or snapshot load sets it when the engine was created without one.
func (e *Engine) Root() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

// Identifier derives the stable identifier of path: its slash-separated
// path relative to Root, or the cleaned path when there is no Root or path
// lies outside it.
func (e *Engine) Identifier(path string) string {
	if root := e.Root(); root != "" {
		if abs, err := filepath.Abs(path); err == nil {
			if rel, err := filepath.Rel(root, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// outcome is the result of processing one path.
type outcome struct {
	Record
	vec []float32
	err error
}

// IndexCollection replaces the collection with paths and builds a fresh
// index. Per-image failures are reported, not returned; the error is
// non-nil only when ctx ends or the index cannot be built.
func (e *Engine) IndexCollection(ctx context.Context, paths []string) (*Report, error) {
	started := time.Now()
	st := store.New(e.extractor.Dimension())
	outcomes, err := e.ingest(ctx, st, paths, false)
	if err != nil {
		return nil, err
	}
	sim, err := index.Build(st, e.opts.Index)
	e.log.LogRebuild(ctx, st.Len(), strategyOf(sim), err)
	if err != nil {
		return nil, err
	}
	records := make(map[string]Record, len(outcomes))
	for _, o := range outcomes {
		mergeRecord(records, o.Record)
	}

	e.mu.Lock()
	e.store, e.sim, e.records = st, sim, records
	e.mu.Unlock()

	report := e.report(outcomes, sim, started)
	report.IndexSize = sim.Len()
	e.log.LogIndex(ctx, report)
	return report, nil
}

// AddPaths embeds paths into the current collection. The index is left
// stale and is rebuilt by the next query under the rebuild policy. Paths
// whose identifier is already stored fail with a duplicate error unless
// replace is set, in which case their embedding is replaced in place. A
// batch that finishes after IndexCollection or a load replaced the
// collection lands in the discarded store and is not recorded.
func (e *Engine) AddPaths(ctx context.Context, paths []string, replace bool) (*Report, error) {
	started := time.Now()
	e.mu.RLock()
	st, sim := e.store, e.sim
	e.mu.RUnlock()

	outcomes, err := e.ingest(ctx, st, paths, replace)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	current := e.store == st
	if current {
		for _, o := range outcomes {
			mergeRecord(e.records, o.Record)
		}
	}
	e.mu.Unlock()
	if !current {
		e.log.Warn("collection replaced while adding paths; batch discarded", "paths", len(paths))
	}

	report := e.report(outcomes, sim, started)
	report.IndexSize = st.Len()
	e.log.LogIndex(ctx, report)
	return report, nil
}

// mergeRecord stores r unless it would overwrite a stored image with a
// rejected resubmission of it.
func mergeRecord(records map[string]Record, r Record) {
	if prev, ok := records[r.ID]; ok && prev.Status == StatusOK && r.Status != StatusOK {
		return
	}
	records[r.ID] = r
}

func strategyOf(sim *index.Similarity) index.Strategy {
	if sim == nil {
		return ""
	}
	return sim.Strategy()
}

func (e *Engine) report(outcomes []outcome, sim *index.Similarity, started time.Time) *Report {
	r := &Report{
		Total:     len(outcomes),
		Skipped:   []Skip{},
		Failed:    []Failure{},
		Processed: []string{},
		Strategy:  strategyOf(sim),
		Model:     e.extractor.Model(),
		Device:    extractor.DeviceOf(e.extractor),
		Root:      e.Root(),
		StartedAt: started,
		Elapsed:   time.Since(started),
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusOK:
			r.Succeeded++
			r.Processed = append(r.Processed, o.Path)
		case StatusSkipped:
			r.Skipped = append(r.Skipped, Skip{ID: o.ID, Path: o.Path, Reason: o.Reason})
		case StatusFailed:
			r.Failed = append(r.Failed, Failure{ID: o.ID, Path: o.Path, Err: o.err})
		}
	}
	return r
}

// ingest decodes, embeds and stores paths on the worker pool. Sequence
// numbers are reserved up front in path order.
func (e *Engine) ingest(ctx context.Context, st *store.Store, paths []string, replace bool) ([]outcome, error) {
	outcomes := make([]outcome, len(paths))
	if len(paths) == 0 {
		return outcomes, nil
	}
	base := st.Reserve(len(paths))

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := e.process(ctx, path)
			o.Seq = base + uint64(i)
			if o.Status == StatusOK {
				e.storeOutcome(st, &o, replace)
			}
			if o.Status == StatusSkipped {
				e.log.LogSkip(ctx, o.Path, o.Reason)
			} else if o.Status == StatusFailed {
				e.log.LogFailure(ctx, o.Path, o.err)
			}
			outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// storeOutcome adds o's embedding, turning structural rejections into failures.
func (e *Engine) storeOutcome(st *store.Store, o *outcome, replace bool) {
	var err error
	if replace && st.Contains(o.ID) {
		if err = st.Replace(o.ID, o.vec); err == nil {
			entry, _ := st.Entry(o.ID)
			o.Seq = entry.Seq
		}
	} else {
		err = st.AddAt(o.Seq, o.ID, o.vec)
	}
	if err != nil {
		o.Status, o.Reason, o.err = StatusFailed, err.Error(), err
	}
}

// process decodes and embeds one path. It never fails; errors become a
// skipped outcome.
func (e *Engine) process(ctx context.Context, path string) outcome {
	o := outcome{Record: Record{ID: e.Identifier(path), Path: path}}
	vec, err := e.embedPath(ctx, path)
	if err != nil {
		o.Status, o.err = StatusSkipped, err
		o.Reason = skipReason(err)
		return o
	}
	o.Status, o.vec = StatusOK, vec
	return o
}

func skipReason(err error) string {
	var decErr *imaging.DecodeError
	switch {
	case errors.As(err, &decErr):
		return decErr.Reason
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}
	return err.Error()
}

func (e *Engine) embedPath(ctx context.Context, path string) ([]float32, error) {
	img, err := e.decoder.Decode(path)
	if err != nil {
		return nil, err
	}
	return e.embed(ctx, img)
}

// embed runs the extractor, bounded by EmbedTimeout when set. A timed-out
// call is abandoned so it cannot hold up its worker.
func (e *Engine) embed(ctx context.Context, img *imaging.Image) ([]float32, error) {
	if e.opts.EmbedTimeout <= 0 {
		return e.extractor.Embed(ctx, img)
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
	defer cancel()
	type result struct {
		vec []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		vec, err := e.extractor.Embed(ctx, img)
		done <- result{vec, err}
	}()
	select {
	case r := <-done:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FindSimilar ranks the collection against ref. ref is a stored
// identifier, a path whose identifier is stored, or an image file to embed
// on the fly; the latter is not added to the collection. k <= 0 uses
// Options.KDefault.
func (e *Engine) FindSimilar(ctx context.Context, ref string, k int) (*index.QueryResult, error) {
	if k <= 0 {
		k = e.opts.KDefault
	}
	res, err := e.findSimilar(ctx, ref, k)
	n := 0
	if res != nil {
		n = len(res.Matches)
	}
	e.log.LogQuery(ctx, ref, k, n, err)
	return res, err
}

func (e *Engine) findSimilar(ctx context.Context, ref string, k int) (*index.QueryResult, error) {
	e.mu.RLock()
	st, sim := e.store, e.sim
	e.mu.RUnlock()
	if st.Len() == 0 {
		return nil, ErrEmptyCollection
	}
	vec, err := e.resolve(ctx, st, ref)
	if err != nil {
		return nil, err
	}
	return sim.Query(vec, k)
}

// Embedding returns the embedding ref resolves to, as FindSimilar would use.
func (e *Engine) Embedding(ctx context.Context, ref string) ([]float32, error) {
	e.mu.RLock()
	st := e.store
	e.mu.RUnlock()
	return e.resolve(ctx, st, ref)
}

func (e *Engine) resolve(ctx context.Context, st *store.Store, ref string) ([]float32, error) {
	if vec, err := st.Get(ref); err == nil {
		return vec, nil
	}
	if vec, err := st.Get(e.Identifier(ref)); err == nil {
		return vec, nil
	}
	info, err := os.Stat(ref)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, ref)
	}
	return e.embedPath(ctx, ref)
}

// Rebuild rebuilds the index from the current store.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.mu.RLock()
	st, sim := e.store, e.sim
	e.mu.RUnlock()
	err := sim.Rebuild()
	e.log.LogRebuild(ctx, st.Len(), strategyOf(sim), err)
	return err
}

// IsStale reports whether the store changed since the index was built.
func (e *Engine) IsStale() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.IsStale()
}

// Len returns the number of stored embeddings.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Len()
}

// Strategy returns the strategy of the current index.
func (e *Engine) Strategy() index.Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.Strategy()
}

// Record returns the record of identifier id.
func (e *Engine) Record(id string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.records[id]
	return r, ok
}

// Records lists every record ordered by sequence number.
func (e *Engine) Records() []Record {
	e.mu.RLock()
	out := make([]Record, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r)
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}

// First returns the record of the earliest stored image.
func (e *Engine) First() (Record, bool) {
	e.mu.RLock()
	entries := e.store.All()
	e.mu.RUnlock()
	if len(entries) == 0 {
		return Record{}, false
	}
	return e.Record(entries[0].ID)
}
