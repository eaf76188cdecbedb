// Package indexer rebuilds the document store from a directory of invoices:
// purge, render, then extract while full chunks are flushed to the store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/async"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/extract"
	"github.com/joseph-ayodele/taix/internal/record"
	"github.com/joseph-ayodele/taix/internal/store"
)

// Renderer turns a source document into a page image path.
type Renderer interface {
	Render(ctx context.Context, path string) (string, error)
}

// Extractor answers the configured questions about a page image.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (extract.Answers, error)
}

// Archiver copies a source document to durable storage and returns its key.
type Archiver interface {
	Archive(ctx context.Context, path string) (string, error)
}

type Options struct {
	SourceDir    string
	ChunkSize    int
	MaxRetries   int
	Backoff      time.Duration
	Workers      int
	FlushWorkers int
	DocTimeout   time.Duration
	// Collections purged before the rebuild. Defaults to invoices and tax limits.
	Collections []string
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 100
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.FlushWorkers <= 0 {
		o.FlushWorkers = 2
	}
	if o.DocTimeout <= 0 {
		o.DocTimeout = 3 * time.Minute
	}
	if len(o.Collections) == 0 {
		o.Collections = []string{constants.InvoiceCollection, constants.TaxLimitCollection}
	}
	return o
}

type Option func(*Indexer)

// WithStateObserver is called on every state transition, from the Run goroutine.
func WithStateObserver(fn func(constants.IndexState)) Option {
	return func(ix *Indexer) { ix.observer = fn }
}

func WithArchiver(a Archiver) Option {
	return func(ix *Indexer) { ix.archiver = a }
}

// WithLimit sets the reference record written after the invoices.
func WithLimit(l record.JurisdictionalLimitRecord) Option {
	return func(ix *Indexer) { ix.limit = &l }
}

type Indexer struct {
	store     store.Client
	renderer  Renderer
	extractor Extractor
	builder   *record.Builder
	archiver  Archiver
	limit     *record.JurisdictionalLimitRecord
	opts      Options
	logger    *slog.Logger
	observer  func(constants.IndexState)

	mu    sync.Mutex
	state constants.IndexState
	sleep func(context.Context, time.Duration) error
}

func New(st store.Client, renderer Renderer, extractor Extractor, builder *record.Builder, opts Options, logger *slog.Logger, options ...Option) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Indexer{
		store:     st,
		renderer:  renderer,
		extractor: extractor,
		builder:   builder,
		opts:      opts.withDefaults(),
		logger:    logger,
		state:     constants.IndexStateIdle,
		sleep:     sleepCtx,
	}
	for _, o := range options {
		o(ix)
	}
	return ix
}

func (ix *Indexer) State() constants.IndexState {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

func (ix *Indexer) setState(s constants.IndexState) {
	ix.mu.Lock()
	prev := ix.state
	ix.state = s
	ix.mu.Unlock()
	ix.logger.Info("indexer.state", "from", prev, "to", s)
	if ix.observer != nil {
		ix.observer(s)
	}
}

// rendered is a document that made it through rendering.
type rendered struct {
	index      int
	name       string
	path       string
	imagePath  string
	archiveKey string
}

// Run performs one full rebuild. Per-document and per-chunk failures land in
// the report; the error is reserved for an unreadable source directory and
// cancellation.
func (ix *Indexer) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report
	finish := func(err error) (Report, error) {
		rep.State = ix.State()
		rep.Elapsed = time.Since(start)
		return rep, err
	}

	paths, walkFailures, err := discover(ctx, ix.opts.SourceDir)
	if err != nil {
		ix.logger.Error("indexer.source.failed", "dir", ix.opts.SourceDir, "error", err)
		return finish(err)
	}
	rep.Documents = len(paths)
	rep.Failures = append(rep.Failures, walkFailures...)

	ix.setState(constants.IndexStatePurging)
	rep.Purges = ix.purge(ctx)
	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	ix.setState(constants.IndexStateRendering)
	docs, failures, err := ix.renderAll(ctx, paths)
	rep.Failures = append(rep.Failures, failures...)
	rep.Rendered = len(docs)
	if err != nil {
		return finish(err)
	}

	ix.setState(constants.IndexStateExtracting)
	fl := ix.newFlusher(ctx)
	built, failures, err := ix.extractAll(ctx, docs, fl)
	rep.Failures = append(rep.Failures, failures...)
	rep.Built = built

	ix.setState(constants.IndexStateFlushing)
	written, failures := fl.close()
	rep.Written = written
	rep.Failures = append(rep.Failures, failures...)
	rep.WriteFailures = len(failures)
	if err != nil {
		return finish(err)
	}
	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	if ix.limit != nil {
		obj := store.Object{Properties: ix.limit.Properties()}
		if err := ix.writeChunk(ctx, ix.limit.Collection(), []store.Object{obj}); err != nil {
			rep.WriteFailures++
			rep.Failures = append(rep.Failures, Failure{Stage: StageWrite, Err: err})
		} else {
			rep.LimitWritten = true
		}
	}

	ix.setState(constants.IndexStateDone)
	ix.logger.Info("indexer.run.done",
		"documents", rep.Documents,
		"rendered", rep.Rendered,
		"built", rep.Built,
		"written", rep.Written,
		"failures", len(rep.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return finish(nil)
}

// purge clears every target collection independently. All purges finish
// before Run moves on, so no flush can race a delete.
func (ix *Indexer) purge(ctx context.Context) []PurgeResult {
	results := make([]PurgeResult, len(ix.opts.Collections))
	var g errgroup.Group
	for i, name := range ix.opts.Collections {
		g.Go(func() error {
			n, err := ix.store.DeleteWhere(ctx, name, store.MatchAll)
			results[i] = PurgeResult{Collection: name, Deleted: n, Err: err}
			if err != nil {
				ix.logger.Error("indexer.purge.failed", "collection", name, "error", err)
			} else {
				ix.logger.Info("indexer.purge.ok", "collection", name, "deleted", n)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (ix *Indexer) renderAll(ctx context.Context, paths []string) ([]rendered, []Failure, error) {
	var mu sync.Mutex
	var docs []rendered
	var failures []Failure

	q := async.NewQueue(func(jctx context.Context, i int) error {
		path := paths[i]
		img, err := ix.renderer.Render(jctx, path)
		if err != nil {
			ix.logger.Error("indexer.render.failed", "path", path, "error", err)
			mu.Lock()
			failures = append(failures, Failure{Path: path, Stage: StageRender, Err: err})
			mu.Unlock()
			return err
		}
		doc := rendered{index: i, name: relName(ix.opts.SourceDir, path), path: path, imagePath: img}
		if ix.archiver != nil {
			key, err := ix.archiver.Archive(jctx, path)
			if err != nil {
				ix.logger.Warn("indexer.archive.failed", "path", path, "error", err)
			} else {
				doc.archiveKey = key
			}
		}
		mu.Lock()
		docs = append(docs, doc)
		mu.Unlock()
		return nil
	}, ix.logger, ix.poolOptions(ctx)...)

	if err := ix.feed(ctx, q, len(paths)); err != nil {
		return nil, failures, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].index < docs[j].index })
	return docs, failures, nil
}

// extractAll builds a record per rendered document and hands it to the
// flusher as it is built, so full chunks are written while extraction goes on.
func (ix *Indexer) extractAll(ctx context.Context, docs []rendered, fl *flusher) (int, []Failure, error) {
	var mu sync.Mutex
	built := 0
	var failures []Failure
	fail := func(path, stage string, err error) error {
		mu.Lock()
		failures = append(failures, Failure{Path: path, Stage: stage, Err: err})
		mu.Unlock()
		return err
	}

	q := async.NewQueue(func(jctx context.Context, i int) error {
		doc := docs[i]
		answers, err := ix.extractor.Extract(jctx, doc.imagePath)
		if err != nil {
			ix.logger.Error("indexer.extract.failed", "path", doc.path, "error", err)
			return fail(doc.path, StageExtract, err)
		}
		raw, err := os.ReadFile(doc.path)
		if err != nil {
			ix.logger.Error("indexer.read_source.failed", "path", doc.path, "error", err)
			return fail(doc.path, StageExtract, err)
		}
		rec, err := ix.builder.Build(record.Source{
			Name:       doc.name,
			Path:       doc.path,
			ImagePath:  doc.imagePath,
			Raw:        raw,
			ArchiveKey: doc.archiveKey,
		}, answers)
		if err != nil {
			ix.logger.Error("indexer.build.failed", "path", doc.path, "error", err)
			return fail(doc.path, StageBuild, err)
		}
		mu.Lock()
		built++
		mu.Unlock()
		fl.add(store.Object{Properties: rec.Properties()})
		return nil
	}, ix.logger, ix.poolOptions(ctx)...)

	err := ix.feed(ctx, q, len(docs))
	return built, failures, err
}

func (ix *Indexer) poolOptions(ctx context.Context) []async.Option {
	return []async.Option{
		async.WithContext(ctx),
		async.WithWorkers(ix.opts.Workers),
		async.WithQueueSize(ix.opts.Workers * 2),
		async.WithProcessTimeout(ix.opts.DocTimeout),
	}
}

// feed enqueues job indexes 0..n-1 and drains the queue.
func (ix *Indexer) feed(ctx context.Context, q *async.Queue[int], n int) error {
	var enqueueErr error
	for i := 0; i < n; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			enqueueErr = err
			break
		}
	}
	_ = q.Shutdown(context.Background())
	if enqueueErr != nil {
		return enqueueErr
	}
	return ctx.Err()
}

// flusher accumulates invoice objects and writes every full chunk as soon as
// it fills, with at most FlushWorkers writes in flight. A caller adding to a
// full pipeline waits, which keeps the number of buffered records bounded.
// A chunk that keeps failing is dropped and reported; the rest continue.
type flusher struct {
	ix  *Indexer
	ctx context.Context
	g   *errgroup.Group

	mu       sync.Mutex
	pending  []store.Object
	chunks   int
	written  int
	failures []Failure
}

func (ix *Indexer) newFlusher(ctx context.Context) *flusher {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.FlushWorkers)
	return &flusher{ix: ix, ctx: gctx, g: g}
}

func (f *flusher) add(obj store.Object) {
	f.mu.Lock()
	f.pending = append(f.pending, obj)
	if len(f.pending) < f.ix.opts.ChunkSize {
		f.mu.Unlock()
		return
	}
	objs, n := f.take()
	f.mu.Unlock()
	f.dispatch(n, objs)
}

// take detaches the pending chunk. f.mu must be held.
func (f *flusher) take() ([]store.Object, int) {
	objs := f.pending
	f.pending = make([]store.Object, 0, f.ix.opts.ChunkSize)
	n := f.chunks
	f.chunks++
	return objs, n
}

func (f *flusher) dispatch(n int, objs []store.Object) {
	f.g.Go(func() error {
		err := f.ix.writeChunk(f.ctx, constants.InvoiceCollection, objs)
		f.mu.Lock()
		defer f.mu.Unlock()
		if err != nil {
			f.failures = append(f.failures, Failure{Path: fmt.Sprintf("chunk %d", n), Stage: StageWrite, Err: err})
			return nil
		}
		f.written += len(objs)
		return nil
	})
}

// close writes the last partial chunk and waits for every write.
func (f *flusher) close() (int, []Failure) {
	f.mu.Lock()
	var (
		objs []store.Object
		n    int
	)
	if len(f.pending) > 0 {
		objs, n = f.take()
	}
	f.mu.Unlock()
	if len(objs) > 0 {
		f.dispatch(n, objs)
	}
	_ = f.g.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written, f.failures
}

// writeChunk retries a batch write with linear backoff. The error it returns
// matches common.ErrWrite.
func (ix *Indexer) writeChunk(ctx context.Context, collection string, objs []store.Object) error {
	var err error
	for attempt := 0; attempt <= ix.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if serr := ix.sleep(ctx, time.Duration(attempt)*ix.opts.Backoff); serr != nil {
				break
			}
		}
		if err = ix.store.BatchWrite(ctx, collection, objs); err == nil {
			return nil
		}
		if errors.Is(err, store.ErrUnknownField) || errors.Is(err, store.ErrUnknownCollection) {
			break
		}
		ix.logger.Warn("indexer.write.retry", "collection", collection, "objects", len(objs), "attempt", attempt+1, "error", err)
	}
	if err == nil {
		err = ctx.Err()
	}
	werr := common.NewWriteError(collection, err)
	ix.logger.Error("indexer.write.failed", "collection", collection, "objects", len(objs), "error", werr)
	return werr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
