package crawl

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lysogeny/seafile-scraper/internal/progress"
)

// Source provides the remote operations the scheduler dispatches.
type Source interface {
	// FetchFile returns the raw bytes of a file resource.
	FetchFile(ctx context.Context, path string) ([]byte, error)

	// ExportFolder retrieves a folder resource as a packaged archive.
	ExportFolder(ctx context.Context, path string) ([]byte, error)

	// ListChildren returns a folder's direct children. An empty folder
	// yields an empty slice, not an error.
	ListChildren(ctx context.Context, path string) ([]ResourceRef, error)
}

// Sink persists retrieved bytes under a resource's logical key.
type Sink interface {
	// Exists reports whether a key already has stored bytes.
	Exists(ctx context.Context, key string) (bool, error)

	// Store writes data under key. When overwrite is false and the key
	// already exists, it reports written=false with no error.
	Store(ctx context.Context, key string, data []byte, overwrite bool) (written bool, err error)
}

// Options configures a Scheduler.
type Options struct {
	// Width is the maximum number of concurrently in-flight
	// retrievals per batch.
	// Default: 5
	Width int

	// Overwrite re-fetches and replaces resources that already exist
	// in the sink.
	Overwrite bool

	// ArchiveExt is appended to folder keys in the sink.
	// Default: ".zip"
	ArchiveExt string

	// Logger receives per-path outcome lines.
	// Default: no logging
	Logger *zap.Logger

	// Reporter is an optional progress reporter.
	Reporter *progress.Reporter
}

// Stats summarizes one crawl run.
type Stats struct {
	FilesStored    int
	ArchivesStored int
	Skipped        int
	Failed         int
	Discovered     int
	BytesStored    int64
}

// Scheduler walks the remote tree, dispatching bounded batches of
// retrievals and folding their results back into the frontier.
type Scheduler struct {
	src      Source
	sink     Sink
	opts     Options
	logger   *zap.Logger
	reporter *progress.Reporter
	stats    Stats
}

// New creates a Scheduler. Zero option fields get defaults.
func New(src Source, sink Sink, opts Options) *Scheduler {
	if opts.Width <= 0 {
		opts.Width = 5
	}
	if opts.ArchiveExt == "" {
		opts.ArchiveExt = ".zip"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		src:      src,
		sink:     sink,
		opts:     opts,
		logger:   logger,
		reporter: opts.Reporter,
	}
}

type result struct {
	data    []byte
	err     error
	skipped bool
}

// Run crawls the tree rooted at root until the frontier is empty or
// ctx is cancelled. Per-resource failures are logged and never abort
// the run; the returned error is non-nil only when the run was
// cancelled.
func (s *Scheduler) Run(ctx context.Context, root ResourceRef) (Stats, error) {
	frontier := []ResourceRef{root}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return s.stats, err
		}

		// Pop the next batch off the back of the frontier. The batch
		// is copied out, not sub-sliced: descent appends to the
		// frontier mid-fold and must not write over pending entries.
		n := min(s.opts.Width, len(frontier))
		batch := make([]ResourceRef, n)
		copy(batch, frontier[len(frontier)-n:])
		frontier = frontier[:len(frontier)-n]

		results := make([]result, len(batch))
		var wg sync.WaitGroup
		for i, ref := range batch {
			if s.skipExisting(ctx, ref) {
				results[i].skipped = true
				continue
			}
			wg.Add(1)
			go func(i int, ref ResourceRef) {
				defer wg.Done()
				results[i].data, results[i].err = s.retrieve(ctx, ref)
			}(i, ref)
		}
		wg.Wait()

		// Fold results back in. Only this goroutine touches the
		// frontier, the sink, and the stats.
		for i, ref := range batch {
			switch {
			case results[i].skipped:
			case results[i].err == nil:
				s.store(ctx, ref, results[i].data)
			default:
				frontier = s.descend(ctx, ref, results[i].err, frontier)
			}
		}

		if s.reporter != nil {
			s.reporter.SetPending(int64(len(frontier)))
		}
	}

	// The frontier can drain while the run is being cancelled, when
	// the last batch's entries are dropped instead of descended.
	return s.stats, ctx.Err()
}

// retrieve picks the retrieval strategy for a ref's kind.
func (s *Scheduler) retrieve(ctx context.Context, ref ResourceRef) ([]byte, error) {
	if ref.Kind == KindFolder {
		return s.src.ExportFolder(ctx, ref.Path)
	}
	return s.src.FetchFile(ctx, ref.Path)
}

// skipExisting reports whether a ref's sink key already exists and the
// run is not overwriting. Skipped entries are never fetched.
func (s *Scheduler) skipExisting(ctx context.Context, ref ResourceRef) bool {
	if s.opts.Overwrite {
		return false
	}
	exists, err := s.sink.Exists(ctx, s.storageKey(ref))
	if err != nil {
		s.logger.Debug("existence check failed",
			zap.String("path", ref.Path),
			zap.Error(err))
		return false
	}
	if !exists {
		return false
	}

	s.stats.Skipped++
	s.logger.Info("already exists, skipping",
		zap.String("path", ref.Path),
		zap.String("kind", ref.Kind.String()))
	if s.reporter != nil {
		s.reporter.Skipped()
	}
	return true
}

// store hands retrieved bytes to the sink.
func (s *Scheduler) store(ctx context.Context, ref ResourceRef, data []byte) {
	key := s.storageKey(ref)
	written, err := s.sink.Store(ctx, key, data, s.opts.Overwrite)
	if err != nil {
		s.stats.Failed++
		s.logger.Error("store failed",
			zap.String("path", ref.Path),
			zap.String("key", key),
			zap.Error(err))
		if s.reporter != nil {
			s.reporter.Failed()
		}
		return
	}
	if !written {
		s.stats.Skipped++
		s.logger.Info("already exists, skipping",
			zap.String("path", ref.Path),
			zap.String("key", key))
		if s.reporter != nil {
			s.reporter.Skipped()
		}
		return
	}

	size := int64(len(data))
	s.stats.BytesStored += size
	if ref.Kind == KindFolder {
		s.stats.ArchivesStored++
		if s.reporter != nil {
			s.reporter.ArchiveStored(size)
		}
	} else {
		s.stats.FilesStored++
		if s.reporter != nil {
			s.reporter.FileStored(size)
		}
	}
	s.logger.Info("stored",
		zap.String("path", ref.Path),
		zap.String("key", key),
		zap.Int64("bytes", size))
}

// descend resolves a failed retrieval by listing the entry's children
// and queueing them instead of the entry itself. Only folders can be
// listed; a failed file is terminal, as is a folder whose listing
// fails.
func (s *Scheduler) descend(ctx context.Context, ref ResourceRef, cause error, frontier []ResourceRef) []ResourceRef {
	if ctx.Err() != nil {
		// The run is being cancelled, don't start descent queries.
		return frontier
	}

	if ref.Kind != KindFolder {
		s.stats.Failed++
		s.logger.Warn("retrieval failed",
			zap.String("path", ref.Path),
			zap.String("kind", ref.Kind.String()),
			zap.Error(cause))
		if s.reporter != nil {
			s.reporter.Failed()
		}
		return frontier
	}

	s.logger.Warn("retrieval failed, descending",
		zap.String("path", ref.Path),
		zap.Error(cause))

	children, err := s.src.ListChildren(ctx, ref.Path)
	if err != nil {
		s.stats.Failed++
		s.logger.Error("listing failed",
			zap.String("path", ref.Path),
			zap.Error(err))
		if s.reporter != nil {
			s.reporter.Failed()
		}
		return frontier
	}

	s.stats.Discovered += len(children)
	s.logger.Info("discovered children",
		zap.String("path", ref.Path),
		zap.Int("children", len(children)))
	return append(frontier, children...)
}

// storageKey maps a resource's logical path to its sink key.
func (s *Scheduler) storageKey(ref ResourceRef) string {
	key := strings.TrimPrefix(ref.Path, "/")
	if ref.Kind == KindFolder {
		key += s.opts.ArchiveExt
	}
	return key
}
