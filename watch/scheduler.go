package watch

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radovskyb/watcher"

	"github.com/ardnew/ghostwriter/cogen"
	"github.com/ardnew/ghostwriter/log"
	"github.com/ardnew/ghostwriter/pkg"
	"github.com/ardnew/ghostwriter/resolve"
	"github.com/ardnew/ghostwriter/snippet"
)

// Scheduler defaults.
const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultDebounceUnit = time.Second
)

// Scheduler errors.
var (
	ErrConfig        = pkg.NewError("invalid scheduler configuration")
	ErrWalk          = pkg.NewError("failed to scan project tree")
	ErrWatcher       = pkg.NewError("file-system watcher failed")
	ErrWatcherClosed = pkg.NewError("file-system watcher closed unexpectedly")
)

// Config configures a [Scheduler].
type Config struct {
	// Root is the project tree scanned for files.
	Root string
	// SearchPaths are watched for snippet module changes.
	SearchPaths []string
	// Filter selects the files below Root. Required.
	Filter *Filter
	// Tags are the snippet tag delimiters.
	Tags snippet.Tags
	// TempSuffix names the parser's temporary files.
	TempSuffix string
	// Processes is the number of workers. One processes files in the
	// calling goroutine.
	Processes int
	// PostProcess runs after each pass that rewrote files.
	PostProcess resolve.PostProcessor

	// PollInterval is how often watched trees are scanned.
	PollInterval time.Duration
	// DebounceUnit is the granularity the previous pass duration is
	// rounded up to when computing the debounce window.
	DebounceUnit time.Duration
	// MinDebounce is the smallest debounce window. Defaults to DebounceUnit.
	MinDebounce time.Duration
	// ShutdownTimeout bounds how long workers are awaited on shutdown.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Processes < 1 {
		c.Processes = 1
	}

	if c.TempSuffix == "" {
		c.TempSuffix = snippet.DefaultTempSuffix
	}

	if c.Tags == (snippet.Tags{}) {
		c.Tags = snippet.DefaultTags()
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.DebounceUnit <= 0 {
		c.DebounceUnit = DefaultDebounceUnit
	}

	if c.MinDebounce <= 0 {
		c.MinDebounce = c.DebounceUnit
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	return c
}

// Summary describes one compile pass.
type Summary struct {
	Files         int
	Replaced      int
	Failed        int
	Snippets      int
	SnippetErrors int
	Duration      time.Duration
	Rewritten     []string

	sums map[string]uint64
}

// Worker is the state owned by one worker: a parser and a template engine
// with its own caches.
type Worker struct {
	ID       int
	Parser   *snippet.Parser
	Engine   *cogen.Engine
	Expander snippet.Expander
}

// Process rewrites the file at path in place.
func (w *Worker) Process(ctx context.Context, path string) snippet.Report {
	return w.Parser.Parse(ctx, w.Expander, path, "")
}

// Scheduler runs compile passes over a project tree.
type Scheduler struct {
	cfg      Config
	root     string
	resolver *resolve.Resolver
	sums     *Checksums

	single *Worker
	pool   *Pool[*Worker]
	passes atomic.Int64
}

// NewScheduler returns a scheduler expanding snippets with r.
func NewScheduler(cfg Config, r *resolve.Resolver) (*Scheduler, error) {
	cfg = cfg.withDefaults()

	if cfg.Filter == nil {
		return nil, ErrConfig.Wrap(errors.New("no file filter"))
	}

	if err := cfg.Tags.Validate(); err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	return &Scheduler{
		cfg:      cfg,
		root:     root,
		resolver: r,
		sums:     NewChecksums(),
	}, nil
}

// Passes returns the number of passes run so far.
func (s *Scheduler) Passes() int64 { return s.passes.Load() }

// Checksums returns the scheduler's checksum table. It is only consistent
// while no [Scheduler.Watch] is running.
func (s *Scheduler) Checksums() *Checksums { return s.sums }

func (s *Scheduler) newWorker(id int) (*Worker, error) {
	p, err := snippet.NewParser(s.cfg.Tags, snippet.WithTempSuffix(s.cfg.TempSuffix))
	if err != nil {
		return nil, err
	}

	e := cogen.NewEngine(
		cogen.WithRegistry(s.resolver.Components()),
		cogen.WithCache(cogen.NewCache()),
	)

	return &Worker{ID: id, Parser: p, Engine: e, Expander: s.resolver.Expander(e)}, nil
}

func (s *Scheduler) start(ctx context.Context) error {
	if s.cfg.Processes == 1 {
		w, err := s.newWorker(0)
		s.single = w

		return err
	}

	p, err := NewPool(ctx, s.cfg.Processes, DefaultQueueSize, s.newWorker)
	s.pool = p

	return err
}

func (s *Scheduler) stop(ctx context.Context) {
	if s.pool != nil {
		if err := s.pool.Shutdown(s.cfg.ShutdownTimeout); err != nil {
			log.FromContext(ctx).Warn("worker pool shutdown", slog.Any("error", err))
		}

		s.pool = nil
	}

	s.single = nil
}

// each calls fn once for every index below n, on the pool's workers or on
// the single worker, and returns when all calls have returned.
func (s *Scheduler) each(n int, fn func(w *Worker, i int)) {
	if s.pool == nil {
		for i := range n {
			fn(s.single, i)
		}

		return
	}

	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)

		err := s.pool.Submit(func(w *Worker) {
			defer wg.Done()
			fn(w, i)
		})
		if err != nil {
			wg.Done()
		}
	}

	wg.Wait()
}

// Compile runs one pass over the project tree. Per-file failures are logged
// and counted in the summary; only a failure to scan the tree is returned.
func (s *Scheduler) Compile(ctx context.Context) (Summary, error) {
	if err := s.start(ctx); err != nil {
		return Summary{}, err
	}
	defer s.stop(ctx)

	return s.pass(ctx, false)
}

func (s *Scheduler) pass(ctx context.Context, hashAll bool) (Summary, error) {
	begin := time.Now()
	logger := log.FromContext(ctx)

	files, err := Walk(ctx, s.root, s.cfg.Filter)
	if err != nil {
		return Summary{}, ErrWalk.With(slog.String("root", s.root)).Wrap(err)
	}

	reports := make([]snippet.Report, len(files))
	sums := make([]uint64, len(files))
	hashed := make([]bool, len(files))

	s.each(len(files), func(w *Worker, i int) {
		rep := w.Process(ctx, files[i])
		reports[i] = rep

		if hashAll {
			if h, err := Hash(files[i]); err == nil {
				sums[i], hashed[i] = h, true
			}
		}
	})

	sum := Summary{Files: len(files), sums: make(map[string]uint64)}

	for i, rep := range reports {
		if hashed[i] {
			sum.sums[files[i]] = sums[i]
		}

		sum.Snippets += len(rep.Snippets)
		sum.SnippetErrors += rep.Failed()

		if rep.Replaced {
			sum.Replaced++
			sum.Rewritten = append(sum.Rewritten, files[i])
		}

		if rep.Code != snippet.OK {
			sum.Failed++

			logger.Error("failed to compile file",
				slog.String("file", files[i]),
				slog.String("code", rep.Code.String()),
				slog.Int("line", rep.Line),
				slog.Any("error", rep.Err),
			)
		}
	}

	if s.cfg.PostProcess != nil && len(sum.Rewritten) > 0 {
		if err := s.cfg.PostProcess(ctx, slices.Clone(sum.Rewritten)); err != nil {
			logger.Error("post-processing failed", slog.Any("error", err))
		}
	}

	// Rewritten files are hashed after post-processing so that neither
	// write is seen as a change.
	for _, path := range sum.Rewritten {
		if h, err := Hash(path); err == nil {
			sum.sums[path] = h
		}
	}

	sum.Duration = time.Since(begin)
	s.passes.Add(1)

	logger.Info("compiled",
		slog.Int("files", sum.Files),
		slog.Int("replaced", sum.Replaced),
		slog.Int("failed", sum.Failed),
		slog.Int("snippets", sum.Snippets),
		slog.Int("snippet_errors", sum.SnippetErrors),
		slog.Duration("duration", sum.Duration),
	)

	return sum, nil
}

// record updates the checksum table with the hashes computed by a pass.
func (s *Scheduler) record(sum Summary) {
	for path, h := range sum.sums {
		s.sums.Observe(path, h)
	}
}

// debounce returns the window to wait after a pass that took d.
func (s *Scheduler) debounce(d time.Duration) time.Duration {
	unit := s.cfg.DebounceUnit
	w := time.Duration(math.Ceil(float64(d)/float64(unit))) * unit

	return max(w, s.cfg.MinDebounce)
}

// changed reports whether a project event is a real change, updating the
// checksum table.
func (s *Scheduler) changed(ev watcher.Event) bool {
	if ev.FileInfo != nil && ev.IsDir() {
		return false
	}

	if !s.relevant(ev.Path) {
		if ev.Op == watcher.Rename || ev.Op == watcher.Move {
			s.sums.Deleted(ev.OldPath)
		}

		return false
	}

	switch ev.Op {
	case watcher.Remove:
		s.sums.Deleted(ev.Path)

		return false

	case watcher.Rename, watcher.Move:
		h, err := Hash(ev.Path)
		if err != nil {
			s.sums.Deleted(ev.OldPath)

			return false
		}

		return s.sums.Moved(ev.OldPath, ev.Path, h)

	default:
		h, err := Hash(ev.Path)
		if err != nil {
			return false
		}

		return s.sums.Modified(ev.Path, h)
	}
}

func (s *Scheduler) relevant(path string) bool {
	rel, err := filepath.Rel(s.root, path)

	return err == nil && s.cfg.Filter.MatchPath(rel)
}

type passResult struct {
	sum Summary
	err error
}

// Watch runs a pass, then recompiles whenever the search paths change or a
// project file's content changes, until ctx is done. It returns nil on
// cancellation.
func (s *Scheduler) Watch(ctx context.Context) error {
	logger := log.FromContext(ctx)

	if err := s.start(ctx); err != nil {
		return err
	}
	defer s.stop(ctx)

	first, err := s.pass(ctx, true)
	if err != nil {
		return err
	}

	s.record(first)

	project, err := s.watchProject(ctx)
	if err != nil {
		return err
	}
	defer project.Close()

	search, err := s.watchSearchPaths()
	if err != nil {
		return err
	}
	defer search.Close()

	for _, w := range []*watcher.Watcher{project, search} {
		go func() {
			if err := w.Start(s.cfg.PollInterval); err != nil {
				logger.Error("watcher stopped", slog.Any("error", err))
			}
		}()

		w.Wait()
	}

	logger.Info("watching",
		slog.String("root", s.root),
		slog.Any("search_paths", s.cfg.SearchPaths),
		slog.Int("files", s.sums.Len()),
	)

	var (
		timer   *time.Timer
		pending bool
		reload  bool
		running bool
		last    = first.Duration
		held    []watcher.Event
		done    = make(chan passResult, 1)
	)

	arm := func() {
		window := s.debounce(last)

		if timer == nil {
			timer = time.NewTimer(window)
		} else {
			timer.Reset(window)
		}
	}

	trigger := func(reason, path string) {
		logger.Debug("change detected", slog.String("feed", reason), slog.String("path", path))

		pending = true
		if !running {
			arm()
		}
	}

	for {
		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			if running {
				<-done
			}

			logger.Info("watch stopped")

			return nil

		case ev := <-search.Event:
			if ev.FileInfo == nil || !ev.IsDir() {
				reload = true
				trigger("search_path", ev.Path)
			}

		case ev := <-project.Event:
			if running {
				held = append(held, ev)
			} else if s.changed(ev) {
				trigger("project", ev.Path)
			}

		case err := <-search.Error:
			logger.Warn("search path watcher", slog.Any("error", ErrWatcher.Wrap(err)))

		case err := <-project.Error:
			logger.Warn("project watcher", slog.Any("error", ErrWatcher.Wrap(err)))

		case <-search.Closed:
			return ErrWatcherClosed.With(slog.String("feed", "search_path"))

		case <-project.Closed:
			return ErrWatcherClosed.With(slog.String("feed", "project"))

		case <-fire:
			timer = nil
			pending = false
			running = true

			if reload {
				s.resolver.Reload()
				reload = false
			}

			go func() {
				sum, err := s.pass(ctx, false)
				done <- passResult{sum, err}
			}()

		case r := <-done:
			running = false

			if r.err != nil {
				logger.Error("compile pass failed", slog.Any("error", r.err))
			} else {
				last = r.sum.Duration
				s.record(r.sum)
			}

			for _, ev := range held {
				if s.changed(ev) {
					pending = true
				}
			}

			held = nil

			if pending {
				arm()
			}
		}
	}
}

func (s *Scheduler) watchProject(ctx context.Context) (*watcher.Watcher, error) {
	excluded, err := ExcludedDirs(ctx, s.root, s.cfg.Filter)
	if err != nil {
		return nil, ErrWatcher.With(slog.String("path", s.root)).Wrap(err)
	}

	w := watcher.New()
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)
	w.AddFilterHook(func(info os.FileInfo, path string) error {
		if info.IsDir() || s.relevant(path) {
			return nil
		}

		return watcher.ErrSkip
	})

	// Filter hooks cannot prune a directory, only ignored paths can.
	if err := w.Ignore(excluded...); err != nil {
		w.Close()

		return nil, ErrWatcher.With(slog.String("path", s.root)).Wrap(err)
	}

	if err := w.AddRecursive(s.root); err != nil {
		w.Close()

		return nil, ErrWatcher.With(slog.String("path", s.root)).Wrap(err)
	}

	return w, nil
}

func (s *Scheduler) watchSearchPaths() (*watcher.Watcher, error) {
	w := watcher.New()
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)

	for _, dir := range s.cfg.SearchPaths {
		if err := w.AddRecursive(dir); err != nil {
			w.Close()

			return nil, ErrWatcher.With(slog.String("path", dir)).Wrap(err)
		}
	}

	return w, nil
}
