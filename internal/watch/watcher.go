// Package watch regenerates the documentation whenever the model, the
// documentation prototypes or the site sources change.
//
// File system events are coalesced by a quiet window that is bounded by a
// maximum delay. Builds never overlap: a change seen while a build runs
// queues exactly one follow-up build.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/modeldoc/internal/config"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
)

const (
	defaultDebounce = 500 * time.Millisecond
	maxDelayFactor  = 10
)

// BuildFunc regenerates the documentation. reason names what triggered it.
type BuildFunc func(ctx context.Context, reason string) error

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet window after the last change before a build starts.
	Debounce time.Duration
	// MaxDelay bounds how long a stream of changes can postpone a build.
	MaxDelay time.Duration
	// Interval rebuilds periodically without changes; zero disables it.
	Interval time.Duration
	// Files are watched individually, Dirs recursively.
	Files []string
	Dirs  []string
	// Ignore lists paths whose changes never trigger a build: directories
	// with everything below them, files together with the temporary files
	// written next to them ("labels.yaml.tmp", "history.db-journal").
	Ignore []string
}

// OptionsFor derives the watch options of a configuration.
func OptionsFor(cfg *config.Config) Options {
	opts := Options{
		Debounce: cfg.Watch.Debounce,
		Interval: cfg.Watch.Interval,
		Files:    []string{cfg.Model},
	}
	if cfg.DocsDir != "" {
		opts.Dirs = append(opts.Dirs, cfg.DocsDir)
	}
	if cfg.Site.Enabled() {
		opts.Files = append(opts.Files, cfg.Site.RootDocument, cfg.Site.PageTemplate)
		// Template assets and included forests live next to the site sources.
		opts.Dirs = append(opts.Dirs, filepath.Dir(cfg.Site.PageTemplate))
		opts.Ignore = append(opts.Ignore, cfg.Site.Output, cfg.Site.WorkDir)
	}
	opts.Ignore = append(opts.Ignore, cfg.LabelsFile, cfg.MetricsFile)
	if cfg.HistoryDB != ":memory:" {
		opts.Ignore = append(opts.Ignore, cfg.HistoryDB)
	}
	return opts
}

// Watcher runs builds in response to changes.
type Watcher struct {
	opts    Options
	build   BuildFunc
	fsw     *fsnotify.Watcher
	files   map[string]bool
	dirs    []string
	ignore  []string
	trigger chan string

	readyOnce sync.Once
	ready     chan struct{}
}

// New registers the watched paths. Every path must exist.
func New(opts Options, build BuildFunc) (*Watcher, error) {
	if build == nil {
		return nil, ferrors.ValidationError("build function is required").Build()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = maxDelayFactor * opts.Debounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	w := &Watcher{
		opts:    opts,
		build:   build,
		fsw:     fsw,
		files:   make(map[string]bool),
		trigger: make(chan string, 1),
		ready:   make(chan struct{}),
	}
	if err := w.register(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) register() error {
	for _, f := range w.opts.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return watchError(err, f)
		}
		w.files[abs] = true
		// Editors replace files on save, so the directory is watched instead.
		if err := w.fsw.Add(filepath.Dir(abs)); err != nil {
			return watchError(err, f)
		}
	}
	for _, d := range w.opts.Dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return watchError(err, d)
		}
		w.dirs = append(w.dirs, abs)
		if err := w.addTree(abs); err != nil {
			return watchError(err, d)
		}
	}
	for _, d := range w.opts.Ignore {
		if d == "" {
			continue
		}
		if abs, err := filepath.Abs(d); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if w.ignored(p) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

func watchError(err error, p string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot watch path").
		WithContext("path", p).
		Fatal().
		Build()
}

// Ready is closed once Run has finished its initial build and is waiting
// for changes.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run builds once, then rebuilds on changes until ctx is done. Build errors
// are logged and never stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	if w.opts.Interval > 0 {
		s, err := w.schedule()
		if err != nil {
			return err
		}
		defer func() { _ = s.Shutdown() }()
	}

	w.runBuild(ctx, "initial")
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.buildLoop(ctx)
	}()
	defer func() { <-done }()

	w.readyOnce.Do(func() { close(w.ready) })
	slog.Info("Watching for changes",
		"files", len(w.files),
		"dirs", len(w.dirs),
		"debounce", w.opts.Debounce.String())
	return w.eventLoop(ctx)
}

func (w *Watcher) schedule() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to create scheduler").Build()
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.opts.Interval),
		gocron.NewTask(w.request, "interval"),
		gocron.WithName("periodic-regeneration"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to schedule periodic regeneration").
			WithContext("interval", w.opts.Interval.String()).Build()
	}
	s.Start()
	return s, nil
}

// request queues a build. A request arriving while one is already queued is
// absorbed by it.
func (w *Watcher) request(reason string) {
	select {
	case w.trigger <- reason:
	default:
	}
}

func (w *Watcher) buildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-w.trigger:
			w.runBuild(ctx, reason)
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context, reason string) {
	start := time.Now()
	err := w.build(ctx, reason)
	attrs := []any{"reason", reason, logfields.DurationMS(float64(time.Since(start).Milliseconds()))}
	if err != nil {
		slog.Error("Regeneration failed", append(attrs, logfields.Error(err))...)
		return
	}
	slog.Info("Regenerated", attrs...)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func (w *Watcher) eventLoop(ctx context.Context) error {
	quiet := time.NewTimer(time.Hour)
	stopTimer(quiet)
	maxT := time.NewTimer(time.Hour)
	stopTimer(maxT)
	defer quiet.Stop()
	defer maxT.Stop()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
		last   string
	)
	fire := func(cause string) {
		stopTimer(quiet)
		stopTimer(maxT)
		quietC, maxC = nil, nil
		slog.Debug("Changes settled", logfields.Path(last), "cause", cause)
		w.request("change")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			last = ev.Name
			stopTimer(quiet)
			quiet.Reset(w.opts.Debounce)
			quietC = quiet.C
			if maxC == nil {
				maxT.Reset(w.opts.MaxDelay)
				maxC = maxT.C
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("File watcher error", logfields.Error(err))
		case <-quietC:
			fire("quiet")
		case <-maxC:
			fire("max_delay")
		}
	}
}

// relevant filters an event down to the watched paths and follows new
// directories below watched trees.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if w.ignored(name) {
		return false
	}
	if w.files[name] {
		return true
	}
	if !w.inTree(name) {
		return false
	}
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if err := w.addTree(name); err != nil {
			slog.Warn("Cannot watch new directory", logfields.Path(name), logfields.Error(err))
		}
	}
	return true
}

func (w *Watcher) inTree(p string) bool {
	for _, d := range w.dirs {
		if within(p, d) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(p string) bool {
	for _, d := range w.ignore {
		if within(p, d) || strings.HasPrefix(p, d+".") || strings.HasPrefix(p, d+"-") {
			return true
		}
	}
	return false
}

func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}
