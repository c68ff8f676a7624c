package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/modeldoc/internal/config"
	"git.home.luguber.info/inful/modeldoc/internal/eventstore"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/metrics"
	"git.home.luguber.info/inful/modeldoc/internal/pipeline"
)

// Global carries state shared by every subcommand.
type Global struct {
	Context context.Context
	// Stdout receives command output; nil means os.Stdout.
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Global) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

func (g *Global) context() context.Context {
	if g.Context == nil {
		return context.Background()
	}
	return g.Context
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"modeldoc.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" default:"withargs" help:"Resolve addresses, persist the label forest and generate the site"`
	Graph    GraphCmd    `cmd:"" help:"Print every model element with its resolved address"`
	Site     SiteCmd     `cmd:"" help:"Generate the static site from persisted label forests only"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	Watch    WatchCmd    `cmd:"" help:"Regenerate on changes and optionally serve a preview"`
	History  HistoryCmd  `cmd:"" help:"List recent generation runs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	setupLogging(config.LoggingConfig{}, c.Verbose)
	return nil
}

// setupLogging installs the slog default handler. -v always wins over the
// configured level.
func setupLogging(lc config.LoggingConfig, verbose bool) {
	level := lc.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if lc.Format == config.LogFormatJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// loadConfig reads the configuration and reinstalls logging from it.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Logging, c.Verbose)
	return cfg, nil
}

// runtime owns the optional metrics registry and history store of a command.
type runtime struct {
	cfg      *config.Config
	registry *prom.Registry
	recorder metrics.Recorder
	store    eventstore.Store
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, recorder: metrics.NoopRecorder{}}
	if cfg.MetricsFile != "" || cfg.Watch.Serve != "" {
		rt.registry = prom.NewRegistry()
		rt.recorder = metrics.NewPrometheusRecorder(rt.registry)
	}
	if cfg.HistoryDB != "" {
		store, err := eventstore.NewSQLiteStore(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		rt.store = store
	}
	return rt, nil
}

func (rt *runtime) pipeline() *pipeline.Pipeline {
	opts := []pipeline.Option{pipeline.WithRecorder(rt.recorder)}
	if rt.store != nil {
		opts = append(opts, pipeline.WithEventStore(rt.store))
	}
	return pipeline.New(rt.cfg, opts...)
}

// flush writes the metrics textfile when one is configured.
func (rt *runtime) flush() {
	if rt.registry == nil || rt.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(rt.registry, rt.cfg.MetricsFile); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(rt.cfg.MetricsFile), logfields.Error(err))
	}
}

func (rt *runtime) Close() {
	rt.flush()
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			slog.Warn("Failed to close history store", logfields.Error(err))
		}
	}
}
