package commands

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/modeldoc/internal/config"
	"git.home.luguber.info/inful/modeldoc/internal/metrics"
	"git.home.luguber.info/inful/modeldoc/internal/pipeline"
	"git.home.luguber.info/inful/modeldoc/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Serve    string        `help:"Serve the generated site on this address (overrides watch.serve)"`
	Interval time.Duration `help:"Also regenerate periodically (overrides watch.interval)"`
}

// override applies the command line flags on top of cfg.
func (c *WatchCmd) override(cfg *config.Config) {
	if c.Serve != "" {
		cfg.Watch.Serve = c.Serve
	}
	if c.Interval > 0 {
		cfg.Watch.Interval = c.Interval
	}
}

func (c *WatchCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	c.override(cfg)
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	build := func(ctx context.Context, reason string) error {
		// Configuration edits apply to the next run; the runtime stays.
		next, err := config.Load(root.Config)
		if err != nil {
			return err
		}
		c.override(next)
		rt.cfg = next
		report, err := rt.pipeline().Run(ctx)
		rt.flush()
		if err != nil {
			return err
		}
		if report.Outcome != pipeline.OutcomeSuccess {
			slog.Warn("Regenerated with problems", "reason", reason, "summary", report.Summary())
		}
		return nil
	}

	opts := watch.OptionsFor(cfg)
	opts.Files = append(opts.Files, root.Config)
	w, err := watch.New(opts, build)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(global.context())
	g.Go(func() error { return w.Run(ctx) })
	if cfg.Watch.Serve != "" && cfg.Site.Enabled() {
		srv := watch.NewServer(cfg.Watch.Serve, cfg.Site.Output, metrics.HTTPHandler(rt.registry))
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
