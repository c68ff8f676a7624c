package commands

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/markdown"
	"git.home.luguber.info/inful/modeldoc/internal/pipeline"
	"git.home.luguber.info/inful/modeldoc/internal/site"
)

// SiteCmd implements the 'site' command.
type SiteCmd struct {
	Output string `short:"o" help:"Override the site output directory"`
}

func (s *SiteCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if s.Output != "" {
		cfg.Site.Output = s.Output
	}
	if !cfg.Site.Enabled() {
		return ferrors.ConfigError("site.root_document is not configured").
			WithContext("path", root.Config).Build()
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := pipeline.SiteOptions(cfg, markdown.New(markdown.Options{Unsafe: cfg.UnsafeHTML}))
	res, err := site.Run(global.context(), opts)
	if err != nil {
		return err
	}
	rt.recorder.SetPages(res.Pages)
	if len(res.Errors) == 0 {
		fmt.Fprintln(global.stdout(), res.String())
		return nil
	}
	n := ferrors.PrintSiteErrors(global.stderr(), res.Errors)
	return ferrors.RenderError(fmt.Sprintf("there have been %d errors in %d site files", n, len(res.Errors))).Build()
}
