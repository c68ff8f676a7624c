package commands

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/pipeline"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Output string `short:"o" help:"Override the site output directory"`
}

func (g *GenerateCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if g.Output != "" {
		cfg.Site.Output = g.Output
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.pipeline().Run(global.context())
	if err != nil {
		return err
	}
	return reportSiteErrors(global, report)
}

// reportSiteErrors prints every failing output path and turns them into the
// command's error.
func reportSiteErrors(global *Global, report *pipeline.Report) error {
	if len(report.SiteErrors) == 0 {
		fmt.Fprintln(global.stdout(), report.Summary())
		return nil
	}
	n := ferrors.PrintSiteErrors(global.stderr(), report.SiteErrors)
	return ferrors.RenderError(fmt.Sprintf("there have been %d errors in %d site files", n, len(report.SiteErrors))).Build()
}
