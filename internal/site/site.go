// Package site renders a label forest into a static HTML site.
//
// A root document names the top page and the persisted label forests to
// mount below it; a page template renders every local link label into its
// own page. Per-page problems are collected by output path and never stop
// the other pages from being produced.
package site

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/markdown"
)

// Options configures one site generation.
type Options struct {
	// RootDocument is the YAML root document.
	RootDocument string
	// PageTemplate is the YAML page template description.
	PageTemplate string
	// SiteDomain enables sitemap.xml generation when set.
	SiteDomain string
	OutputDir  string
	// WorkDir holds the staging directory and the page manifest.
	WorkDir string
	// Clean removes every entry of OutputDir not listed in Preserve first.
	Clean    bool
	Preserve []string
	// Workers bounds concurrent page rendering; zero means GOMAXPROCS.
	Workers int
	// Markdown renders the root document text. Defaults to safe GFM.
	Markdown *markdown.Renderer
}

// Result describes a finished generation.
type Result struct {
	// Errors maps output paths to their error messages.
	Errors map[string][]string
	// Pages is the number of pages rendered.
	Pages int
	// Written and Unchanged count promoted files by whether their content
	// changed since the previous run.
	Written   int
	Unchanged int
}

// ErrorCount returns the total number of error messages.
func (r *Result) ErrorCount() int {
	n := 0
	for _, msgs := range r.Errors {
		n += len(msgs)
	}
	return n
}

// Generate renders the site and returns the errors per output path. An
// empty map means success. The returned error is set only when nothing
// useful could be produced: unreadable inputs, an output directory that
// cannot be written, or cancellation.
func Generate(ctx context.Context, opts Options) (map[string][]string, error) {
	res, err := Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	return res.Errors, nil
}

// Run is Generate with statistics.
func Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	if opts.OutputDir == "" || opts.WorkDir == "" {
		return nil, ferrors.ConfigError("output and work directories are required").Fatal().Build()
	}
	md := opts.Markdown
	if md == nil {
		md = markdown.New(markdown.Options{})
	}

	doc, err := LoadRootDocument(opts.RootDocument, md)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot load root document").
			WithContext("root_document", opts.RootDocument).Fatal().Build()
	}
	pt, err := LoadPageTemplate(opts.PageTemplate)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot load page template").
			WithContext("page_template", opts.PageTemplate).Fatal().Build()
	}
	tmpl, err := parseTemplate(pt.Source)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid page template").
			WithContext("page_template", opts.PageTemplate).Fatal().Build()
	}
	assets, err := listAssets(pt.Assets)
	if err != nil {
		return nil, fsError(err, "cannot read assets", pt.Assets)
	}

	errs := &pathErrors{}
	root, includeErrs := doc.Assemble()
	rootPath, err := PagePath(root.Location)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid root document location").Fatal().Build()
	}
	errs.add(rootPath, includeErrs...)

	pages := collectPages(root, errs)
	produced := make(map[string]bool, len(pages)+len(assets)+1)
	byPath := make(map[string]*page, len(pages))
	for _, p := range pages {
		produced[p.path] = true
		byPath[p.path] = p
	}
	for _, a := range assets {
		produced[a] = true
	}
	if opts.SiteDomain != "" {
		produced[SitemapFile] = true
	}

	stage, err := beginStaging(opts.WorkDir)
	if err != nil {
		return nil, fsError(err, "cannot create staging directory", opts.WorkDir)
	}
	r := &renderer{tmpl: tmpl, pages: byPath, rootPath: rootPath, domain: opts.SiteDomain}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, renderErrs := r.render(p)
			errs.add(p.path, renderErrs...)
			if content == nil {
				return nil
			}
			errs.add(p.path, verifyLinks(p.path, content, func(t string) bool { return produced[t] })...)
			if err := writeFile(stage, p.path, content); err != nil {
				return fsError(err, "cannot stage page", p.path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ferrors.WrapError(ctx.Err(), ferrors.CategoryCanceled, "site generation canceled").Fatal().Build()
		}
		return nil, err
	}

	if err := copyAssets(pt.Assets, stage, assets); err != nil {
		return nil, fsError(err, "cannot stage assets", pt.Assets)
	}
	if opts.SiteDomain != "" {
		paths := make([]string, 0, len(pages))
		for _, p := range pages {
			paths = append(paths, p.path)
		}
		sitemap, err := buildSitemap(opts.SiteDomain, paths)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRender, "cannot build sitemap").Fatal().Build()
		}
		if err := writeFile(stage, SitemapFile, sitemap); err != nil {
			return nil, fsError(err, "cannot stage sitemap", SitemapFile)
		}
	}

	if opts.Clean {
		if err := cleanOutput(opts.OutputDir, opts.Preserve); err != nil {
			return nil, fsError(err, "cannot clean output directory", opts.OutputDir)
		}
	}
	next, stats, err := promote(stage, opts.OutputDir, loadManifest(opts.WorkDir), opts.Preserve)
	if err != nil {
		return nil, fsError(err, "cannot promote staged site", opts.OutputDir)
	}
	if err := next.save(opts.WorkDir); err != nil {
		return nil, fsError(err, "cannot save page manifest", opts.WorkDir)
	}

	res := &Result{
		Errors:    errs.result(),
		Pages:     len(pages),
		Written:   stats.written,
		Unchanged: stats.unchanged,
	}
	slog.Info("Site generated",
		logfields.Path(opts.OutputDir),
		"pages", res.Pages,
		"written", res.Written,
		"unchanged", res.Unchanged,
		logfields.Failures(res.ErrorCount()),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return res, nil
}

func fsError(err error, msg, p string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, msg).
		WithContext("path", p).
		Fatal().
		Build()
}

// String summarizes the result on one line.
func (r *Result) String() string {
	return fmt.Sprintf("pages=%d written=%d unchanged=%d errors=%d", r.Pages, r.Written, r.Unchanged, r.ErrorCount())
}
