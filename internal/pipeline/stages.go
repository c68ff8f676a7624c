package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"

	"git.home.luguber.info/inful/modeldoc/internal/addressing"
	"git.home.luguber.info/inful/modeldoc/internal/config"
	"git.home.luguber.info/inful/modeldoc/internal/docproc"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/label"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/markdown"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel/ecore"
	"git.home.luguber.info/inful/modeldoc/internal/metrics"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
	"git.home.luguber.info/inful/modeldoc/internal/resolve"
	"git.home.luguber.info/inful/modeldoc/internal/site"
)

// State carries the artifacts of one run from stage to stage. Every stage
// reads the artifacts of earlier stages and adds its own.
type State struct {
	cfg       *config.Config
	md        *markdown.Renderer
	factories []processor.Factory
	recorder  metrics.Recorder

	base       *url.URL
	packages   []*ecore.Package
	root       *ecore.Package
	docs       *docproc.DocLoader
	graph      *graph.Graph
	registry   *processor.Registry
	resolution *resolve.Resolution
	forest     label.Forest

	Report *Report
}

func stageLoadModel(_ context.Context, st *State) error {
	base, err := addressing.ParseBase(st.cfg.BaseURI)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid base URI").
			WithContext("base_uri", st.cfg.BaseURI).Fatal().Build()
	}
	st.base = base

	pkgs, err := ecore.LoadFile(st.cfg.Model)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "cannot load model").
			WithContext("model", st.cfg.Model).Fatal().Build()
	}
	root, err := selectRoot(pkgs, st.cfg.Root)
	if err != nil {
		return err
	}
	st.packages, st.root = pkgs, root

	docs, err := docproc.LoadDocs(st.cfg.DocsDir, st.md)
	if err != nil {
		return err
	}
	st.docs = docs
	st.Report.DocsFingerprint = docs.Fingerprint()
	slog.Info("Model loaded",
		logfields.File(st.cfg.Model),
		slog.String("root", root.Name),
		slog.Int("packages", len(pkgs)),
		slog.Int("prototypes", docs.Len()))
	return nil
}

func selectRoot(pkgs []*ecore.Package, name string) (*ecore.Package, error) {
	if len(pkgs) == 0 {
		return nil, ferrors.ValidationError("model has no packages").Build()
	}
	if name == "" {
		return pkgs[0], nil
	}
	for _, p := range pkgs {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, ferrors.RootNotFoundError("root package not found in model").
		WithContext("root", name).
		Build()
}

func stageBuildGraph(ctx context.Context, st *State) error {
	namer, err := addressing.NewNamer(ecore.Introspector{}, addressing.WithDigest(st.cfg.Digest))
	if err != nil {
		return err
	}
	roots := make([]metamodel.Object, 0, len(st.packages))
	for _, p := range st.packages {
		roots = append(roots, p)
	}
	g, failures, err := graph.Build(ctx, ecore.Introspector{}, roots, namer.Segment)
	if err != nil {
		return err
	}
	st.graph = g
	st.Report.Nodes = g.Len()
	st.recorder.SetNodes(g.Len())
	return ferrors.Batch(ferrors.CategoryIntrospection, "graph construction", failures)
}

func stageCreateProcessors(ctx context.Context, st *State) error {
	chain := make(processor.Chain, 0, len(st.factories)+1)
	chain = append(chain, st.factories...)
	chain = append(chain, docproc.PrototypeFactory(st.docs, docproc.ReflectiveFactory(st.md)))

	workers := st.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	reg, failures, err := processor.CreateProcessors(ctx, st.graph, chain, processor.WithWorkers(workers))
	if err != nil {
		return err
	}
	st.registry = reg
	st.Report.Processors = reg.Len()

	if unused := st.docs.Unused(); len(unused) > 0 {
		st.Report.UnusedPrototypes = unused
		for _, key := range unused {
			slog.Warn("Documentation prototype matches no model element", logfields.File(key))
			st.Report.Warnings = append(st.Report.Warnings, fmt.Errorf("documentation prototype %q matches no model element", key))
		}
	}
	return ferrors.Batch(ferrors.CategoryProcessor, "processor creation", failures)
}

func stageResolve(ctx context.Context, st *State) error {
	root, err := resolve.FindRoot(st.registry, st.root)
	if err != nil {
		return err
	}
	res, failures, err := resolve.Resolve(ctx, st.registry, root, st.base)
	if err != nil {
		return err
	}
	st.resolution = res
	st.Report.Resolved = len(res.Order())
	return ferrors.Batch(ferrors.CategoryResolution, "address resolution", failures)
}

func stageCollectLabels(ctx context.Context, st *State) error {
	forest, failures, err := resolve.CollectLabels(ctx, st.resolution)
	if err != nil {
		return err
	}
	st.forest = forest
	st.Report.Labels = forest.Len()
	return ferrors.Batch(ferrors.CategoryProcessor, "label collection", failures)
}

func stagePersistLabels(_ context.Context, st *State) error {
	rel := resolve.Relativize(st.forest, st.base)
	if err := label.Save(st.cfg.LabelsFile, rel); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot persist labels").
			WithContext("path", st.cfg.LabelsFile).Fatal().Build()
	}
	slog.Info("Labels persisted", logfields.Path(st.cfg.LabelsFile), logfields.Count(rel.Len()))
	return nil
}

func stageGenerateSite(ctx context.Context, st *State) error {
	if !st.cfg.Site.Enabled() {
		slog.Debug("Site generation not configured")
		return nil
	}
	res, err := site.Run(ctx, SiteOptions(st.cfg, st.md))
	if err != nil {
		return err
	}
	st.Report.Pages = res.Pages
	st.recorder.SetPages(res.Pages)
	if len(res.Errors) == 0 {
		return nil
	}
	st.Report.SiteErrors = res.Errors
	return newWarnStageError(StageGenerateSite, ferrors.RenderError(
		fmt.Sprintf("there have been %d errors in %d site files", res.ErrorCount(), len(res.Errors))).Build())
}

// SiteOptions maps the site section of cfg onto the site generator.
func SiteOptions(cfg *config.Config, md *markdown.Renderer) site.Options {
	return site.Options{
		RootDocument: cfg.Site.RootDocument,
		PageTemplate: cfg.Site.PageTemplate,
		SiteDomain:   cfg.Site.Domain,
		OutputDir:    cfg.Site.Output,
		WorkDir:      cfg.Site.WorkDir,
		Clean:        cfg.Site.Clean,
		Preserve:     cfg.Site.Preserve,
		Workers:      cfg.Site.Workers,
		Markdown:     md,
	}
}

// NodeAddress describes one graph node and where it was resolved.
type NodeAddress struct {
	Handle     graph.Handle
	Classifier string
	Name       string
	// Address is empty for nodes outside the containment tree of the root.
	Address string
}

// Addresses runs the stages up to address resolution and lists every node
// with its address. No report is persisted.
func (p *Pipeline) Addresses(ctx context.Context) ([]NodeAddress, *Report, error) {
	st, err := p.execute(ctx, stagesThrough(StageResolve), false)
	if err != nil {
		return nil, st.Report, err
	}
	out := make([]NodeAddress, 0, st.graph.Len())
	for _, n := range st.graph.Nodes() {
		na := NodeAddress{
			Handle:     n.Handle(),
			Classifier: n.Classifier().String(),
			Name:       metamodel.NameOf(n.Object()),
		}
		if u, ok := st.resolution.AddressOf(n.Handle()); ok {
			na.Address = u.String()
		}
		out = append(out, na)
	}
	return out, st.Report, nil
}

func stagesThrough(last StageName) []StageDef {
	all := defaultStages()
	for i, sd := range all {
		if sd.Name == last {
			return all[:i+1]
		}
	}
	return all
}
