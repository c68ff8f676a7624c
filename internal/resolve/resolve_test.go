package resolve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/modeldoc/internal/addressing"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/label"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel"
	"git.home.luguber.info/inful/modeldoc/internal/metamodel/ecore"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
)

// page is a minimal processor: one link labelled with the element name whose
// children are the labels of its resolved children.
type page struct {
	processor.Base
	resolveErr error
	labelsErr  error
	labels     func(ctx context.Context, scope processor.Scope) ([]*label.Label, error)
}

func (p *page) Resolve(ctx context.Context, address *url.URL) error {
	if err := p.Base.Resolve(ctx, address); err != nil {
		return err
	}
	return p.resolveErr
}

func (p *page) Labels(ctx context.Context, scope processor.Scope) ([]*label.Label, error) {
	if p.labelsErr != nil {
		return nil, p.labelsErr
	}
	if p.labels != nil {
		return p.labels(ctx, scope)
	}
	children, err := scope.ChildLabels(ctx)
	if err != nil {
		return nil, err
	}
	return []*label.Label{{
		Title:    metamodel.NameOf(p.Node().Object()),
		Location: addressing.Page(p.Address()).String(),
		Children: children,
	}}, nil
}

func pages(configure func(p *page)) processor.Factory {
	return func(_ context.Context, node *graph.Node, _ *graph.Graph) (processor.Processor, error) {
		p := &page{Base: processor.NewBase(node)}
		if configure != nil {
			configure(p)
		}
		return p, nil
	}
}

func named(name string, configure func(p *page)) func(p *page) {
	return func(p *page) {
		if metamodel.NameOf(p.Node().Object()) == name {
			configure(p)
		}
	}
}

func samplePackage() *ecore.Package {
	p := ecore.NewPackage("P", "urn:p")
	c := p.NewClass("C")
	d := p.NewClass("D")
	c.AddOperation("foo", nil)
	c.AddOperation("foo", nil, ecore.NewParameter("x", ecore.Builtins().Classifier("EInt")))
	c.AddReference("d", d, false, false)
	return p
}

type fixture struct {
	pkg  *ecore.Package
	g    *graph.Graph
	reg  *processor.Registry
	base *url.URL
}

func setup(t *testing.T, segment graph.SegmentFunc, factory processor.Factory) fixture {
	t.Helper()
	pkg := samplePackage()
	if segment == nil {
		namer, err := addressing.NewNamer(ecore.Introspector{})
		require.NoError(t, err)
		segment = namer.Segment
	}
	g, failures, err := graph.Build(context.Background(), ecore.Introspector{}, []metamodel.Object{pkg}, segment)
	require.NoError(t, err)
	require.Empty(t, failures)
	reg, failures, err := processor.CreateProcessors(context.Background(), g, processor.Chain{factory})
	require.NoError(t, err)
	require.Empty(t, failures)
	base, err := addressing.ParseBase("https://example.org/")
	require.NoError(t, err)
	return fixture{pkg: pkg, g: g, reg: reg, base: base}
}

func (f fixture) resolve(t *testing.T) (*Resolution, []ferrors.Failure) {
	t.Helper()
	root, err := FindRoot(f.reg, f.pkg)
	require.NoError(t, err)
	res, failures, err := Resolve(context.Background(), f.reg, root, f.base)
	require.NoError(t, err)
	return res, failures
}

func (f fixture) addressOf(t *testing.T, res *Resolution, obj metamodel.Object) string {
	t.Helper()
	h, ok := f.g.Lookup(obj)
	require.True(t, ok)
	u, ok := res.AddressOf(h)
	if !ok {
		return ""
	}
	return u.String()
}

func TestResolveAddresses(t *testing.T) {
	f := setup(t, nil, pages(nil))
	res, failures := f.resolve(t)
	assert.Empty(t, failures)

	c := f.pkg.Classifier("C").(*ecore.Class)
	sum := sha256.Sum256([]byte("EInt@" + ecore.Namespace))

	assert.Equal(t, "https://example.org/P", f.addressOf(t, res, f.pkg))
	assert.Equal(t, "https://example.org/P/C", f.addressOf(t, res, c))
	assert.Equal(t, "https://example.org/P/D", f.addressOf(t, res, f.pkg.Classifier("D")))
	assert.Equal(t, "https://example.org/P/C/foo", f.addressOf(t, res, c.Operations[0]))
	assert.Equal(t, "https://example.org/P/C/foo-"+hex.EncodeToString(sum[:]), f.addressOf(t, res, c.Operations[1]))
	assert.Equal(t, "https://example.org/P/C/d", f.addressOf(t, res, c.References[0]))

	// EInt is reachable but not contained below the root.
	eint, ok := f.g.Lookup(c.Operations[1].Parameters[0].Type)
	require.True(t, ok)
	_, resolved := res.AddressOf(eint)
	assert.False(t, resolved)

	for _, h := range res.Order() {
		u, _ := res.AddressOf(h)
		assert.Equal(t, u, f.reg.Processor(h).Address())
	}
}

func TestFindRootNotFound(t *testing.T) {
	f := setup(t, nil, pages(nil))
	_, err := FindRoot(f.reg, ecore.NewPackage("other", "urn:other"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	assert.True(t, ferrors.IsFatal(err))
}

func TestResolveCollision(t *testing.T) {
	byReference := func(_, _ metamodel.Object, ref metamodel.Reference, _ int) (string, error) {
		return ref.Name, nil
	}
	f := setup(t, byReference, pages(nil))
	res, failures := f.resolve(t)

	// C and D both claim P/eClassifiers; the two foo operations claim
	// P/eClassifiers/eOperations.
	require.Len(t, failures, 2)
	for _, failure := range failures {
		assert.Equal(t, ferrors.CategoryResolution, failure.Category)
		assert.Contains(t, failure.Error(), "address collision")
	}
	assert.Equal(t, "https://example.org/P/eClassifiers", f.addressOf(t, res, f.pkg.Classifier("C")))
	assert.Empty(t, f.addressOf(t, res, f.pkg.Classifier("D")))
}

func TestResolveProcessorFailure(t *testing.T) {
	f := setup(t, nil, pages(named("C", func(p *page) { p.resolveErr = errors.New("broken") })))
	res, failures := f.resolve(t)

	require.Len(t, failures, 1)
	assert.Equal(t, "EClass C", failures[0].Origin)
	assert.ErrorContains(t, failures[0], "broken")

	// The failing node keeps its address and its children are still visited.
	c := f.pkg.Classifier("C").(*ecore.Class)
	assert.Equal(t, "https://example.org/P/C/foo", f.addressOf(t, res, c.Operations[0]))
}

func TestResolveCanceled(t *testing.T) {
	f := setup(t, nil, pages(nil))
	root, err := FindRoot(f.reg, f.pkg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = Resolve(ctx, f.reg, root, f.base)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCanceled))
}

func TestCollectLabels(t *testing.T) {
	f := setup(t, nil, pages(nil))
	res, _ := f.resolve(t)

	forest, failures, err := CollectLabels(context.Background(), res)
	require.NoError(t, err)
	assert.Empty(t, failures)

	require.Len(t, forest, 1)
	root := forest[0]
	assert.Equal(t, "P", root.Title)
	assert.Equal(t, "https://example.org/P/index.html", root.Location)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "C", root.Children[0].Title)
	assert.Equal(t, "D", root.Children[1].Title)
	assert.Len(t, root.Children[0].Children, 3)
}

func TestCollectLabelsFailureIsolated(t *testing.T) {
	f := setup(t, nil, pages(named("C", func(p *page) { p.labelsErr = errors.New("no labels") })))
	res, _ := f.resolve(t)

	forest, failures, err := CollectLabels(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, ferrors.CategoryProcessor, failures[0].Category)
	assert.Equal(t, "EClass C", failures[0].Origin)

	require.Len(t, forest, 1)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "D", forest[0].Children[0].Title)
}

func TestScopeLabelsOfRejectsGrandchildren(t *testing.T) {
	var grandchild graph.Handle
	f := setup(t, nil, pages(named("P", func(p *page) {
		p.labels = func(ctx context.Context, scope processor.Scope) ([]*label.Label, error) {
			return scope.LabelsOf(ctx, grandchild)
		}
	})))
	c := f.pkg.Classifier("C").(*ecore.Class)
	h, ok := f.g.Lookup(c.Operations[0])
	require.True(t, ok)
	grandchild = h
	res, _ := f.resolve(t)

	forest, failures, err := CollectLabels(context.Background(), res)
	require.NoError(t, err)
	assert.Empty(t, forest)
	require.Len(t, failures, 1)
	assert.ErrorContains(t, failures[0], "is not a resolved child")
}

func TestCollectLabelsCanceled(t *testing.T) {
	f := setup(t, nil, pages(nil))
	res, _ := f.resolve(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := CollectLabels(ctx, res)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCanceled))
}

func TestRelativize(t *testing.T) {
	f := setup(t, nil, pages(nil))
	res, _ := f.resolve(t)
	forest, _, err := CollectLabels(context.Background(), res)
	require.NoError(t, err)

	forest[0].Children = append(forest[0].Children, &label.Label{Title: "Ecore", Location: "https://eclipse.dev/emf/"})
	rel := Relativize(forest, f.base)

	var locations []string
	rel.Walk(func(l *label.Label, _ int) bool {
		if l.IsLink() {
			locations = append(locations, l.Location)
		}
		return true
	})
	want := []string{
		"${base-uri}P/index.html",
		"${base-uri}P/C/index.html",
		"${base-uri}P/C/foo/index.html",
	}
	assert.Subset(t, locations, want)
	assert.Contains(t, locations, "https://eclipse.dev/emf/")

	// The input forest is untouched.
	assert.Equal(t, "https://example.org/P/index.html", forest[0].Location)

	mounted := label.Mount(rel, "https://mirror.example.net/docs/")
	if diff := cmp.Diff("https://mirror.example.net/docs/P/index.html", mounted[0].Location); diff != "" {
		t.Fatalf("mounted root location (-want +got):\n%s", diff)
	}
}
