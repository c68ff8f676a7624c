package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/modeldoc/internal/config"
	"git.home.luguber.info/inful/modeldoc/internal/eventstore"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/graph"
	"git.home.luguber.info/inful/modeldoc/internal/label"
	"git.home.luguber.info/inful/modeldoc/internal/metrics"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
)

const libraryModel = `name: library
nsURI: http://example.org/library
doc: A small *library* model.
classifiers:
  - class: Library
    references:
      - name: books
        type: Book
        containment: true
        many: true
  - class: Book
    attributes:
      - name: title
        type: EString
`

const pageTemplate = `<html><head><title>{{.Title}}</title></head><body>
<a href="{{.Root}}">Home</a>{{.Text}}
<ul>{{range .Label.Children}}{{if .IsLink}}<li><a href="{{url .}}">{{.Title}}</a></li>{{end}}{{end}}</ul>
</body></html>
`

type workspace struct {
	dir string
	cfg *config.Config
}

func newWorkspace(t *testing.T, withSite bool) *workspace {
	t.Helper()
	dir := t.TempDir()
	write(t, dir, "model.yaml", libraryModel)
	write(t, dir, "docs/library/Book.md", "---\ntitle: Books\nicon: book\n---\nEvery book of the library.\n")

	conf := "model: model.yaml\nbase_uri: https://example.org/docs/\ndocs_dir: docs\nworkers: 2\n"
	if withSite {
		write(t, dir, "site/root.yaml", "title: Library docs\ntext: Start **here**.\nincludes:\n  - path: ../labels.yaml\n")
		write(t, dir, "site/page.html", pageTemplate)
		write(t, dir, "site/template.yaml", "template_file: page.html\n")
		conf += "site:\n  root_document: site/root.yaml\n  page_template: site/template.yaml\n  domain: docs.example.org\n  output: public\n"
	}
	cfg, err := config.Parse([]byte(conf), dir)
	require.NoError(t, err)
	return &workspace{dir: dir, cfg: cfg}
}

func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

type countingRecorder struct {
	metrics.NoopRecorder
	stages   map[string]metrics.ResultLabel
	outcomes []string
	failures map[string]int
	pages    int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{stages: map[string]metrics.ResultLabel{}, failures: map[string]int{}}
}

func (r *countingRecorder) IncStageResult(stage string, res metrics.ResultLabel) { r.stages[stage] = res }
func (r *countingRecorder) IncRunOutcome(o string)                              { r.outcomes = append(r.outcomes, o) }
func (r *countingRecorder) AddFailures(c string, n int)                         { r.failures[c] += n }
func (r *countingRecorder) SetPages(n int)                                      { r.pages = n }

func TestRunGeneratesLabelsAndSite(t *testing.T) {
	ws := newWorkspace(t, true)
	rec := newCountingRecorder()
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	report, err := New(ws.cfg, WithRecorder(rec), WithEventStore(store)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome, report.Summary())
	assert.Empty(t, report.Failures)
	assert.Empty(t, report.SiteErrors)
	assert.Positive(t, report.Nodes)
	assert.Equal(t, report.Nodes, report.Processors)
	assert.Len(t, report.StageDurations, 7)

	forest, err := label.Load(ws.cfg.LabelsFile)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "library", forest[0].Title)
	assert.Equal(t, "${base-uri}library/index.html", forest[0].Location)

	var titles []string
	forest.Walk(func(l *label.Label, _ int) bool {
		titles = append(titles, l.Title)
		return true
	})
	assert.Contains(t, titles, "Books", "prototype overrides the Book title")

	page, err := os.ReadFile(filepath.Join(ws.cfg.Site.Output, "library", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>library</title>")
	assert.Contains(t, string(page), "<em>library</em>")
	assert.FileExists(t, filepath.Join(ws.cfg.Site.Output, "sitemap.xml"))

	book, err := os.ReadFile(filepath.Join(ws.cfg.Site.Output, "library", "Book", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(book), "<title>Books</title>", "the page belongs to the element, not to a reference to it")
	assert.Contains(t, string(book), "Every book of the library.")
	assert.Equal(t, report.Pages, rec.pages)
	assert.Positive(t, report.Pages)

	raw, err := os.ReadFile(filepath.Join(ws.cfg.Site.WorkDir, ReportFile))
	require.NoError(t, err)
	var persisted ReportSerializable
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, report.RunID, persisted.RunID)
	assert.Equal(t, "success", persisted.Outcome)
	assert.NotEmpty(t, persisted.DocsFingerprint)
	assert.Equal(t, report.DocsFingerprint, persisted.DocsFingerprint)

	assert.Equal(t, metrics.ResultSuccess, rec.stages[string(StageGenerateSite)])
	assert.Equal(t, []string{"success"}, rec.outcomes)

	events, err := store.GetByRunID(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, events, 9)
	assert.Equal(t, eventstore.TypeRunStarted, events[0].Type())
	assert.Equal(t, eventstore.TypeRunCompleted, events[8].Type())

	runs, err := eventstore.Runs(context.Background(), store, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.Pages, runs[0].Pages)
}

func TestRunWithoutSite(t *testing.T) {
	ws := newWorkspace(t, false)
	report, err := New(ws.cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Zero(t, report.Pages)
	assert.FileExists(t, ws.cfg.LabelsFile)
}

// failOn rejects the nodes named name and defers every other node.
func failOn(name string) processor.Factory {
	return func(_ context.Context, node *graph.Node, _ *graph.Graph) (processor.Processor, error) {
		if n, ok := node.Object().(interface{ ElementName() string }); ok && n.ElementName() == name {
			return nil, errors.New("no documentation for " + name)
		}
		return nil, nil
	}
}

func TestRunProcessorFailuresAreBatched(t *testing.T) {
	ws := newWorkspace(t, true)
	rec := newCountingRecorder()

	report, err := New(ws.cfg, WithRecorder(rec), WithFactories(failOn("Book"), failOn("title"))).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "there have been 2 failures during processor creation")
	assert.Len(t, ferrors.FailuresOf(errors.Unwrap(err)), 2)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageCreateProcessors, se.Stage)
	assert.Equal(t, StageErrorFatal, se.Kind)

	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Len(t, report.Failures, 2)
	assert.Equal(t, 2, rec.failures[string(ferrors.CategoryProcessor)])
	assert.NotContains(t, report.StageDurations, string(StageResolve), "later stages do not run")
	assert.NoFileExists(t, ws.cfg.LabelsFile)
	assert.FileExists(t, filepath.Join(ws.cfg.Site.WorkDir, ReportFile))
}

func TestRunRootNotFound(t *testing.T) {
	ws := newWorkspace(t, false)
	ws.cfg.Root = "missing"

	report, err := New(ws.cfg).Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	assert.True(t, ferrors.IsFatal(err))
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, StageErrorFatal, report.StageErrorKinds[StageLoadModel])
}

func TestRunUnknownDigestIsConfigError(t *testing.T) {
	ws := newWorkspace(t, false)
	ws.cfg.Digest = "md5"

	_, err := New(ws.cfg).Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestRunCanceled(t *testing.T) {
	ws := newWorkspace(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(ws.cfg).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, OutcomeCanceled, report.Outcome)
	assert.Equal(t, StageErrorCanceled, report.StageErrorKinds[StageLoadModel])
}

func TestRunSiteErrorsAreWarnings(t *testing.T) {
	ws := newWorkspace(t, true)
	write(t, ws.dir, "site/page.html", pageTemplate+`{{if eq .Path "index.html"}}<a href="{{page "gone/index.html"}}">x</a>{{end}}`)

	report, err := New(ws.cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, report.Outcome)
	require.Contains(t, report.SiteErrors, "index.html")
	assert.Equal(t, StageErrorWarning, report.StageErrorKinds[StageGenerateSite])
}

func TestRunUnusedPrototypeWarns(t *testing.T) {
	ws := newWorkspace(t, false)
	write(t, ws.dir, "docs/library/Magazine.md", "# Magazines\n")

	report, err := New(ws.cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, report.Outcome)
	assert.Equal(t, []string{"library/Magazine"}, report.UnusedPrototypes)
}

func TestAddresses(t *testing.T) {
	ws := newWorkspace(t, false)
	nodes, report, err := New(ws.cfg).Addresses(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, report.StageDurations, string(StageCollectLabels))
	assert.NoFileExists(t, filepath.Join(ws.cfg.Site.WorkDir, ReportFile))

	byName := map[string]NodeAddress{}
	for _, n := range nodes {
		byName[n.Name] = n
	}
	assert.Equal(t, "https://example.org/docs/library", byName["library"].Address)
	assert.Equal(t, "https://example.org/docs/library/Book", byName["Book"].Address)
	assert.True(t, strings.HasPrefix(byName["Book"].Classifier, "EClass"))
	assert.Empty(t, byName["EString"].Address, "types outside the root package are not resolved")
}

func TestClassifyStageResult(t *testing.T) {
	assert.Equal(t, metrics.ResultSuccess, classifyStageResult(StageResolve, nil).Result)

	out := classifyStageResult(StageResolve, errors.New("boom"))
	assert.True(t, out.Abort)
	assert.Equal(t, StageErrorFatal, out.Error.Kind)

	out = classifyStageResult(StageResolve, ferrors.CanceledError("stop").Build())
	assert.Equal(t, metrics.ResultCanceled, out.Result)

	out = classifyStageResult(StageResolve, context.DeadlineExceeded)
	assert.Equal(t, StageErrorCanceled, out.Error.Kind)

	out = classifyStageResult(StageGenerateSite, newWarnStageError(StageGenerateSite, errors.New("pages")))
	assert.False(t, out.Abort)
	assert.Equal(t, metrics.ResultWarning, out.Result)
}

func TestReportPersist(t *testing.T) {
	r := newReport("run-1")
	r.Failures = []ferrors.Failure{{Category: ferrors.CategoryResolution, Origin: "EClass Book", Err: errors.New("address collision")}}
	r.Errors = append(r.Errors, newFatalStageError(StageResolve, errors.New("batch")))
	r.StageDurations[string(StageResolve)] = 3 * time.Millisecond
	dir := filepath.Join(t.TempDir(), "work")

	require.NoError(t, r.Persist(dir))
	assert.Equal(t, OutcomeFailed, r.Outcome)

	raw, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)
	var s ReportSerializable
	require.NoError(t, json.Unmarshal(raw, &s))
	require.Len(t, s.Failures, 1)
	assert.Equal(t, "resolution", s.Failures[0].Category)
	assert.Equal(t, "address collision", s.Failures[0].Message)

	summary, err := os.ReadFile(filepath.Join(dir, "build-report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "outcome=failed")
}
