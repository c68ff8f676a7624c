// Package pipeline runs a complete documentation generation: it loads the
// model, builds its graph, attaches processors, resolves addresses, collects
// and persists the label forest and finally renders the site.
//
// Stages run strictly in order. Per-element failures of a stage are collected
// over the whole pass and then end the run with one error listing all of
// them; configuration problems and a missing root end it immediately.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/modeldoc/internal/config"
	"git.home.luguber.info/inful/modeldoc/internal/eventstore"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/logfields"
	"git.home.luguber.info/inful/modeldoc/internal/markdown"
	"git.home.luguber.info/inful/modeldoc/internal/metrics"
	"git.home.luguber.info/inful/modeldoc/internal/processor"
)

// Pipeline runs generations for one configuration.
type Pipeline struct {
	cfg       *config.Config
	md        *markdown.Renderer
	recorder  metrics.Recorder
	store     eventstore.Store
	factories []processor.Factory
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder reports stage and run metrics to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithEventStore records run history in s.
func WithEventStore(s eventstore.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithFactories puts specialized processor factories in front of the
// documentation processors.
func WithFactories(f ...processor.Factory) Option {
	return func(p *Pipeline) { p.factories = append(p.factories, f...) }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		md:       markdown.New(markdown.Options{Unsafe: cfg.UnsafeHTML}),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage and persists the report in the site work dir.
// The report is returned even when the run fails.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	st, err := p.execute(ctx, defaultStages(), true)
	return st.Report, err
}

func (p *Pipeline) execute(ctx context.Context, stages []StageDef, persist bool) (*State, error) {
	runID := uuid.NewString()
	st := &State{cfg: p.cfg, md: p.md, factories: p.factories, recorder: p.recorder, Report: newReport(runID)}
	log := slog.With(logfields.RunID(runID))
	log.Info("Run started", logfields.File(p.cfg.Model), slog.Int("stages", len(stages)))

	started, eerr := eventstore.NewRunStarted(runID, p.cfg.Model, p.cfg.BaseURI)
	p.emit(ctx, started, eerr)

	err := p.runStages(ctx, st, stages)

	r := st.Report
	r.finish()
	r.deriveOutcome()
	dur := r.End.Sub(r.Start)
	p.recorder.ObserveRunDuration(dur)
	p.recorder.IncRunOutcome(string(r.Outcome))

	completed, eerr := eventstore.NewRunCompleted(runID, string(r.Outcome), r.Pages, len(r.Failures)+r.SiteErrorCount(), err, dur)
	p.emit(ctx, completed, eerr)

	if persist {
		if perr := r.Persist(p.cfg.Site.WorkDir); perr != nil {
			log.Warn("Failed to persist run report", logfields.Path(p.cfg.Site.WorkDir), logfields.Error(perr))
		}
	}
	if r.Outcome == OutcomeSuccess {
		log.Info("Run completed", slog.String("summary", r.Summary()))
	} else {
		log.Warn("Run completed", slog.String("summary", r.Summary()))
	}
	return st, err
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage.
func (p *Pipeline) runStages(ctx context.Context, st *State, stages []StageDef) error {
	for _, sd := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(sd.Name, ferrors.WrapError(ctx.Err(), ferrors.CategoryCanceled, "run canceled").Fatal().Build())
			st.Report.StageErrorKinds[sd.Name] = se.Kind
			st.Report.Errors = append(st.Report.Errors, se)
			st.Report.recordStageResult(sd.Name, metrics.ResultCanceled, p.recorder)
			p.stageCompleted(ctx, st, sd.Name, metrics.ResultCanceled, 0, 0)
			return se
		default:
		}

		t0 := time.Now()
		err := sd.Fn(ctx, st)
		dur := time.Since(t0)
		st.Report.StageDurations[string(sd.Name)] = dur
		p.recorder.ObserveStageDuration(string(sd.Name), dur)

		out := classifyStageResult(sd.Name, err)
		failures := 0
		if out.Error != nil {
			st.Report.StageErrorKinds[sd.Name] = out.Error.Kind
			batch := ferrors.FailuresOf(out.Error.Err)
			failures = len(batch)
			st.Report.Failures = append(st.Report.Failures, batch...)
			p.countFailures(batch)
			if out.Abort {
				st.Report.Errors = append(st.Report.Errors, out.Error)
			} else {
				st.Report.Warnings = append(st.Report.Warnings, out.Error)
			}
		}
		st.Report.recordStageResult(sd.Name, out.Result, p.recorder)
		p.stageCompleted(ctx, st, sd.Name, out.Result, failures, dur)
		if out.Abort {
			return out.Error
		}
	}
	return nil
}

func (p *Pipeline) countFailures(batch []ferrors.Failure) {
	byCategory := make(map[ferrors.ErrorCategory]int)
	for _, f := range batch {
		byCategory[f.Category]++
	}
	for c, n := range byCategory {
		p.recorder.AddFailures(string(c), n)
	}
}

func (p *Pipeline) stageCompleted(ctx context.Context, st *State, stage StageName, res metrics.ResultLabel, failures int, dur time.Duration) {
	slog.Debug("Stage completed",
		logfields.RunID(st.Report.RunID),
		logfields.Stage(string(stage)),
		slog.String("result", string(res)),
		logfields.Failures(failures),
		logfields.DurationMS(float64(dur.Milliseconds())))
	e, err := eventstore.NewStageCompleted(st.Report.RunID, string(stage), string(res), failures, dur)
	p.emit(ctx, e, err)
}

// emit records e in the history store. History is best effort and never
// fails a run.
func (p *Pipeline) emit(ctx context.Context, e eventstore.Event, err error) {
	if p.store == nil {
		return
	}
	if err == nil {
		err = eventstore.Emit(context.WithoutCancel(ctx), p.store, e)
	}
	if err != nil {
		slog.Warn("Failed to record run history", logfields.Error(err))
	}
}
