package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/metrics"
)

// ReportFile is the name of the persisted run report.
const ReportFile = "build-report.json"

// RunOutcome is the typed enumeration of final run result states.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeWarning  RunOutcome = "warning"
	OutcomeFailed   RunOutcome = "failed"
	OutcomeCanceled RunOutcome = "canceled"
)

// StageCount aggregates outcome counts for a stage.
type StageCount struct {
	Success  int `json:"success"`
	Warning  int `json:"warning"`
	Fatal    int `json:"fatal"`
	Canceled int `json:"canceled"`
}

// Report captures what one generation run did.
type Report struct {
	SchemaVersion   int
	RunID           string
	Start           time.Time
	End             time.Time
	Errors          []error // fatal errors that aborted the run (at most one)
	Warnings        []error // non-fatal issues
	StageDurations  map[string]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     map[StageName]StageCount

	Nodes      int // nodes in the object graph
	Processors int
	Resolved   int // nodes with an address
	Labels     int // labels in the collected forest
	Pages      int // pages rendered by the site stage

	// Failures are the per-element failures behind a failed stage.
	Failures []ferrors.Failure
	// SiteErrors maps output paths to their problems.
	SiteErrors map[string][]string
	// UnusedPrototypes lists documentation prototypes no node matched.
	UnusedPrototypes []string
	// DocsFingerprint identifies the documentation prototypes the run used.
	DocsFingerprint string

	Outcome RunOutcome
}

func newReport(runID string) *Report {
	return &Report{
		SchemaVersion:   1,
		RunID:           runID,
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageCounts:     make(map[StageName]StageCount),
	}
}

func (r *Report) finish() { r.End = time.Now() }

// recordStageResult counts the result of a stage and forwards it to recorder.
func (r *Report) recordStageResult(stage StageName, res metrics.ResultLabel, recorder metrics.Recorder) {
	sc := r.StageCounts[stage]
	switch res {
	case metrics.ResultSuccess:
		sc.Success++
	case metrics.ResultWarning:
		sc.Warning++
	case metrics.ResultFatal:
		sc.Fatal++
	case metrics.ResultCanceled:
		sc.Canceled++
	}
	r.StageCounts[stage] = sc
	if recorder != nil {
		recorder.IncStageResult(string(stage), res)
	}
}

// deriveOutcome sets Outcome from the recorded errors and warnings.
func (r *Report) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 || len(r.SiteErrors) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// SiteErrorCount returns the number of site error messages.
func (r *Report) SiteErrorCount() int {
	n := 0
	for _, msgs := range r.SiteErrors {
		n += len(msgs)
	}
	return n
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("run=%s nodes=%d processors=%d resolved=%d labels=%d pages=%d failures=%d site_errors=%d warnings=%d duration=%s outcome=%s",
		r.RunID, r.Nodes, r.Processors, r.Resolved, r.Labels, r.Pages, len(r.Failures), r.SiteErrorCount(), len(r.Warnings),
		dur.Truncate(time.Millisecond), r.Outcome)
}

// Persist writes the report atomically into dir as build-report.json and a
// one-line build-report.txt summary.
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.finish()
		r.deriveOutcome()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}
	jb, err := json.MarshalIndent(r.serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, ReportFile), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "build-report.txt"), []byte(r.Summary()+"\n"))
}

func writeAtomic(p string, data []byte) error {
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(p), err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("atomic rename %s: %w", filepath.Base(p), err)
	}
	return nil
}

// FailureRecord is the JSON form of a per-element failure.
type FailureRecord struct {
	Category string `json:"category"`
	Origin   string `json:"origin"`
	Message  string `json:"message"`
}

// ReportSerializable mirrors Report with string errors for JSON output.
type ReportSerializable struct {
	SchemaVersion    int                      `json:"schema_version"`
	RunID            string                   `json:"run_id"`
	Start            time.Time                `json:"start"`
	End              time.Time                `json:"end"`
	Errors           []string                 `json:"errors"`
	Warnings         []string                 `json:"warnings"`
	StageDurations   map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds  map[string]string        `json:"stage_error_kinds"`
	StageCounts      map[string]StageCount    `json:"stage_counts"`
	Nodes            int                      `json:"nodes"`
	Processors       int                      `json:"processors"`
	Resolved         int                      `json:"resolved"`
	Labels           int                      `json:"labels"`
	Pages            int                      `json:"pages"`
	Failures         []FailureRecord          `json:"failures"`
	SiteErrors       map[string][]string      `json:"site_errors,omitempty"`
	UnusedPrototypes []string                 `json:"unused_prototypes,omitempty"`
	DocsFingerprint  string                   `json:"docs_fingerprint,omitempty"`
	Outcome          string                   `json:"outcome"`
}

func (r *Report) serializable() *ReportSerializable {
	stageCounts := make(map[string]StageCount, len(r.StageCounts))
	for k, v := range r.StageCounts {
		stageCounts[string(k)] = v
	}
	kinds := make(map[string]string, len(r.StageErrorKinds))
	for k, v := range r.StageErrorKinds {
		kinds[string(k)] = string(v)
	}
	s := &ReportSerializable{
		SchemaVersion:    r.SchemaVersion,
		RunID:            r.RunID,
		Start:            r.Start,
		End:              r.End,
		Errors:           make([]string, len(r.Errors)),
		Warnings:         make([]string, len(r.Warnings)),
		StageDurations:   r.StageDurations,
		StageErrorKinds:  kinds,
		StageCounts:      stageCounts,
		Nodes:            r.Nodes,
		Processors:       r.Processors,
		Resolved:         r.Resolved,
		Labels:           r.Labels,
		Pages:            r.Pages,
		Failures:         make([]FailureRecord, 0, len(r.Failures)),
		SiteErrors:       r.SiteErrors,
		UnusedPrototypes: r.UnusedPrototypes,
		DocsFingerprint:  r.DocsFingerprint,
		Outcome:          string(r.Outcome),
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	for _, f := range r.Failures {
		s.Failures = append(s.Failures, FailureRecord{Category: string(f.Category), Origin: f.Origin, Message: errorText(f.Err)})
	}
	return s
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
