// Package eventstore records the history of generation runs in SQLite and
// rebuilds run summaries from it.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

const (
	runStatusRunning = "running"
)

// RunSummary is a read model of one run.
type RunSummary struct {
	RunID       string           `json:"run_id"`
	Status      string           `json:"status"`
	Model       string           `json:"model,omitempty"`
	BaseURI     string           `json:"base_uri,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Stages      map[string]int64 `json:"stages,omitempty"`
	Pages       int              `json:"pages"`
	Failures    int              `json:"failures"`
	Error       string           `json:"error,omitempty"`
}

// Runs rebuilds the summaries of the most recent runs from the store, newest
// first. limit <= 0 returns every run.
func Runs(ctx context.Context, store Store, limit int) ([]*RunSummary, error) {
	events, err := store.GetRange(ctx, time.Unix(0, 0), time.Now().Add(time.Hour))
	if err != nil {
		return nil, err
	}
	byRun := make(map[string]*RunSummary)
	for _, e := range events {
		apply(byRun, e)
	}
	out := make([]*RunSummary, 0, len(byRun))
	for _, s := range byRun {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func apply(byRun map[string]*RunSummary, event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}
	summary, ok := byRun[runID]
	if !ok {
		summary = &RunSummary{RunID: runID, Status: runStatusRunning, StartedAt: event.Timestamp()}
		byRun[runID] = summary
	}

	switch event.Type() {
	case TypeRunStarted:
		summary.StartedAt = event.Timestamp()
		var payload struct {
			Model   string `json:"model"`
			BaseURI string `json:"base_uri"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Model = payload.Model
			summary.BaseURI = payload.BaseURI
		}

	case TypeStageCompleted:
		var payload struct {
			Stage      string `json:"stage"`
			DurationMS int64  `json:"duration_ms"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if summary.Stages == nil {
				summary.Stages = make(map[string]int64)
			}
			summary.Stages[payload.Stage] = payload.DurationMS
		}

	case TypeRunCompleted:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		var payload struct {
			Outcome  string `json:"outcome"`
			Pages    int    `json:"pages"`
			Failures int    `json:"failures"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Status = payload.Outcome
			summary.Pages = payload.Pages
			summary.Failures = payload.Failures
			summary.Error = payload.Error
		}
	}
}

// GetRun returns the summary of one run.
func GetRun(ctx context.Context, store Store, runID string) (*RunSummary, bool, error) {
	events, err := store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, false, err
	}
	if len(events) == 0 {
		return nil, false, nil
	}
	byRun := make(map[string]*RunSummary, 1)
	for _, e := range events {
		apply(byRun, e)
	}
	return byRun[runID], true, nil
}
