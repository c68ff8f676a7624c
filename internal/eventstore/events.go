package eventstore

import (
	"encoding/json"
	"time"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
)

// Event type names.
const (
	TypeRunStarted     = "RunStarted"
	TypeStageCompleted = "StageCompleted"
	TypeRunCompleted   = "RunCompleted"
)

// RunStarted is emitted when a generation run begins.
type RunStarted struct {
	BaseEvent
	Model   string `json:"model"`
	BaseURI string `json:"base_uri"`
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID, model, baseURI string) (*RunStarted, error) {
	e := &RunStarted{Model: model, BaseURI: baseURI}
	base, err := newBase(runID, TypeRunStarted, map[string]any{
		"model":    model,
		"base_uri": baseURI,
	})
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// StageCompleted is emitted after every stage, successful or not.
type StageCompleted struct {
	BaseEvent
	Stage    string        `json:"stage"`
	Outcome  string        `json:"outcome"`
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration_ms"`
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(runID, stage, outcome string, failures int, duration time.Duration) (*StageCompleted, error) {
	base, err := newBase(runID, TypeStageCompleted, map[string]any{
		"stage":       stage,
		"outcome":     outcome,
		"failures":    failures,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &StageCompleted{
		BaseEvent: base,
		Stage:     stage,
		Outcome:   outcome,
		Failures:  failures,
		Duration:  duration,
	}, nil
}

// RunCompleted is emitted when a run ends.
type RunCompleted struct {
	BaseEvent
	Outcome  string        `json:"outcome"`
	Pages    int           `json:"pages"`
	Failures int           `json:"failures"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ms"`
}

// NewRunCompleted creates a RunCompleted event. runErr is the error that
// ended the run, if any.
func NewRunCompleted(runID, outcome string, pages, failures int, runErr error, duration time.Duration) (*RunCompleted, error) {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	base, err := newBase(runID, TypeRunCompleted, map[string]any{
		"outcome":     outcome,
		"pages":       pages,
		"failures":    failures,
		"error":       msg,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &RunCompleted{
		BaseEvent: base,
		Outcome:   outcome,
		Pages:     pages,
		Failures:  failures,
		Error:     msg,
		Duration:  duration,
	}, nil
}

func newBase(runID, eventType string, payload map[string]any) (BaseEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, ferrors.HistoryError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}
	return BaseEvent{
		EventRunID:     runID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   raw,
	}, nil
}
