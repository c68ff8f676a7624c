package pipeline

import (
	"context"
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
	"git.home.luguber.info/inful/modeldoc/internal/metrics"
)

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying kind and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageOutcome is the normalized result of one stage execution.
type StageOutcome struct {
	Stage  StageName
	Error  *StageError
	Result metrics.ResultLabel
	Abort  bool
}

// classifyStageResult converts the error returned by a stage into an outcome.
// Errors that are not StageErrors are fatal unless they stem from
// cancellation.
func classifyStageResult(stage StageName, err error) StageOutcome {
	if err == nil {
		return StageOutcome{Stage: stage, Result: metrics.ResultSuccess}
	}

	var se *StageError
	if !errors.As(err, &se) {
		if isCanceled(err) {
			se = newCanceledStageError(stage, err)
		} else {
			se = newFatalStageError(stage, err)
		}
	}

	switch se.Kind {
	case StageErrorWarning:
		return StageOutcome{Stage: stage, Error: se, Result: metrics.ResultWarning}
	case StageErrorCanceled:
		return StageOutcome{Stage: stage, Error: se, Result: metrics.ResultCanceled, Abort: true}
	default:
		return StageOutcome{Stage: stage, Error: se, Result: metrics.ResultFatal, Abort: true}
	}
}

func isCanceled(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}
