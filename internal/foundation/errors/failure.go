package errors

import (
	"errors"
	"fmt"
	"sync"
)

// Failure records one per-element problem found during a pipeline pass.
// Failures are collected, never thrown on their own; Batch escalates them
// once the pass has visited every element.
type Failure struct {
	Category ErrorCategory
	// Origin is a human readable description of the originating element.
	Origin string
	// Element is the originating element itself (a graph node, an output path, ...).
	Element any
	Err     error
}

// Error implements error.
func (f Failure) Error() string {
	if f.Origin == "" {
		return fmt.Sprintf("%s: %v", f.Category, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Category, f.Origin, f.Err)
}

// Unwrap returns the underlying cause.
func (f Failure) Unwrap() error { return f.Err }

// Collector accumulates failures. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	failures []Failure
}

// Add appends a failure.
func (c *Collector) Add(f Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
}

// Addf appends a failure built from its parts.
func (c *Collector) Addf(category ErrorCategory, element any, origin string, err error) {
	c.Add(Failure{Category: category, Origin: origin, Element: element, Err: err})
}

// Len returns the number of collected failures.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}

// Failures returns a snapshot of the collected failures in insertion order.
func (c *Collector) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	return out
}

// Batch builds the error reported after a pass completes with failures.
// The message states the count and the operation; every failure is joined
// into the cause so callers can inspect the full chain. Batch returns nil
// for an empty list.
func Batch(category ErrorCategory, operation string, failures []Failure) error {
	if len(failures) == 0 {
		return nil
	}
	causes := make([]error, 0, len(failures))
	for _, f := range failures {
		causes = append(causes, f)
	}
	noun := "failures"
	if len(failures) == 1 {
		noun = "failure"
	}
	return NewError(category, fmt.Sprintf("there have been %d %s during %s", len(failures), noun, operation)).
		Fatal().
		WithCause(errors.Join(causes...)).
		WithContext("failures", len(failures)).
		WithContext("operation", operation).
		Build()
}

// FailuresOf extracts the individual failures from an error produced by Batch.
func FailuresOf(err error) []Failure {
	classified, ok := AsClassified(err)
	if !ok {
		return nil
	}
	joined, ok := classified.Cause().(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	var out []Failure
	for _, e := range joined.Unwrap() {
		var f Failure
		if errors.As(e, &f) {
			out = append(out, f)
		}
	}
	return out
}
