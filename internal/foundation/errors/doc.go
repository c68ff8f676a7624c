// Package errors provides the classified error primitives used across modeldoc.
//
// Key features:
//   - ErrorCategory: which pipeline concern failed (config, introspection, processor, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - ClassifiedError: structured error with category, severity, and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - Failure and Collector: per-element failure records accumulated during a pass
//   - CLIErrorAdapter: exit codes and user-facing formatting
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryResolution, "address collision").
//		WithContext("address", addr).
//		WithCause(originalErr).
//		Build()
package errors
