package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyNode       = "node"
	KeyClassifier = "classifier"
	KeyAddress    = "address"
	KeySegment    = "segment"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyCount      = "count"
	KeyFailures   = "failures"
	KeyWorkers    = "workers"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Node(handle int) slog.Attr        { return slog.Int(KeyNode, handle) }
func Classifier(c string) slog.Attr    { return slog.String(KeyClassifier, c) }
func Address(a string) slog.Attr       { return slog.String(KeyAddress, a) }
func Segment(s string) slog.Attr       { return slog.String(KeySegment, s) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Failures(n int) slog.Attr         { return slog.Int(KeyFailures, n) }
func Workers(n int) slog.Attr          { return slog.Int(KeyWorkers, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
