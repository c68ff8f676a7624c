// Package metrics records generation run metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics can
// be switched on without touching the pipeline:
//
//	reg := prometheus.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	p := pipeline.New(cfg, pipeline.WithRecorder(recorder))
//
// WriteTextfile exports a registry for the node exporter textfile collector,
// HTTPHandler serves it next to the watch preview.
package metrics
