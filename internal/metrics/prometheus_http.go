package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg prom.Gatherer) http.Handler {
	if reg == nil {
		reg = prom.DefaultGatherer
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// WriteTextfile writes the registry in the text exposition format to path,
// atomically, for the node exporter textfile collector.
func WriteTextfile(reg prom.Gatherer, path string) error {
	return prom.WriteToTextfile(path, reg)
}
