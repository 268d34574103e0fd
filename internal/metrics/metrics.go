// Package metrics registers the Prometheus counters and gauges that track
// session and transfer activity, and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the collectors shared by the sender and receiver sides
// of a server process.
type Registry struct {
	BytesSent       prometheus.Counter
	SegmentsSent    prometheus.Counter
	Retransmissions prometheus.Counter
	AcksReceived    prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
}

// NewRegistry builds a Registry and registers its collectors with reg.
func NewRegistry(reg *prometheus.Registry) *Registry {
	r := &Registry{
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filexfer_bytes_sent_total",
			Help: "Total DATA payload bytes transmitted by the sliding-window sender.",
		}),
		SegmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filexfer_segments_sent_total",
			Help: "Total DATA packets transmitted, including retransmissions.",
		}),
		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filexfer_retransmissions_total",
			Help: "Total DATA packets retransmitted after a timeout.",
		}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filexfer_acks_received_total",
			Help: "Total ACK packets observed by the sender, including duplicates.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "filexfer_sessions_active",
			Help: "Number of download sessions currently in progress.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filexfer_sessions_total",
			Help: "Total download sessions started.",
		}),
	}
	reg.MustRegister(r.BytesSent, r.SegmentsSent, r.Retransmissions, r.AcksReceived, r.SessionsActive, r.SessionsTotal)
	return r
}

// Serve starts an HTTP server exposing the Prometheus text exposition
// format for reg at addr on "/metrics". It blocks until the listener fails
// and is meant to be run in its own goroutine.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
