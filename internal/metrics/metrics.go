// Package metrics exposes Prometheus counters for one scenario run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the scenario client's runtime counters.
type Registry struct {
	reg *prometheus.Registry

	SendsRegular   prometheus.Counter
	SendsCovert    prometheus.Counter
	SendFailures   prometheus.Counter
	RepliesSent    prometheus.Counter
	ReplySkips     prometheus.Counter
	ReceivedTotal  prometheus.Counter
	ReceiveErrors  prometheus.Counter
	ReservoirDepth prometheus.Gauge
}

// New builds an isolated registry (not the global default, so tests can
// build multiple scenario clients in one process without a collector
// collision).
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		SendsRegular: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenario_sends_regular_total",
			Help: "Total regular messages successfully sent.",
		}),
		SendsCovert: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenario_sends_covert_total",
			Help: "Total covert messages successfully sent.",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenario_send_failures_total",
			Help: "Total send/reply attempts that failed at the adapter.",
		}),
		RepliesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenario_replies_sent_total",
			Help: "Total reply messages successfully sent.",
		}),
		ReplySkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenario_reply_skips_total",
			Help: "Total reply actions suppressed by reply_probability.",
		}),
		ReceivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenario_received_total",
			Help: "Total envelopes received across both reception channels.",
		}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenario_receive_errors_total",
			Help: "Total received envelopes dropped because the sender account id is unknown.",
		}),
		ReservoirDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scenario_reservoir_depth",
			Help: "Current number of reply-eligible messages held in the reservoir.",
		}),
	}
}

// Handler returns an HTTP handler serving this registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
