// Package metrics registers the Prometheus series this driver exposes
// about its own topology monitoring and routing decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every series this package registers.
type Metrics struct {
	ChecksTotal            *prometheus.CounterVec
	PrimaryTransitions     *prometheus.CounterVec
	NodeHealthy            *prometheus.GaugeVec
	ClientOperationsTotal  *prometheus.CounterVec
	ClientRetriesTotal     *prometheus.CounterVec
}

// New creates and registers the metrics against the default registerer.
// Constructing more than one Metrics in a process will panic on
// duplicate registration, matching promauto's own behavior; callers
// should build exactly one and share it.
func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmon_checks_total",
				Help: "Total number of full topology checks run.",
			},
			[]string{"set"},
		),
		PrimaryTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmon_primary_transitions_total",
				Help: "Total number of times the designated primary changed, including to/from unknown.",
			},
			[]string{"set"},
		),
		NodeHealthy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rsmon_node_healthy",
				Help: "1 if the node's last observed health was OK, 0 otherwise.",
			},
			[]string{"set", "node"},
		),
		ClientOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmon_client_operations_total",
				Help: "Total number of routed client operations, by operation and routing outcome.",
			},
			[]string{"op", "routing"},
		),
		ClientRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmon_client_retries_total",
				Help: "Total number of secondary-ok retries consumed.",
			},
			[]string{"op"},
		),
	}
}
