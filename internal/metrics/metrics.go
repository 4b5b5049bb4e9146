// Package metrics declares the manager's Prometheus series and a
// dedicated registry to serve them from, grounded on the teacher's
// internal/metrics/metrics.go (GaugeVec/CounterVec + Record/Update
// helper-function pattern). The teacher registers against
// controller-runtime's shared registry; this system has no Kubernetes
// manager to share one with, so it owns a plain prometheus.Registry
// instead, matching how a non-operator Go service normally wires
// client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the manager's dedicated Prometheus registry, served by
// promhttp at the HTTP surface's /metrics route.
var Registry = prometheus.NewRegistry()

var (
	// NodeHealthy is 1 when a node's last poll was healthy, 0 otherwise.
	NodeHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodes_manager_node_healthy",
			Help: "Whether a node's most recent health check passed (1) or failed (0)",
		},
		[]string{"node", "server"},
	)

	// NodeBlockHeight tracks the last observed block height per node.
	NodeBlockHeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodes_manager_node_block_height",
			Help: "Last observed block height for a node",
		},
		[]string{"node"},
	)

	// AlertsTotal counts webhook alerts sent, by type and severity.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodes_manager_alerts_total",
			Help: "Total number of alerts sent",
		},
		[]string{"type", "severity"},
	)

	// OperationsTotal counts completed operations, by kind and outcome.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodes_manager_operations_total",
			Help: "Total number of operations dispatched, by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ActiveOperations tracks the number of operations currently in flight.
	ActiveOperations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodes_manager_active_operations",
			Help: "Number of operations currently in flight",
		},
	)

	// ActiveMaintenanceWindows tracks the number of open maintenance windows.
	ActiveMaintenanceWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodes_manager_active_maintenance_windows",
			Help: "Number of currently open maintenance windows",
		},
	)
)

func init() {
	Registry.MustRegister(
		NodeHealthy,
		NodeBlockHeight,
		AlertsTotal,
		OperationsTotal,
		ActiveOperations,
		ActiveMaintenanceWindows,
	)
}

// RecordHealth updates the node-healthy and block-height gauges from one
// poll's result.
func RecordHealth(node, server string, healthy bool, blockHeight int64) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	NodeHealthy.WithLabelValues(node, server).Set(v)
	NodeBlockHeight.WithLabelValues(node).Set(float64(blockHeight))
}

// RecordAlert increments the alerts counter for alertType/severity.
func RecordAlert(alertType, severity string) {
	AlertsTotal.WithLabelValues(alertType, severity).Inc()
}

// RecordOperation increments the operations counter for operation/outcome.
func RecordOperation(operation, outcome string) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
}
