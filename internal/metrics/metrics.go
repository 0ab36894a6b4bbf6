// Package metrics exposes central-system counters in Prometheus format. All methods
// are safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ocpp"

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived   *prometheus.CounterVec
	commandsSent       *prometheus.CounterVec
	commandResults     *prometheus.CounterVec
	connections        prometheus.Gauge
	connectionDrops    prometheus.Counter
	transactionsStart  *prometheus.CounterVec
	transactionsEnd    *prometheus.CounterVec
	stateTransitions   *prometheus.CounterVec
	quotaStops         prometheus.Counter
	telemetryForwarded *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_received_total", Help: "Inbound OCPP calls by action.",
		}, []string{"action"}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_sent_total", Help: "Outbound OCPP calls by action.",
		}, []string{"action"}),
		commandResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "command_results_total", Help: "Outbound call outcomes by action and status.",
		}, []string{"action", "status"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections", Help: "Live charger connections.",
		}),
		connectionDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "connection_drops_total", Help: "Charger disconnects.",
		}),
		transactionsStart: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_started_total", Help: "StartTransaction outcomes.",
		}, []string{"result"}),
		transactionsEnd: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_finished_total", Help: "Finished transactions by outcome.",
		}, []string{"outcome"}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "state_transitions_total", Help: "Connector state transitions.",
		}, []string{"from", "to"}),
		quotaStops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "quota_stops_total", Help: "Remote stops issued because a quota was reached.",
		}),
		telemetryForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "telemetry_forwarded_total", Help: "Telemetry forwarding results.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesReceived,
		m.commandsSent,
		m.commandResults,
		m.connections,
		m.connectionDrops,
		m.transactionsStart,
		m.transactionsEnd,
		m.stateTransitions,
		m.quotaStops,
		m.telemetryForwarded,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessageReceived(action string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(action).Inc()
}

func (m *Metrics) CommandSent(action string) {
	if m == nil {
		return
	}
	m.commandsSent.WithLabelValues(action).Inc()
}

func (m *Metrics) CommandResult(action, status string) {
	if m == nil {
		return
	}
	m.commandResults.WithLabelValues(action, status).Inc()
}

func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.connections.Dec()
	m.connectionDrops.Inc()
}

func (m *Metrics) TransactionStarted(accepted bool) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.transactionsStart.WithLabelValues(result).Inc()
}

func (m *Metrics) TransactionFinished(successful bool) {
	if m == nil {
		return
	}
	outcome := "successful"
	if !successful {
		outcome = "failed"
	}
	m.transactionsEnd.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StateTransition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.stateTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) QuotaStop() {
	if m == nil {
		return
	}
	m.quotaStops.Inc()
}

func (m *Metrics) TelemetryForwarded(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.telemetryForwarded.WithLabelValues(result).Inc()
}
