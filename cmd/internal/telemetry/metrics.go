// Package telemetry exposes Prometheus collectors for the store and the authenticator.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

const namespace = "beekeeper"

// Metrics implements storage.Observer and authn.Observer.
type Metrics struct {
	storeOps     *prometheus.CounterVec
	authAttempts *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Record store operations by table, operation and result kind.",
		}, []string{"table", "op", "result"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Register, login and authorize outcomes.",
		}, []string{"op", "result"}),
	}
	for _, c := range []prometheus.Collector{m.storeOps, m.authAttempts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewRegistry returns a registry with the process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ObserveOp counts one store operation; result is the error kind or "ok".
func (m *Metrics) ObserveOp(table, op string, err error) {
	m.storeOps.WithLabelValues(table, op, fault.KindName(err)).Inc()
}

// ObserveAuth counts one authenticator outcome.
func (m *Metrics) ObserveAuth(op, result string) {
	m.authAttempts.WithLabelValues(op, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
