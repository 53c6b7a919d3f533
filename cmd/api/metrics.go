package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/database"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/events"
	"github.com/davidleathers/vintage-vault-backend/internal/service/notification"
)

// newPrometheusRegistry collects the process, connection pool and
// delivery gauges scraped from /metrics. Domain counters go through
// OpenTelemetry instead.
func newPrometheusRegistry(db *database.ConnectionPool, hub *events.Hub, dispatcher *notification.Dispatcher) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	websocketConnections := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vintage_vault",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Open websocket connections on this instance",
	}, func() float64 { return float64(hub.ConnectionCount()) })

	dispatchQueued := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vintage_vault",
		Subsystem: "notification",
		Name:      "queue_depth",
		Help:      "Events waiting for a dispatcher worker",
	}, func() float64 {
		_, _, queued := dispatcher.Stats()
		return float64(queued)
	})

	dispatchOverflow := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "vintage_vault",
		Subsystem: "notification",
		Name:      "overflow_total",
		Help:      "Events delivered outside the worker pool because the queue was full",
	}, func() float64 {
		_, overflow, _ := dispatcher.Stats()
		return float64(overflow)
	})

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		database.NewPoolCollector(db),
		websocketConnections,
		dispatchQueued,
		dispatchOverflow,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
