// Package metrics exposes the resilience event stream as Prometheus
// metrics. It is a host-side subscriber; the core emits events only.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aponysus/aegis/events"
)

// Collector translates lifecycle events into Prometheus metrics.
type Collector struct {
	errorsTotal     *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	recoveriesTotal *prometheus.CounterVec
	breakerEvents   *prometheus.CounterVec
	breakerOpen     *prometheus.GaugeVec

	subs []events.Subscription
}

// NewCollector registers the metric vectors with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_errors_total",
				Help: "Total classified errors by service key, kind and severity",
			},
			[]string{"service_key", "kind", "severity"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_retries_total",
				Help: "Total retry attempts scheduled",
			},
			[]string{"service_key"},
		),
		recoveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_recoveries_total",
				Help: "Total calls that succeeded after at least one retry",
			},
			[]string{"service_key"},
		),
		breakerEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_circuit_breaker_transitions_total",
				Help: "Circuit breaker transitions by resulting state",
			},
			[]string{"service_key", "state"},
		),
		breakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aegis_circuit_breaker_open",
				Help: "1 while the circuit breaker for a service key is open",
			},
			[]string{"service_key"},
		),
	}
}

// Attach subscribes the collector to n. Detach reverses it.
func (c *Collector) Attach(n *events.Notifier) {
	c.subs = n.SubscribeAll(c.handle)
}

// Detach removes the collector's subscriptions from n.
func (c *Collector) Detach(n *events.Notifier) {
	for _, sub := range c.subs {
		n.Unsubscribe(sub)
	}
	c.subs = nil
}

func (c *Collector) handle(ev events.Event) {
	switch ev.Name {
	case events.EventError:
		kind, severity := "unknown", "medium"
		if ev.Error != nil {
			kind = string(ev.Error.Kind)
			severity = string(ev.Error.Severity)
		}
		c.errorsTotal.WithLabelValues(ev.ServiceKey, kind, severity).Inc()
	case events.EventRetry:
		c.retriesTotal.WithLabelValues(ev.ServiceKey).Inc()
	case events.EventRecovery:
		c.recoveriesTotal.WithLabelValues(ev.ServiceKey).Inc()
	case events.EventBreakerOpened:
		c.breakerEvents.WithLabelValues(ev.ServiceKey, "open").Inc()
		c.breakerOpen.WithLabelValues(ev.ServiceKey).Set(1)
	case events.EventBreakerClosed:
		c.breakerEvents.WithLabelValues(ev.ServiceKey, "closed").Inc()
		c.breakerOpen.WithLabelValues(ev.ServiceKey).Set(0)
	}
}
