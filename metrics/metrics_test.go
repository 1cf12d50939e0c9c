package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/aponysus/aegis/classify"
	"github.com/aponysus/aegis/events"
)

func TestCollector_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	n := events.NewNotifier()
	defer n.Close()
	c.Attach(n)

	ce := classify.Classify(errors.New("connection refused"), classify.ErrorContext{})
	n.Emit(events.Event{Name: events.EventError, ServiceKey: "svc:op", Error: ce, At: time.Now()})
	n.Emit(events.Event{Name: events.EventRetry, ServiceKey: "svc:op", At: time.Now()})
	n.Emit(events.Event{Name: events.EventRecovery, ServiceKey: "svc:op", At: time.Now()})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("svc:op", "connection", "medium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retriesTotal.WithLabelValues("svc:op")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recoveriesTotal.WithLabelValues("svc:op")))
}

func TestCollector_BreakerGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	n := events.NewNotifier()
	defer n.Close()
	c.Attach(n)

	n.Emit(events.Event{Name: events.EventBreakerOpened, ServiceKey: "svc:op", At: time.Now()})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerOpen.WithLabelValues("svc:op")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerEvents.WithLabelValues("svc:op", "open")))

	n.Emit(events.Event{Name: events.EventBreakerClosed, ServiceKey: "svc:op", At: time.Now()})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.breakerOpen.WithLabelValues("svc:op")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerEvents.WithLabelValues("svc:op", "closed")))
}

func TestCollector_Detach(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	n := events.NewNotifier()
	defer n.Close()
	c.Attach(n)
	c.Detach(n)

	n.Emit(events.Event{Name: events.EventRetry, ServiceKey: "svc:op", At: time.Now()})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.retriesTotal.WithLabelValues("svc:op")))
}
