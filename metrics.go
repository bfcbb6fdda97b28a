// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the feed's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	enqueued        *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	queueFull       *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
	transportErrors prometheus.Counter
	brokerUpdates   prometheus.Counter
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "passivedns",
			Subsystem: "kafka",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "passivedns",
			Subsystem: "kafka",
			Name:      name,
			Help:      help,
		},
	)
}

// NewMetrics creates the collectors. They are registered with registerer
// by Register.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		registerer: registerer,
		enqueued:   newCounterVec("records_enqueued_total", "Records accepted into the outbound queue", []string{"stream"}),
		dropped:    newCounterVec("records_dropped_total", "Records dropped before reaching the outbound queue", []string{"stream", "reason"}),
		queueFull:  newCounterVec("queue_full_retries_total", "Enqueue attempts refused because the outbound queue was full", []string{"stream"}),
		deliveries: newCounterVec("deliveries_total", "Delivery reports by result", []string{"stream", "result"}),
		deliveryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "passivedns",
				Subsystem: "kafka",
				Name:      "delivery_latency_seconds",
				Help:      "Time from enqueue to delivery report",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"stream"},
		),
		transportErrors: newCounter("transport_errors_total", "Broker connection failures"),
		brokerUpdates:   newCounter("broker_set_updates_total", "Broker sets pushed to the producer by discovery"),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	if m == nil || m.registerer == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.enqueued,
		m.dropped,
		m.queueFull,
		m.deliveries,
		m.deliveryLatency,
		m.transportErrors,
		m.brokerUpdates,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *Metrics) recordEnqueued(s Stream) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) recordDropped(s Stream, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(s.String(), reason).Inc()
}

func (m *Metrics) recordQueueFull(s Stream) {
	if m == nil {
		return
	}
	m.queueFull.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) recordBrokerUpdate() {
	if m == nil {
		return
	}
	m.brokerUpdates.Inc()
}

// OnDelivery is a delivery listener.
func (m *Metrics) OnDelivery(event *DeliveryEvent) {
	if m == nil {
		return
	}

	result := "success"
	if event.Error != nil {
		result = event.ErrorType
	}
	m.deliveries.WithLabelValues(event.Stream.String(), result).Inc()
	m.deliveryLatency.WithLabelValues(event.Stream.String()).Observe(event.Latency.Seconds())
}

// OnTransport is a transport listener.
func (m *Metrics) OnTransport(event *TransportEvent) {
	if m == nil || event.Error == nil {
		return
	}
	m.transportErrors.Inc()
}
