// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Feed publishes passive DNS records to the query and NXDOMAIN topics.
//
// Thread Safety: Publish and PublishContext may be called from any number
// of goroutines. Start and Stop are serialized internally.
type Feed struct {
	// Config is copied at Start; later changes have no effect.
	Config Config

	// Logger receives feed and franz-go client messages.
	// Optional. If nil, a no-op logger will be used.
	Logger kgo.Logger

	// Registerer receives the feed's Prometheus collectors.
	// Optional. If nil, no metrics are recorded.
	Registerer prometheus.Registerer

	// InitialDeliveryListeners are registered when Start is called.
	InitialDeliveryListeners []func(*DeliveryEvent)

	// InitialTransportListeners are registered when Start is called.
	InitialTransportListeners []func(*TransportEvent)

	// clientFactory creates Kafka clients, overridden in tests.
	clientFactory clientFactory

	// coordinatorFactory connects to ZooKeeper, overridden in tests.
	coordinatorFactory coordinatorFactory

	feedback feedback
	metrics  atomic.Pointer[Metrics]

	// mu serializes Start and Stop.
	mu        sync.Mutex
	producer  atomic.Pointer[Producer]
	directory *Directory

	registerInitialListenersOnce sync.Once
}

// AddDeliveryListener adds a listener called with the outcome of every
// enqueued record. The returned function removes the listener.
//
// Listeners are called from client goroutines and must be thread-safe.
func (f *Feed) AddDeliveryListener(fn func(*DeliveryEvent)) func() {
	return f.feedback.deliveryListeners.Add(fn)
}

// AddTransportListener adds a listener for broker connection failures and
// disconnects. The returned function removes the listener.
func (f *Feed) AddTransportListener(fn func(*TransportEvent)) func() {
	return f.feedback.transportListeners.Add(fn)
}

// Start validates the configuration, resolves the brokers, creates the
// producer and opens both streams. A stream that cannot be opened is
// logged and left unusable; Start fails only when neither stream opens.
// With discovery enabled, Start also begins watching broker membership.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.producer.Load() != nil {
		return ErrAlreadyStarted
	}

	if f.clientFactory == nil {
		f.clientFactory = defaultClientFactory
	}
	if f.coordinatorFactory == nil {
		f.coordinatorFactory = defaultCoordinatorFactory
	}

	logger := f.Logger
	if logger == nil {
		logger = &nopLogger{}
	}
	f.feedback.logger = logger

	f.registerInitialListenersOnce.Do(func() {
		for _, listener := range f.InitialDeliveryListeners {
			f.feedback.deliveryListeners.Add(listener)
		}
		for _, listener := range f.InitialTransportListeners {
			f.feedback.transportListeners.Add(listener)
		}

		if f.Registerer != nil {
			m := NewMetrics(f.Registerer)
			f.metrics.Store(m)
			f.feedback.deliveryListeners.Add(m.OnDelivery)
			f.feedback.transportListeners.Add(m.OnTransport)
		}
	})

	if err := f.metrics.Load().Register(); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	cfg := f.Config
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		logger.Log(kgo.LogLevelError, "Kafka configuration invalid", "error", err.Error())
		return err
	}

	dir, err := newDirectory(&cfg, logger, f.coordinatorFactory)
	if err != nil {
		return err
	}

	brokers, err := dir.Resolve()
	if err == nil && len(brokers) == 0 {
		err = ErrNoBrokers
	}
	if err != nil {
		logger.Log(kgo.LogLevelError, "No Kafka brokers resolved", "error", err.Error())
		dir.Close()
		return err
	}

	p, err := newProducer(&cfg, brokers, &f.feedback, f.clientFactory)
	if err != nil {
		dir.Close()
		return err
	}

	var streamErrs error
	ready := 0
	for s := range streamCount {
		if err := p.openStream(ctx, s); err != nil {
			streamErrs = errors.Join(streamErrs, err)
			continue
		}
		ready++
	}
	if ready == 0 {
		p.shutdown(ctx)
		dir.Close()
		return streamErrs
	}

	if cfg.Discovery {
		adder := BrokerAdderFunc(func(set BrokerSet) error {
			f.metrics.Load().recordBrokerUpdate()
			return p.AddBrokers(set)
		})
		// The watch lives until Stop, not until the start context ends.
		if err := dir.Watch(context.WithoutCancel(ctx), adder); err != nil {
			logger.Log(kgo.LogLevelWarn, "broker membership watch not established, using resolved brokers",
				"brokers", brokers.String(),
				"error", err.Error(),
			)
		}
	}

	f.directory = dir
	f.producer.Store(p)

	logger.Log(kgo.LogLevelInfo, "Kafka feed started",
		"brokers", brokers.String(),
		"query_topic", cfg.QueryTopic,
		"nxdomain_topic", cfg.NXDomainTopic,
		"streams_ready", ready,
	)
	return nil
}

// Stop refuses further records, stops the membership watch, flushes what
// is buffered within the flush bound and releases the client and the
// coordination session. Records still buffered after the bound are lost.
// Safe to call multiple times.
func (f *Feed) Stop(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.producer.Load()
	if p == nil {
		return
	}

	p.closing.Store(true)
	f.directory.StopWatch()
	p.shutdown(ctx)
	f.directory.Close()

	f.producer.Store(nil)
	f.directory = nil
}

// Ready reports whether records for the stream are currently accepted.
func (f *Feed) Ready(s Stream) bool {
	p := f.producer.Load()
	return p != nil && !p.closing.Load() && p.ready(s)
}

// Brokers returns the seed brokers currently handed to the client: the
// resolved set plus every set discovery has added since.
func (f *Feed) Brokers() BrokerSet {
	p := f.producer.Load()
	if p == nil {
		return nil
	}
	return p.Seeds()
}

// BufferedRecords returns the records awaiting a delivery report and the
// outbound queue capacity. Both are zero before Start.
func (f *Feed) BufferedRecords() (current, capacity int) {
	p := f.producer.Load()
	if p == nil {
		return 0, 0
	}
	return p.BufferedRecords()
}

// ResolveBrokers resolves the broker set for cfg once, without creating a
// producer.
func ResolveBrokers(cfg Config, logger kgo.Logger) (BrokerSet, error) {
	if logger == nil {
		logger = &nopLogger{}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dir, err := newDirectory(&cfg, logger, defaultCoordinatorFactory)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	return dir.Resolve()
}
