// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// batchOverhead is the room left for record and batch framing when a
// MaxRecordBytes larger than the franz-go default is configured.
const batchOverhead = 512

// Producer owns the Kafka client, the two stream handles and the bounded
// outbound queue.
//
// The queue is a slot semaphore: a slot is taken when a record is enqueued
// and given back when the client reports the record's outcome. Enqueue
// never blocks; a full queue is reported to the caller as QueueFull.
type Producer struct {
	cfg      *Config
	logger   kgo.Logger
	feedback *feedback
	client   kafkaClient

	// streams holds one handle per Stream; nil means not ready.
	streams [streamCount]atomic.Pointer[streamHandle]

	// slots bounds the records awaiting a delivery report.
	slots chan struct{}

	// progress is signaled whenever a delivery report frees a slot.
	progress chan struct{}

	// seedsMu serializes AddBrokers.
	seedsMu sync.Mutex
	seeds   BrokerSet

	closing   atomic.Bool
	closeOnce sync.Once
}

// newProducer builds the client configuration from the broker set and
// creates the client. Failures are logged and returned; the caller must not
// open streams on error.
func newProducer(cfg *Config, brokers BrokerSet, fb *feedback, factory clientFactory) (*Producer, error) {
	p := &Producer{
		cfg:      cfg,
		logger:   fb.logger,
		feedback: fb,
		slots:    make(chan struct{}, cfg.QueueCapacity),
		progress: make(chan struct{}, 1),
		seeds:    brokers,
	}

	opts, err := p.toKgoOpts(brokers)
	if err != nil {
		p.logger.Log(kgo.LogLevelError, "Kafka conf set error", "error", err.Error())
		return nil, err
	}

	client, err := factory(opts...)
	if err != nil {
		p.logger.Log(kgo.LogLevelError, "Failed to create new producer", "error", err.Error())
		return nil, errors.Join(ErrClientCreate, err)
	}
	p.client = client

	p.logger.Log(kgo.LogLevelInfo, "Kafka producer created", "brokers", brokers.String())
	return p, nil
}

// toKgoOpts converts the configuration to franz-go client options.
func (p *Producer) toKgoOpts(brokers BrokerSet) ([]kgo.Opt, error) {
	cfg := p.cfg

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers.Strings()...),
		kgo.ClientID(cfg.ClientID),
		kgo.WithLogger(p.logger),
		kgo.WithHooks(p.feedback),
		// A slot is returned from inside the promise, before franz-go
		// decrements its own count, so the client may briefly hold up to
		// twice the queue capacity.
		kgo.MaxBufferedRecords(2 * cfg.QueueCapacity),
		cfg.Compression.opt(),
	}
	opts = append(opts, cfg.Acks.opts()...)

	if cfg.MaxRecordBytes > DefaultMaxRecordBytes {
		opts = append(opts, kgo.ProducerBatchMaxBytes(int32(cfg.MaxRecordBytes+batchOverhead))) //nolint:gosec // bounded by config
	}

	if cfg.AllowAutoTopicCreation {
		opts = append(opts, kgo.AllowAutoTopicCreation())
	}

	if cfg.Linger > 0 {
		opts = append(opts, kgo.ProducerLinger(cfg.Linger))
	}

	if cfg.RequestTimeout > 0 {
		opts = append(opts, kgo.RequestTimeoutOverhead(cfg.RequestTimeout))
	}

	if cfg.MaxRetries > 0 {
		opts = append(opts, kgo.RequestRetries(cfg.MaxRetries))
	}

	mechanism, err := cfg.SASL.mechanism()
	if err != nil {
		return nil, err
	}
	if mechanism != nil {
		opts = append(opts, kgo.SASL(mechanism))
	}

	tlsCfg, err := cfg.TLS.config()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	return opts, nil
}

func (p *Producer) topic(s Stream) string {
	if s == StreamNXDomain {
		return p.cfg.NXDomainTopic
	}
	return p.cfg.QueryTopic
}

// openStream binds a stream to its topic. Each stream's readiness is
// tracked on its own; a failure here leaves the other stream untouched.
func (p *Producer) openStream(ctx context.Context, s Stream) error {
	topic := p.topic(s)

	err := validateTopic(topic)
	if err == nil && p.cfg.VerifyStreams {
		err = verifyTopic(ctx, p.client, topic, p.cfg.AllowAutoTopicCreation)
	}
	if err != nil {
		p.logger.Log(kgo.LogLevelError, "Error creating kafka topic",
			"stream", s.String(),
			"topic", topic,
			"error", err.Error(),
		)
		return fmt.Errorf("opening %s stream: %w", s, err)
	}

	p.streams[s].Store(&streamHandle{
		stream:  s,
		topic:   topic,
		headers: recordHeaders(p.cfg.Headers, s),
	})
	p.logger.Log(kgo.LogLevelInfo, "Kafka querylog topic created", "stream", s.String(), "topic", topic)
	return nil
}

// ready reports whether the stream was established and not yet released.
func (p *Producer) ready(s Stream) bool {
	return s.valid() && p.streams[s].Load() != nil
}

// AddBrokers merges brokers into the client's seed brokers. Endpoints are
// only ever added; brokers that go away are retired by the client itself
// once they stop answering. Safe for concurrent use.
func (p *Producer) AddBrokers(brokers BrokerSet) error {
	if len(brokers) == 0 {
		return nil
	}

	p.seedsMu.Lock()
	defer p.seedsMu.Unlock()

	if p.closing.Load() {
		return ErrStopping
	}

	next := p.seeds.Union(brokers)
	if next.Equal(p.seeds) {
		return nil
	}

	if err := p.client.UpdateSeedBrokers(next.Strings()...); err != nil {
		p.logger.Log(kgo.LogLevelError, "Kafka broker update failed", "brokers", next.String(), "error", err.Error())
		return errors.Join(ErrValidation, err)
	}
	p.seeds = next

	p.logger.Log(kgo.LogLevelInfo, "Kafka brokers added", "brokers", next.String())
	return nil
}

// Seeds returns the current seed broker set.
func (p *Producer) Seeds() BrokerSet {
	p.seedsMu.Lock()
	defer p.seedsMu.Unlock()
	return p.seeds
}

// enqueue makes a single attempt to hand value to the client. value must
// not be modified by the caller afterwards.
func (p *Producer) enqueue(s Stream, value []byte) admission {
	if p.closing.Load() {
		return admission{Rejected, ErrStopping}
	}
	if !s.valid() {
		return admission{Rejected, errors.Join(ErrInvalidRecord, fmt.Errorf("unknown stream %d", s))}
	}

	h := p.streams[s].Load()
	if h == nil {
		return admission{Rejected, errors.Join(ErrStreamNotReady, fmt.Errorf("%s stream", s))}
	}

	select {
	case p.slots <- struct{}{}:
	default:
		return admission{QueueFull, ErrQueueFull}
	}

	record := &kgo.Record{
		Topic:   h.topic,
		Value:   value,
		Headers: h.headers,
	}

	start := time.Now()
	// Records outlive the publish call, so they are not tied to its context.
	p.client.TryProduce(context.Background(), record, func(r *kgo.Record, err error) {
		<-p.slots
		p.signalProgress()
		p.feedback.delivered(s, r, start, err)
	})

	return admission{Admission: Enqueued}
}

func (p *Producer) signalProgress() {
	select {
	case p.progress <- struct{}{}:
	default:
	}
}

// awaitProgress blocks until a delivery report frees queue space, wait
// elapses or ctx is done.
func (p *Producer) awaitProgress(ctx context.Context, wait time.Duration) error {
	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-p.progress:
		return nil
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BufferedRecords returns the records awaiting a delivery report and the
// queue capacity.
func (p *Producer) BufferedRecords() (current, capacity int) {
	return len(p.slots), cap(p.slots)
}

// shutdown flushes buffered records, then releases both streams and the
// client in that order. The flush is bounded by FlushTimeout unless ctx
// already carries a deadline. Only the first call has any effect.
func (p *Producer) shutdown(ctx context.Context) {
	p.closeOnce.Do(func() {
		p.closing.Store(true)

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.FlushTimeout)
			defer cancel()
		}

		if err := p.client.Flush(ctx); err != nil {
			p.logger.Log(kgo.LogLevelWarn, "flush incomplete during shutdown, discarding undelivered records",
				"lost", p.client.BufferedProduceRecords(),
				"error", err.Error(),
			)
		}

		for i := range p.streams {
			p.streams[i].Store(nil)
		}

		p.client.Close()
		p.logger.Log(kgo.LogLevelInfo, "Kafka connection(s) closed.", noticeKey, true)
	})
}
