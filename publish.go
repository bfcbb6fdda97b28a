// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Publish hands payload[:length] to the stream's topic for asynchronous
// delivery. It returns once the record has been queued or dropped; it does
// not wait for delivery.
//
// A full outbound queue is waited out for as long as it takes, in steps of
// QueueFullWait. Any other failure drops the record after a single attempt.
// Drops are logged and counted, never returned. The caller keeps ownership
// of payload; it is copied before Publish returns.
func (f *Feed) Publish(stream Stream, payload []byte, length int) {
	f.PublishContext(context.Background(), stream, payload, length)
}

// PublishContext is Publish with a context that can abandon the wait for
// queue space, such as one canceled at process shutdown.
func (f *Feed) PublishContext(ctx context.Context, stream Stream, payload []byte, length int) {
	p := f.producer.Load()
	if p == nil {
		f.drop(stream, ErrNotStarted, 0)
		return
	}

	value, err := prepareRecord(p, stream, payload, length)
	if err != nil {
		f.drop(stream, err, 0)
		return
	}

	f.publishRecord(ctx, p, stream, value, p.cfg.QueueFullWait)
}

// enqueuer is the admission side of the producer.
type enqueuer interface {
	enqueue(s Stream, value []byte) admission
	awaitProgress(ctx context.Context, wait time.Duration) error
}

var _ enqueuer = (*Producer)(nil)

// publishRecord offers value to q until it is enqueued or rejected. A full
// queue is retried after each wait; nothing else is retried.
func (f *Feed) publishRecord(ctx context.Context, q enqueuer, stream Stream, value []byte, wait time.Duration) {
	for attempt := 1; ; attempt++ {
		res := q.enqueue(stream, value)

		switch {
		case res.Admission == Enqueued:
			f.metrics.Load().recordEnqueued(stream)
			return

		case res.retryable():
			f.metrics.Load().recordQueueFull(stream)
			f.log().Log(kgo.LogLevelDebug, "Kafka queue full, waiting for delivery reports",
				"stream", stream.String(),
				"attempt", attempt,
			)
			if err := q.awaitProgress(ctx, wait); err != nil {
				f.drop(stream, err, attempt)
				return
			}

		default:
			f.drop(stream, res.err, attempt)
			return
		}
	}
}

// prepareRecord validates the record and copies its bytes.
func prepareRecord(p *Producer, stream Stream, payload []byte, length int) ([]byte, error) {
	if !stream.valid() {
		return nil, errors.Join(ErrInvalidRecord, fmt.Errorf("unknown stream %d", stream))
	}
	if payload == nil {
		return nil, errors.Join(ErrInvalidRecord, fmt.Errorf("nil payload"))
	}
	if length < 0 || length > len(payload) {
		return nil, errors.Join(ErrInvalidRecord, fmt.Errorf("length %d outside payload of %d bytes", length, len(payload)))
	}
	if length > p.cfg.MaxRecordBytes {
		return nil, errors.Join(ErrRecordTooLarge, fmt.Errorf("%d bytes exceeds the %d byte limit", length, p.cfg.MaxRecordBytes))
	}
	if !p.ready(stream) {
		return nil, errors.Join(ErrStreamNotReady, fmt.Errorf("%s stream", stream))
	}

	value := make([]byte, length)
	copy(value, payload[:length])
	return value, nil
}

func (f *Feed) drop(stream Stream, err error, attempts int) {
	reason := errorType(err)
	f.metrics.Load().recordDropped(stream, reason)
	f.log().Log(kgo.LogLevelError, "Kafka produce failed, record dropped",
		"stream", stream.String(),
		"reason", reason,
		"attempts", attempts,
		"error", err.Error(),
	)
}

// log returns the logger in effect, which may be called before Start.
func (f *Feed) log() kgo.Logger {
	if p := f.producer.Load(); p != nil {
		return p.logger
	}
	if f.Logger != nil {
		return f.Logger
	}
	return &nopLogger{}
}
