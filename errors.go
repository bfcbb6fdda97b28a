// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	// ErrValidation indicates configuration validation failed.
	ErrValidation = &metricError{
		metric:  "validation_error",
		message: "validation error",
	}

	// ErrNoBrokers indicates broker resolution produced an empty set at startup.
	ErrNoBrokers = &metricError{
		metric:  "no_brokers",
		message: "no brokers resolved",
	}

	// ErrDiscovery indicates the coordination service could not be read.
	ErrDiscovery = &metricError{
		metric:  "discovery_error",
		message: "broker discovery failed",
	}

	// ErrClientCreate indicates the Kafka client could not be instantiated.
	ErrClientCreate = &metricError{
		metric:  "client_create_error",
		message: "kafka client creation failed",
	}

	// ErrQueueFull indicates the local outbound queue is at capacity.
	// This is the only condition the publish pipeline retries.
	ErrQueueFull = &metricError{
		metric:  "queue_full",
		message: "outbound queue full",
	}

	// ErrStreamNotReady indicates the stream handle was never established.
	ErrStreamNotReady = &metricError{
		metric:  "stream_not_ready",
		message: "stream not ready",
	}

	// ErrRecordTooLarge indicates the payload exceeds MaxRecordBytes.
	ErrRecordTooLarge = &metricError{
		metric:  "record_too_large",
		message: "record too large",
	}

	// ErrInvalidRecord indicates a nil payload or a length outside the payload.
	ErrInvalidRecord = &metricError{
		metric:  "invalid_record",
		message: "invalid record",
	}

	// ErrBroker indicates a Kafka broker rejected the record.
	ErrBroker = &metricError{
		metric:  "broker_error",
		message: "broker error",
	}

	// ErrTimeout indicates a request or flush timeout was exceeded.
	ErrTimeout = &metricError{
		metric:  "timeout",
		message: "timeout",
	}

	// ErrNotStarted indicates the feed has not been started.
	ErrNotStarted = &metricError{
		metric:  "not_started",
		message: "feed not started",
	}

	// ErrAlreadyStarted indicates the feed has already been started.
	ErrAlreadyStarted = &metricError{
		metric:  "already_started",
		message: "feed already started",
	}

	// ErrStopping indicates shutdown has begun and no more records are accepted.
	ErrStopping = &metricError{
		metric:  "stopping",
		message: "feed is shutting down",
	}
)

// metricError is an internal error type that wraps errors with a type classification
// for metrics and observability.
type metricError struct {
	metric  string // label used in metrics (e.g., "queue_full")
	message string
}

// Error implements the error interface.
func (e *metricError) Error() string {
	return e.message
}

func (e *metricError) Metric() string {
	return e.metric
}

func (e *metricError) Is(target error) bool {
	if t, ok := target.(*metricError); ok {
		return e.message == t.message
	}
	return false
}

// errorType extracts the error type string for metrics classification.
// Walks the error chain to find metricError types, then falls back to the
// well known franz-go and context errors.
func errorType(err error) string {
	if err == nil {
		return ""
	}

	var me *metricError
	if errors.As(err, &me) {
		return me.Metric()
	}

	switch {
	case errors.Is(err, kgo.ErrMaxBuffered):
		return ErrQueueFull.Metric()
	case errors.Is(err, kgo.ErrRecordTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.Metric()
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, kerr.MessageTooLarge),
		errors.Is(err, kerr.RecordListTooLarge):
		return ErrRecordTooLarge.Metric()
	}

	var ke *kerr.Error
	if errors.As(err, &ke) {
		return ErrBroker.Metric()
	}

	return "unknown"
}
