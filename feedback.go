// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"net"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/eventor"
)

// DeliveryEvent reports the final outcome of one enqueued record.
type DeliveryEvent struct {
	// Stream is the stream the record was published to.
	Stream Stream

	// Topic is the Kafka topic of the stream.
	Topic string

	// Partition and Offset are set by the broker on success, -1 otherwise.
	Partition int32
	Offset    int64

	// Error is nil for delivered records.
	Error error

	// ErrorType is the error classification (empty on success).
	ErrorType string

	// Latency is the time from enqueue to the delivery report.
	Latency time.Duration
}

// TransportEvent reports a cluster-level condition that is not tied to a
// specific record.
type TransportEvent struct {
	// Broker is the "host:port" of the broker involved.
	Broker string

	// NodeID is the broker node ID (negative for seed brokers).
	NodeID int32

	// Connected is false for failed connection attempts and disconnects.
	Connected bool

	// Error is the connection error, nil for a plain disconnect.
	Error error
}

// feedback receives asynchronous reports from the client runtime. Its
// methods run on client goroutines and only log and fan out to listeners,
// which must be safe for concurrent use.
type feedback struct {
	logger kgo.Logger

	deliveryListeners  eventor.Eventor[func(*DeliveryEvent)]
	transportListeners eventor.Eventor[func(*TransportEvent)]
}

var (
	_ kgo.HookBrokerConnect    = (*feedback)(nil)
	_ kgo.HookBrokerDisconnect = (*feedback)(nil)
)

// delivered is the delivery-report handler, called once per enqueued record.
func (f *feedback) delivered(stream Stream, r *kgo.Record, since time.Time, err error) {
	event := DeliveryEvent{
		Stream:    stream,
		Topic:     r.Topic,
		Partition: -1,
		Offset:    -1,
		Latency:   time.Since(since),
	}

	if err != nil {
		event.Error = err
		event.ErrorType = errorType(err)
		f.logger.Log(kgo.LogLevelError, "Kafka delivery failed",
			"stream", stream.String(),
			"topic", r.Topic,
			"error", err.Error(),
		)
	} else {
		event.Partition = r.Partition
		event.Offset = r.Offset
	}

	f.deliveryListeners.Visit(func(listener func(*DeliveryEvent)) {
		listener(&event)
	})
}

// OnBrokerConnect is the transport-error handler for failed dials,
// including TLS and SASL failures.
func (f *feedback) OnBrokerConnect(meta kgo.BrokerMetadata, _ time.Duration, _ net.Conn, err error) {
	if err == nil {
		return
	}

	event := TransportEvent{
		Broker: brokerAddr(meta),
		NodeID: meta.NodeID,
		Error:  err,
	}
	f.logger.Log(kgo.LogLevelError, "Kafka error",
		"broker", event.Broker,
		"error", err.Error(),
	)
	f.dispatchTransport(&event)
}

// OnBrokerDisconnect is called when an established connection is closed.
func (f *feedback) OnBrokerDisconnect(meta kgo.BrokerMetadata, _ net.Conn) {
	event := TransportEvent{
		Broker: brokerAddr(meta),
		NodeID: meta.NodeID,
	}
	f.logger.Log(kgo.LogLevelInfo, "Kafka broker disconnected", "broker", event.Broker)
	f.dispatchTransport(&event)
}

func (f *feedback) dispatchTransport(event *TransportEvent) {
	f.transportListeners.Visit(func(listener func(*TransportEvent)) {
		listener(event)
	})
}

func brokerAddr(meta kgo.BrokerMetadata) string {
	return net.JoinHostPort(meta.Host, strconv.Itoa(int(meta.Port)))
}
