// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package pdnskafka publishes passive DNS records to Apache Kafka.
//
// # Overview
//
// A Feed owns one Kafka producer and two output streams: resolved queries
// go to the query topic ("passivedns.query" by default) and NXDOMAIN
// responses go to the NXDOMAIN topic ("passivedns.nxdomain"). Records are
// opaque, already serialized byte buffers; the feed never inspects them.
//
// # Quick Start
//
//	feed := &pdnskafka.Feed{
//	    Config: pdnskafka.Config{
//	        Brokers: []string{"localhost:9092"},
//	    },
//	}
//	if err := feed.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer feed.Stop(context.Background())
//
//	feed.Publish(pdnskafka.StreamForRcode(msg.Rcode), record, len(record))
//
// # Backpressure
//
// Publish never waits for delivery. It only waits for room in the bounded
// outbound queue: while the queue is full it waits up to QueueFullWait for
// a delivery report to free a slot and tries again, indefinitely. Every
// other failure (stream not ready, oversized record, shutdown in progress)
// drops the record after a single attempt. Drops are logged and counted;
// Publish has no error result.
//
// # Broker Discovery
//
// With Discovery set, brokers are read from the Kafka registrations in
// ZooKeeper under MembershipPath ("/brokers/ids"). The feed watches that
// path and adds newly seen brokers to the client's seed brokers. Brokers
// are never removed; the client stops using brokers that do not answer.
// A listing with no usable member keeps the previously known brokers.
//
// # Observability
//
// Logging goes through franz-go's kgo.Logger interface, the same logger
// the Kafka client uses. NewLogrusLogger adapts logrus, and NewSyslogHook
// forwards operational messages to syslog. Delivery reports and broker
// connection failures are delivered to listeners:
//
//	feed.AddDeliveryListener(func(e *pdnskafka.DeliveryEvent) {
//	    if e.Error != nil {
//	        failures.WithLabelValues(e.Stream.String(), e.ErrorType).Inc()
//	    }
//	})
//
// Setting Registerer registers the feed's own Prometheus collectors.
//
// # Shutdown
//
// Stop flushes buffered records for at most FlushTimeout (or until the
// context's deadline) and then closes the client. Records still buffered
// at that point are lost.
package pdnskafka
