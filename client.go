// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// kafkaClient is the subset of the franz-go client the producer needs.
// This allows us to mock the client for testing while using the real
// kgo.Client in production.
type kafkaClient interface {
	// TryProduce buffers a record without blocking. The promise is always
	// called exactly once, from a client goroutine.
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))

	// Flush waits for all buffered records to be sent or ctx to be done.
	Flush(ctx context.Context) error

	// Close closes the client and releases resources.
	Close()

	// UpdateSeedBrokers replaces the client's seed brokers.
	UpdateSeedBrokers(addrs ...string) error

	// BufferedProduceRecords returns the current number of buffered records.
	BufferedProduceRecords() int64

	// Request issues a raw Kafka request, used to verify stream topics.
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
}

// Verify that *kgo.Client implements kafkaClient interface at compile time.
var _ kafkaClient = (*kgo.Client)(nil)

// clientFactory creates a Kafka client from options.
// This allows dependency injection for testing.
type clientFactory func(opts ...kgo.Opt) (kafkaClient, error)

// defaultClientFactory is the production client factory that uses franz-go.
func defaultClientFactory(opts ...kgo.Opt) (kafkaClient, error) {
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return cl, nil
}
