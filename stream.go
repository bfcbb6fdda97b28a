// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/miekg/dns"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// Stream selects one of the two output streams.
type Stream int

const (
	// StreamQuery carries resolved query/answer records.
	StreamQuery Stream = iota

	// StreamNXDomain carries NXDOMAIN records.
	StreamNXDomain

	streamCount
)

// String returns the stream name used in logs and metrics.
func (s Stream) String() string {
	switch s {
	case StreamQuery:
		return "query"
	case StreamNXDomain:
		return "nxdomain"
	default:
		return "unknown"
	}
}

func (s Stream) valid() bool {
	return s >= 0 && s < streamCount
}

// StreamForRcode returns the stream a record with the given DNS response
// code belongs to.
func StreamForRcode(rcode int) Stream {
	if rcode == dns.RcodeNameError {
		return StreamNXDomain
	}
	return StreamQuery
}

// streamHandle binds a Stream to its topic on a Producer.
type streamHandle struct {
	stream  Stream
	topic   string
	headers []kgo.RecordHeader
}

// verifyTopic asks the cluster for the topic's metadata and returns the
// error the broker reports for it, if any.
func verifyTopic(ctx context.Context, r kmsg.Requestor, topic string, autoCreate bool) error {
	req := kmsg.NewPtrMetadataRequest()
	req.AllowAutoTopicCreation = autoCreate
	rt := kmsg.NewMetadataRequestTopic()
	rt.Topic = kmsg.StringPtr(topic)
	req.Topics = append(req.Topics, rt)

	resp, err := req.RequestWith(ctx, r)
	if err != nil {
		return err
	}

	for _, t := range resp.Topics {
		if t.Topic == nil || *t.Topic != topic {
			continue
		}
		if err := kerr.ErrorForCode(t.ErrorCode); err != nil {
			return errors.Join(ErrBroker, fmt.Errorf("topic %q: %w", topic, err))
		}
		return nil
	}
	return errors.Join(ErrBroker, fmt.Errorf("topic %q missing from metadata response", topic))
}
