// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"slices"

	"github.com/twmb/franz-go/pkg/kgo"
)

// StreamHeader is the record header carrying the stream name, so consumers
// reading both topics through one pipeline can tell the records apart.
const StreamHeader = "pdns-stream"

// recordHeaders builds the headers attached to every record of a stream:
// the configured static headers in key order followed by StreamHeader.
// A configured header named StreamHeader is replaced.
func recordHeaders(static map[string]string, stream Stream) []kgo.RecordHeader {
	keys := make([]string, 0, len(static))
	for key := range static {
		if key != StreamHeader {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	headers := make([]kgo.RecordHeader, 0, len(keys)+1)
	for _, key := range keys {
		headers = append(headers, kgo.RecordHeader{
			Key:   key,
			Value: []byte(static[key]),
		})
	}
	return append(headers, kgo.RecordHeader{
		Key:   StreamHeader,
		Value: []byte(stream.String()),
	})
}
