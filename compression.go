// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Compression specifies the record batch compression algorithm.
type Compression string

const (
	// CompressionSnappy uses Snappy compression (good balance, recommended).
	CompressionSnappy Compression = "snappy"

	// CompressionGzip uses Gzip compression.
	CompressionGzip Compression = "gzip"

	// CompressionLz4 uses LZ4 compression.
	CompressionLz4 Compression = "lz4"

	// CompressionZstd uses Zstandard compression.
	CompressionZstd Compression = "zstd"

	// CompressionNone disables compression.
	CompressionNone Compression = "none"
)

var codecs = map[Compression]kgo.CompressionCodec{
	CompressionSnappy: kgo.SnappyCompression(),
	CompressionGzip:   kgo.GzipCompression(),
	CompressionLz4:    kgo.Lz4Compression(),
	CompressionZstd:   kgo.ZstdCompression(),
	CompressionNone:   kgo.NoCompression(),
}

// validate validates the Compression enum value. Empty means none.
func (c Compression) validate() error {
	if c == "" {
		return nil
	}
	if _, ok := codecs[c]; ok {
		return nil
	}

	list := make([]string, 0, len(codecs))
	for _, name := range []Compression{CompressionSnappy, CompressionGzip, CompressionLz4, CompressionZstd, CompressionNone} {
		list = append(list, string(name))
	}
	return errors.Join(ErrValidation,
		fmt.Errorf("compression codec '%s' is invalid: must be '%s' or empty", c, strings.Join(list, "', '")))
}

func (c Compression) opt() kgo.Opt {
	codec, ok := codecs[c]
	if !ok {
		codec = kgo.NoCompression()
	}
	return kgo.ProducerBatchCompression(codec)
}
