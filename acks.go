// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Acks specifies the broker acknowledgment requirements.
type Acks string

const (
	// AcksAll requires all ISR replicas to acknowledge. This is the default
	// and the only level that keeps idempotent writes enabled.
	AcksAll Acks = "all"

	// AcksLeader requires only the leader replica to acknowledge.
	AcksLeader Acks = "leader"

	// AcksNone requires no acknowledgment.
	AcksNone Acks = "none"
)

var acksList = []string{string(AcksAll), string(AcksLeader), string(AcksNone)}

// validate validates the Acks enum value. Empty means AcksAll.
func (a Acks) validate() error {
	switch a {
	case "", AcksAll, AcksLeader, AcksNone:
		return nil
	}

	list := "'" + strings.Join(acksList, "', '") + "'"
	return errors.Join(ErrValidation,
		fmt.Errorf("acks '%s' is invalid: must be %s or empty", a, list))
}

// opts returns the franz-go producer options for this acknowledgment level.
// Idempotent writes require acks from all ISRs, so they are disabled for
// the weaker levels.
func (a Acks) opts() []kgo.Opt {
	switch a {
	case AcksLeader:
		return []kgo.Opt{kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite()}
	case AcksNone:
		return []kgo.Opt{kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite()}
	default:
		return []kgo.Opt{kgo.RequiredAcks(kgo.AllISRAcks())}
	}
}
