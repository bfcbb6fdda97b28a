// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

// BrokerEndpoint is a single Kafka broker address.
type BrokerEndpoint struct {
	Host string
	Port int
}

// String returns the endpoint in "host:port" form. IPv6 hosts are bracketed.
func (b BrokerEndpoint) String() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

func (b BrokerEndpoint) validate() error {
	if b.Host == "" {
		return errors.Join(ErrValidation, fmt.Errorf("broker host must not be empty"))
	}
	if b.Port <= 0 || b.Port > 65535 {
		return errors.Join(ErrValidation, fmt.Errorf("broker %q has invalid port %d", b.Host, b.Port))
	}
	return nil
}

func compareEndpoints(a, b BrokerEndpoint) int {
	if c := strings.Compare(a.Host, b.Host); c != 0 {
		return c
	}
	return a.Port - b.Port
}

// ParseBrokerEndpoint parses a "host:port" address.
func ParseBrokerEndpoint(addr string) (BrokerEndpoint, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return BrokerEndpoint{}, errors.Join(ErrValidation, fmt.Errorf("broker address %q: %w", addr, err))
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return BrokerEndpoint{}, errors.Join(ErrValidation, fmt.Errorf("broker address %q has non-numeric port", addr))
	}

	b := BrokerEndpoint{Host: host, Port: p}
	if err := b.validate(); err != nil {
		return BrokerEndpoint{}, err
	}
	return b, nil
}

// BrokerSet is the set of brokers believed reachable. It is kept sorted and
// free of duplicates so two sets can be compared regardless of the order
// in which the endpoints were discovered.
type BrokerSet []BrokerEndpoint

// NewBrokerSet returns a sorted, deduplicated set of the given endpoints.
func NewBrokerSet(endpoints ...BrokerEndpoint) BrokerSet {
	set := slices.Clone(endpoints)
	slices.SortFunc(set, compareEndpoints)
	return slices.Compact(set)
}

// ParseBrokerList parses broker addresses. Each entry may itself be a
// comma-separated list, as in a bootstrap.servers string.
func ParseBrokerList(addrs ...string) (BrokerSet, error) {
	var endpoints []BrokerEndpoint
	for _, entry := range addrs {
		for _, addr := range strings.Split(entry, ",") {
			if strings.TrimSpace(addr) == "" {
				continue
			}
			b, err := ParseBrokerEndpoint(addr)
			if err != nil {
				return nil, err
			}
			endpoints = append(endpoints, b)
		}
	}
	return NewBrokerSet(endpoints...), nil
}

// Strings returns each endpoint in "host:port" form.
func (s BrokerSet) Strings() []string {
	rv := make([]string, 0, len(s))
	for _, b := range s {
		rv = append(rv, b.String())
	}
	return rv
}

// String returns the comma-separated endpoint list.
func (s BrokerSet) String() string {
	return strings.Join(s.Strings(), ",")
}

// Equal reports whether both sets contain the same endpoints.
func (s BrokerSet) Equal(other BrokerSet) bool {
	return slices.Equal(NewBrokerSet(s...), NewBrokerSet(other...))
}

// Union returns the endpoints present in either set.
func (s BrokerSet) Union(other BrokerSet) BrokerSet {
	all := make([]BrokerEndpoint, 0, len(s)+len(other))
	all = append(all, s...)
	all = append(all, other...)
	return NewBrokerSet(all...)
}
