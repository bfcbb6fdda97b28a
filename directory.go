// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-zookeeper/zk"
	"github.com/twmb/franz-go/pkg/kgo"
)

// rearmInterval is how long the watch loop waits before trying again to
// set a watch after the coordination service refused one.
const rearmInterval = 5 * time.Second

// BrokerAdder accepts newly discovered brokers. Implementations must be
// safe for concurrent use; Producer is the production implementation.
type BrokerAdder interface {
	AddBrokers(BrokerSet) error
}

// BrokerAdderFunc adapts a function to BrokerAdder.
type BrokerAdderFunc func(BrokerSet) error

func (f BrokerAdderFunc) AddBrokers(brokers BrokerSet) error {
	return f(brokers)
}

// coordinator is the subset of the ZooKeeper connection the directory
// needs, so tests can substitute a fake tree.
type coordinator interface {
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Close()
}

var _ coordinator = (*zk.Conn)(nil)

// coordinatorFactory connects to the coordination service and returns the
// connection along with its session event channel.
type coordinatorFactory func(servers []string, sessionTimeout time.Duration, logger kgo.Logger) (coordinator, <-chan zk.Event, error)

func defaultCoordinatorFactory(servers []string, sessionTimeout time.Duration, logger kgo.Logger) (coordinator, <-chan zk.Event, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(zkLogger{logger}))
	if err != nil {
		return nil, nil, err
	}
	return conn, events, nil
}

// zkLogger routes the ZooKeeper client's printf logging to the feed logger.
type zkLogger struct {
	logger kgo.Logger
}

func (l zkLogger) Printf(format string, args ...any) {
	l.logger.Log(kgo.LogLevelDebug, fmt.Sprintf(format, args...))
}

// memberDoc is the registration document a Kafka broker writes under the
// membership path. Newer brokers leave host null and list endpoints such
// as "PLAINTEXT://host:9092" instead.
type memberDoc struct {
	Host      *string  `json:"host"`
	Port      int      `json:"port"`
	Endpoints []string `json:"endpoints"`
}

// parseMember extracts the broker endpoint from a registration document.
func parseMember(data []byte) (BrokerEndpoint, error) {
	var doc memberDoc
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return BrokerEndpoint{}, errors.Join(ErrDiscovery, err)
	}

	if doc.Host != nil && *doc.Host != "" {
		b := BrokerEndpoint{Host: *doc.Host, Port: doc.Port}
		if err := b.validate(); err != nil {
			return BrokerEndpoint{}, errors.Join(ErrDiscovery, err)
		}
		return b, nil
	}

	for _, ep := range doc.Endpoints {
		_, addr, ok := strings.Cut(ep, "://")
		if !ok {
			continue
		}
		if b, err := ParseBrokerEndpoint(addr); err == nil {
			return b, nil
		}
	}

	return BrokerEndpoint{}, errors.Join(ErrDiscovery, fmt.Errorf("member document has no usable host and port"))
}

// Directory resolves the broker set, either from static configuration or
// from the broker registrations in ZooKeeper.
//
// Resolve may be called at any time. When discovery is enabled, Watch
// starts a single goroutine that owns all later updates of the known set.
type Directory struct {
	static  BrokerSet
	path    string
	logger  kgo.Logger
	coord   coordinator
	session <-chan zk.Event

	mu    sync.Mutex
	known BrokerSet

	stop context.CancelFunc
	done chan struct{}
}

// newDirectory returns a static directory, or connects to the
// coordination service when discovery is enabled.
func newDirectory(cfg *Config, logger kgo.Logger, factory coordinatorFactory) (*Directory, error) {
	d := &Directory{
		path:   cfg.MembershipPath,
		logger: logger,
	}

	if !cfg.Discovery {
		set, err := ParseBrokerList(cfg.Brokers...)
		if err != nil {
			return nil, err
		}
		d.static = set
		d.known = set
		return d, nil
	}

	coord, session, err := factory(cfg.ZooKeeper, cfg.ZooKeeperSessionTimeout, logger)
	if err != nil {
		logger.Log(kgo.LogLevelError, "Zookeeper connection not established", "error", err.Error())
		return nil, errors.Join(ErrDiscovery, err)
	}
	d.coord = coord
	d.session = session
	return d, nil
}

// Resolve returns the current broker set. With discovery enabled it reads
// the membership path and every member document. Members that cannot be
// read or parsed are skipped. If no member is usable, the previously known
// set is returned unchanged; an error is only returned when there is no
// previously known set.
func (d *Directory) Resolve() (BrokerSet, error) {
	if d.coord == nil {
		return d.static, nil
	}

	children, _, err := d.coord.Children(d.path)
	set, _, err := d.resolve(children, err)
	return set, err
}

// Known returns the last successfully resolved broker set.
func (d *Directory) Known() BrokerSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.known
}

// resolve turns a membership listing into a broker set and records it.
// changed reports whether the recorded set differs from the previous one.
func (d *Directory) resolve(children []string, listErr error) (set BrokerSet, changed bool, err error) {
	if listErr != nil {
		d.logger.Log(kgo.LogLevelWarn, "broker discovery failed, keeping last known brokers",
			"path", d.path,
			"error", listErr.Error(),
		)
		return d.fallback(errors.Join(ErrDiscovery, listErr))
	}

	endpoints := make([]BrokerEndpoint, 0, len(children))
	for _, id := range children {
		member := d.path + "/" + id

		data, _, err := d.coord.Get(member)
		if err != nil {
			d.logger.Log(kgo.LogLevelWarn, "skipping unreadable broker member", "path", member, "error", err.Error())
			continue
		}

		b, err := parseMember(data)
		if err != nil {
			d.logger.Log(kgo.LogLevelWarn, "skipping malformed broker member", "path", member, "error", err.Error())
			continue
		}
		endpoints = append(endpoints, b)
	}

	set = NewBrokerSet(endpoints...)
	if len(set) == 0 {
		d.logger.Log(kgo.LogLevelWarn, "No brokers found on path, keeping last known brokers", "path", d.path)
		return d.fallback(errors.Join(ErrNoBrokers, fmt.Errorf("no brokers found on path %s", d.path)))
	}

	d.mu.Lock()
	changed = !set.Equal(d.known)
	d.known = set
	d.mu.Unlock()

	if changed {
		d.logger.Log(kgo.LogLevelInfo, "Found brokers", "brokers", set.String())
	}
	return set, changed, nil
}

func (d *Directory) fallback(err error) (BrokerSet, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.known) == 0 {
		return nil, false, err
	}
	return d.known, false, nil
}

// concerns reports whether a coordination event is a membership change at
// the membership path or beneath it. Sibling nodes that merely share the
// path as a string prefix do not match.
func (d *Directory) concerns(ev zk.Event) bool {
	if ev.Type != zk.EventNodeChildrenChanged {
		return false
	}
	return ev.Path == d.path || strings.HasPrefix(ev.Path, d.path+"/")
}

// Watch sets a watch on the membership path and pushes every changed,
// non-empty broker set into adder until ctx is done or Close is called.
// It is a no-op for static directories.
func (d *Directory) Watch(ctx context.Context, adder BrokerAdder) error {
	if d.coord == nil {
		return nil
	}
	if d.done != nil {
		return errors.Join(ErrAlreadyStarted, fmt.Errorf("directory watch"))
	}

	events, err := d.refresh(adder)
	if err != nil {
		return err
	}

	ctx, d.stop = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.watch(ctx, events, adder)
	return nil
}

// watch is the single writer of the known set once watching has begun.
func (d *Directory) watch(ctx context.Context, events <-chan zk.Event, adder BrokerAdder) {
	defer close(d.done)

	session := d.session
	var retry <-chan time.Time

	rearm := func() {
		var err error
		events, err = d.refresh(adder)
		retry = nil
		if err != nil {
			retry = time.After(rearmInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			// Watches fire once; any event on this channel means the
			// watch is gone and must be set again.
			events = nil
			if ok {
				d.logger.Log(kgo.LogLevelDebug, "membership watch fired", "type", ev.Type.String(), "path", ev.Path)
			}
			rearm()

		case ev, ok := <-session:
			if !ok {
				session = nil
				continue
			}
			if d.concerns(ev) || (ev.State == zk.StateHasSession && events == nil) {
				rearm()
			}

		case <-retry:
			rearm()
		}
	}
}

// refresh re-reads the membership path, sets a new watch on it and pushes
// a changed set into adder.
func (d *Directory) refresh(adder BrokerAdder) (<-chan zk.Event, error) {
	children, _, events, err := d.coord.ChildrenW(d.path)
	set, changed, rerr := d.resolve(children, err)
	if err != nil {
		return nil, errors.Join(ErrDiscovery, err)
	}

	if rerr == nil && changed && len(set) > 0 && adder != nil {
		if err := adder.AddBrokers(set); err != nil {
			d.logger.Log(kgo.LogLevelWarn, "failed to push discovered brokers", "brokers", set.String(), "error", err.Error())
		}
	}
	return events, nil
}

// StopWatch stops the watch goroutine and waits for it to exit. No broker
// set is pushed after it returns.
func (d *Directory) StopWatch() {
	if d.stop != nil {
		d.stop()
		<-d.done
	}
}

// Close stops the watch and closes the coordination session.
func (d *Directory) Close() {
	d.StopWatch()
	if d.coord != nil {
		d.coord.Close()
	}
}
