// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// mockKafkaClient is a mock implementation of kafkaClient for testing.
type mockKafkaClient struct {
	mock.Mock
}

func (m *mockKafkaClient) TryProduce(ctx context.Context, r *kgo.Record, cb func(*kgo.Record, error)) {
	m.Called(ctx, r, cb)
}

func (m *mockKafkaClient) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockKafkaClient) Close() {
	m.Called()
}

func (m *mockKafkaClient) UpdateSeedBrokers(addrs ...string) error {
	args := m.Called(addrs)
	return args.Error(0)
}

func (m *mockKafkaClient) BufferedProduceRecords() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *mockKafkaClient) Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(kmsg.Response)
	return resp, args.Error(1)
}

// fakeKafkaClient records what the producer hands it. Promises are either
// completed immediately with completeErr, or held until release is called.
type fakeKafkaClient struct {
	mu sync.Mutex

	hold        bool
	completeErr error
	flushErr    error
	flushDelay  time.Duration

	records  []*kgo.Record
	pending  []pendingRecord
	seeds    [][]string
	flushCtx context.Context
	closed   bool
}

type pendingRecord struct {
	record  *kgo.Record
	promise func(*kgo.Record, error)
}

var _ kafkaClient = (*fakeKafkaClient)(nil)

func (c *fakeKafkaClient) TryProduce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	c.mu.Lock()
	c.records = append(c.records, r)
	if c.hold {
		c.pending = append(c.pending, pendingRecord{record: r, promise: promise})
		c.mu.Unlock()
		return
	}
	err := c.completeErr
	c.mu.Unlock()

	if err == nil {
		r.Partition = 0
		r.Offset = 1
	}
	promise(r, err)
}

// release completes every held record with err.
func (c *fakeKafkaClient) release(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, p := range pending {
		p.promise(p.record, err)
	}
}

func (c *fakeKafkaClient) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.flushCtx = ctx
	delay := c.flushDelay
	err := c.flushErr
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *fakeKafkaClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeKafkaClient) UpdateSeedBrokers(addrs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeds = append(c.seeds, addrs)
	return nil
}

func (c *fakeKafkaClient) BufferedProduceRecords() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.pending))
}

func (c *fakeKafkaClient) Request(context.Context, kmsg.Request) (kmsg.Response, error) {
	return nil, fmt.Errorf("requests are not supported by the fake client")
}

func (c *fakeKafkaClient) produced() []*kgo.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*kgo.Record(nil), c.records...)
}

func (c *fakeKafkaClient) seedUpdates() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.seeds...)
}

func (c *fakeKafkaClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeCoordinator is an in-memory ZooKeeper tree.
type fakeCoordinator struct {
	mu       sync.Mutex
	nodes    map[string][]byte
	listErr  error
	watches  []chan zk.Event
	listings int
	reads    int
	closed   bool
}

var _ coordinator = (*fakeCoordinator)(nil)

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{nodes: make(map[string][]byte)}
}

// set creates or replaces a node.
func (c *fakeCoordinator) set(path, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[path] = []byte(data)
}

func (c *fakeCoordinator) remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, path)
}

func (c *fakeCoordinator) children(path string) []string {
	var names []string
	for p := range c.nodes {
		rest, ok := strings.CutPrefix(p, path+"/")
		if ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names
}

func (c *fakeCoordinator) Children(path string) ([]string, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings++
	if c.listErr != nil {
		return nil, nil, c.listErr
	}
	return c.children(path), &zk.Stat{}, nil
}

func (c *fakeCoordinator) ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings++
	if c.listErr != nil {
		return nil, nil, nil, c.listErr
	}
	ch := make(chan zk.Event, 1)
	c.watches = append(c.watches, ch)
	return c.children(path), &zk.Stat{}, ch, nil
}

func (c *fakeCoordinator) Get(path string) ([]byte, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	data, ok := c.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return data, &zk.Stat{}, nil
}

func (c *fakeCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// fire triggers and consumes every outstanding watch.
func (c *fakeCoordinator) fire(path string) {
	c.mu.Lock()
	watches := c.watches
	c.watches = nil
	c.mu.Unlock()

	for _, ch := range watches {
		ch <- zk.Event{Type: zk.EventNodeChildrenChanged, State: zk.StateHasSession, Path: path}
		close(ch)
	}
}

func (c *fakeCoordinator) listCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listings
}

func (c *fakeCoordinator) watchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watches)
}

func (c *fakeCoordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// member returns a broker registration document.
func member(host string, port int) string {
	return fmt.Sprintf(`{"jmx_port":-1,"timestamp":"1700000000000","host":%q,"version":4,"port":%d}`, host, port)
}

// recordingAdder captures every broker set pushed to it.
type recordingAdder struct {
	mu   sync.Mutex
	sets []BrokerSet
}

func (a *recordingAdder) AddBrokers(set BrokerSet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sets = append(a.sets, set)
	return nil
}

func (a *recordingAdder) pushed() []BrokerSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]BrokerSet(nil), a.sets...)
}

// testLogger collects log lines.
type testLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level   kgo.LogLevel
	msg     string
	keyvals []any
}

func (l *testLogger) Level() kgo.LogLevel { return kgo.LogLevelDebug }

func (l *testLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, keyvals: keyvals})
}

// count returns how many entries at level contain msg.
func (l *testLogger) count(level kgo.LogLevel, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.msg, msg) {
			n++
		}
	}
	return n
}

// newTestFeed returns a started feed backed by client and, for discovery
// configurations, coord.
func newTestFeed(t *testing.T, cfg Config, client kafkaClient, coord *fakeCoordinator, session <-chan zk.Event) (*Feed, *testLogger) {
	t.Helper()

	logger := &testLogger{}
	f := &Feed{
		Config: cfg,
		Logger: logger,
	}
	f.clientFactory = func(...kgo.Opt) (kafkaClient, error) {
		return client, nil
	}
	f.coordinatorFactory = func([]string, time.Duration, kgo.Logger) (coordinator, <-chan zk.Event, error) {
		return coord, session, nil
	}

	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(func() {
		f.Stop(context.Background())
	})
	return f, logger
}
