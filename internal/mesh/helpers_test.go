package mesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/1ureka/rtcmesh/internal/signaling"
	"github.com/1ureka/rtcmesh/internal/transport"
	"github.com/1ureka/rtcmesh/internal/util"
)

const (
	testRoom = "lobby"
	waitFor  = 5 * time.Second
	tick     = 5 * time.Millisecond
)

func init() {
	util.Silence()
}

func testDescriptor() Descriptor {
	return Descriptor{"chat": 0, "state": 1}
}

// member is a running Manager plus a record of everything its observers saw.
type member struct {
	*Manager
	link *signaling.MemoryLink

	mu          sync.Mutex
	established []string
	ended       []string
	messages    []received
}

type received struct {
	from    string
	channel string
	payload []byte
}

func newMember(t *testing.T, link signaling.Link, factory transport.Factory, name string) *member {
	t.Helper()

	m, err := New(link, Options{
		Room:       testRoom,
		Name:       name,
		Channels:   testDescriptor(),
		Transports: factory,
	})
	require.NoError(t, err)

	mem := &member{Manager: m}
	m.OnConnection(func(c *Connection) {
		mem.mu.Lock()
		mem.established = append(mem.established, c.ID())
		mem.mu.Unlock()
	})
	m.OnConnectionEnd(func(c *Connection) {
		mem.mu.Lock()
		mem.ended = append(mem.ended, c.ID())
		mem.mu.Unlock()
	})
	m.OnMessage(func(payload []byte, channel string, c *Connection) {
		mem.mu.Lock()
		mem.messages = append(mem.messages, received{from: c.ID(), channel: channel, payload: payload})
		mem.mu.Unlock()
	})
	return mem
}

// joinRoom connects a member to relay, runs it, and waits for its identity.
func joinRoom(t *testing.T, relay *signaling.Relay, factory transport.Factory, name string) *member {
	t.Helper()

	link := relay.Connect(testRoom, name)
	mem := newMember(t, link, factory, name)
	mem.link = link

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mem.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = mem.Close()
	})

	require.Eventually(t, func() bool {
		_, ok := mem.ID()
		return ok
	}, waitFor, tick)
	return mem
}

func (mem *member) id() string {
	id, _ := mem.ID()
	return id
}

func (mem *member) counts() (established, ended int) {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return len(mem.established), len(mem.ended)
}

func (mem *member) inbox() []received {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return append([]received(nil), mem.messages...)
}

func (mem *member) openIDs() []string {
	var ids []string
	for _, c := range mem.Connections() {
		ids = append(ids, c.ID())
	}
	return ids
}

func fakeOf(t *testing.T, c *Connection) *fakePeer {
	t.Helper()
	p, ok := c.transport.(*fakePeer)
	require.True(t, ok, "transport is %T", c.transport)
	return p
}
