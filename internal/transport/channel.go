package transport

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rtcmesh/internal/util"
)

// Compile-time interface check.
var _ Channel = (*pionChannel)(nil)

// pionChannel wraps a pre-negotiated pion DataChannel with an open gate and
// a backpressure-aware sender goroutine.
type pionChannel struct {
	dc *webrtc.DataChannel
	id uint16

	sender *sender

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	handler func([]byte)
}

// newPionChannel wires dc and starts its sender. The channel shuts down when
// the DataChannel closes or parent is cancelled.
func newPionChannel(parent context.Context, dc *webrtc.DataChannel, id uint16) *pionChannel {
	ctx, cancel := context.WithCancel(parent)

	c := &pionChannel{
		dc:     dc,
		id:     id,
		ctx:    ctx,
		cancel: cancel,
	}

	openSignal := make(chan struct{})
	var openOnce sync.Once
	dc.OnOpen(func() {
		util.LogDebug("channel %q (id %d) open", dc.Label(), id)
		openOnce.Do(func() { close(openSignal) })
	})

	dc.OnClose(func() {
		util.LogDebug("channel %q (id %d) closed", dc.Label(), id)
		cancel()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddRecv(len(msg.Data))

		c.mu.RLock()
		fn := c.handler
		c.mu.RUnlock()
		if fn != nil {
			fn(msg.Data)
		}
	})

	c.sender = newSender(ctx, dc, openSignal)
	return c
}

func (c *pionChannel) Label() string { return c.dc.Label() }
func (c *pionChannel) ID() uint16    { return c.id }

// Send enqueues a copy of payload and never blocks. It fails with
// ErrQueueFull when the queue is full and with ErrChannelClosed once the
// channel or its peer has shut down.
func (c *pionChannel) Send(payload []byte) error {
	return c.sender.send(c.ctx, append([]byte(nil), payload...))
}

func (c *pionChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}
