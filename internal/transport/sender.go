package transport

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rtcmesh/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing payload queue capacity
)

// sender is a goroutine-based writer that serializes all writes to a single
// DataChannel, adding open-gate and backpressure control.
type sender struct {
	inbox       chan []byte
	drainSignal chan struct{}
}

// newSender creates a sender, wires the backpressure callbacks on dc, and
// starts the background loop. The loop exits when ctx is cancelled.
func newSender(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}) *sender {
	s := &sender{
		inbox:       make(chan []byte, sendBufferSize),
		drainSignal: make(chan struct{}, 1),
	}

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	go s.loop(ctx, dc, openSignal)

	return s
}

// loop waits for the DataChannel to open, then drains the inbox with
// backpressure awareness.
func (s *sender) loop(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}) {
	// Phase 1: wait for the channel to open.
	select {
	case <-openSignal:
	case <-ctx.Done():
		return
	}

	// Phase 2: send with backpressure.
	for {
		select {
		case payload := <-s.inbox:
			if dc.BufferedAmount() > uint64(highWaterMark) {
				select {
				case <-s.drainSignal:
				case <-ctx.Done():
					return
				}
			}

			if err := dc.Send(payload); err != nil {
				util.LogError("failed to send on channel %q (%d bytes): %v", dc.Label(), len(payload), err)
				continue
			}

			util.Stats.AddSent(len(payload))
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a payload without blocking. A full queue is reported to the
// caller instead of stalling it.
func (s *sender) send(ctx context.Context, payload []byte) error {
	if ctx.Err() != nil {
		return ErrChannelClosed
	}

	select {
	case s.inbox <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}
