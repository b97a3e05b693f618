package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide peer/traffic counter.
var Stats = &stats{}

type stats struct {
	OpenedPeers atomic.Int64 // peers that reached Open since process start
	ClosedPeers atomic.Int64 // peers that reached Closed since process start
	BytesSent   atomic.Int64 // bytes written to data channels
	BytesRecv   atomic.Int64 // bytes read from data channels
}

func (s *stats) AddPeer()      { s.OpenedPeers.Add(1) }
func (s *stats) RemovePeer()   { s.ClosedPeers.Add(1) }
func (s *stats) AddSent(n int) { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.BytesRecv.Add(int64(n)) }

// Live returns the number of peers currently open.
func (s *stats) Live() int64 {
	return s.OpenedPeers.Load() - s.ClosedPeers.Load()
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs mesh statistics every
// interval, but only when something changed. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv, prevOpened, prevClosed int64
		for {
			select {
			case <-ticker.C:
				opened := Stats.OpenedPeers.Load()
				closed := Stats.ClosedPeers.Load()
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()

				if opened != prevOpened || closed != prevClosed || sent != prevSent || recv != prevRecv {
					pterm.DefaultLogger.Info(formatStats(
						float64(sent-prevSent)/secs,
						float64(recv-prevRecv)/secs,
						opened-closed,
					))
				}

				prevSent = sent
				prevRecv = recv
				prevOpened = opened
				prevClosed = closed

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width (8 chars) string,
// e.g. "99.0   B", " 1.5 KiB", "98.9 GiB".
func formatBytes(b float64) string {
	unitIdx := 0

	// keeps "100.0 KiB" (9 chars) from happening
	for b > 99 && unitIdx < len(byteUnits)-1 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders one reporter line.
func formatStats(outS, inS float64, live int64) string {
	return fmt.Sprintf("Out: %s/s | In: %s/s | Peers: %d",
		formatBytes(outS),
		formatBytes(inS),
		live,
	)
}
