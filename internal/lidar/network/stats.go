package network

import (
	"sync"
	"time"

	"github.com/banshee-data/puck.report/internal/monitoring"
)

// PacketStats tracks receive-path counters. Counters reset on every log
// interval so the reported figures are rates over the interval.
type PacketStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	errorCount   int64
	droppedCount int64
	sweepCount   int64
	pointCount   int64
	lastReset    time.Time
}

// NewPacketStats creates a stats collector with the reset clock started.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

// AddPacket records one received packet of the given size.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddError records a packet the decoder rejected.
func (ps *PacketStats) AddError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.errorCount++
}

// AddDropped records a packet dropped by the forwarder.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// AddSweep records one emitted sweep and its point count.
func (ps *PacketStats) AddSweep(points int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.sweepCount++
	ps.pointCount += int64(points)
}

// GetAndReset returns the counters accumulated since the previous reset and
// zeroes them.
func (ps *PacketStats) GetAndReset() (packets, bytes, errors, dropped, sweeps, points int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets, bytes = ps.packetCount, ps.byteCount
	errors, dropped = ps.errorCount, ps.droppedCount
	sweeps, points = ps.sweepCount, ps.pointCount

	ps.packetCount, ps.byteCount = 0, 0
	ps.errorCount, ps.droppedCount = 0, 0
	ps.sweepCount, ps.pointCount = 0, 0
	ps.lastReset = now

	return
}

// LogStats emits one rate line through the package logger and resets the
// counters. Silent when nothing was received, to keep idle logs quiet.
func (ps *PacketStats) LogStats() {
	packets, bytes, errors, dropped, sweeps, points, duration := ps.GetAndReset()
	if packets == 0 && errors == 0 {
		return
	}

	seconds := duration.Seconds()
	if seconds <= 0 {
		seconds = 1
	}
	monitoring.Logf("lidar rx: %d pkts (%.1f/s, %.1f KB/s), %d rejected, %d fwd-dropped, %d sweeps (%d points)",
		packets, float64(packets)/seconds, float64(bytes)/1024.0/seconds, errors, dropped, sweeps, points)
}
