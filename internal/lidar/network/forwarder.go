package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/puck.report/internal/monitoring"
)

// DropCounter records packets the forwarder could not deliver.
type DropCounter interface {
	AddDropped()
}

// PacketForwarder relays received packets to a secondary consumer (for
// example a LidarView instance watching the live stream) without blocking
// the receive loop. Packets are dropped when the buffer is full.
type PacketForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	stats       DropCounter
	logInterval time.Duration
	address     string
}

// NewPacketForwarder creates a forwarder sending to addr:port.
func NewPacketForwarder(addr string, port int, stats DropCounter, logInterval time.Duration) (*PacketForwarder, error) {
	forwardAddress := fmt.Sprintf("%s:%d", addr, port)
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, forwardUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		stats:       stats,
		logInterval: logInterval,
		address:     forwardAddress,
	}, nil
}

// Start launches the forwarding goroutine. Send failures are counted and
// reported once per log interval rather than per packet.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		failedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet := <-f.channel:
				if _, err := f.conn.Write(packet); err != nil {
					failedCount++
					lastError = err
				}
			case <-ticker.C:
				if failedCount > 0 && lastError != nil {
					monitoring.Logf("dropped %d forwarded packets due to errors (latest: %v)", failedCount, lastError)
					failedCount = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("forwarding packets to %s", f.address)
}

// ForwardAsync queues a packet for forwarding without blocking. The packet
// is copied because the caller reuses its receive buffer.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		if f.stats != nil {
			f.stats.AddDropped()
		}
	}
}

// Close closes the forwarding socket.
func (f *PacketForwarder) Close() error {
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
