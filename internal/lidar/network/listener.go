package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/puck.report/internal/monitoring"
)

// PacketStatsInterface provides packet statistics management.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddError()
	AddDropped()
	AddSweep(points int)
	LogStats()
}

// PacketDecoder consumes raw sensor payloads. A decode error means the
// packet was rejected; the stream continues with the next packet.
type PacketDecoder interface {
	DecodePacket(packet []byte) error
}

// UDPListener receives VLP-16 packets from a UDP socket and feeds them to
// the decoder, with optional asynchronous forwarding to a second consumer.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	conn        *net.UDPConn
	stats       PacketStatsInterface
	forwarder   *PacketForwarder
	decoder     PacketDecoder
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Stats       PacketStatsInterface
	Forwarder   *PacketForwarder
	Decoder     PacketDecoder
}

// NewUDPListener creates a listener from the configuration. A nil Stats
// gets a no-op implementation so the receive path never nil-checks it.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	var stats PacketStatsInterface
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		stats:       stats,
		forwarder:   config.Forwarder,
		decoder:     config.Decoder,
	}
}

// noopStats is a PacketStatsInterface that does nothing.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddError()           {}
func (n *noopStats) AddDropped()         {}
func (n *noopStats) AddSweep(points int) {}
func (n *noopStats) LogStats()           {}

// Start listens for UDP packets until the context is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		monitoring.Logf("warning: failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
	}

	monitoring.Logf("UDP listener started on %s with receive buffer %d bytes", l.address, l.rcvBuf)

	if l.forwarder != nil {
		l.forwarder.Start(ctx)
	}

	go l.startStatsLogging(ctx)

	// VLP-16 payloads are 1206 bytes; leave margin for oversized datagrams
	// so they are read, counted and rejected rather than truncated.
	buffer := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("UDP listener stopping")
			return ctx.Err()
		default:
			// Short read deadline so context cancellation is noticed.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("UDP read error: %v", err)
				continue
			}

			if err := l.handlePacket(buffer[:n]); err != nil {
				monitoring.Debugf("rejected packet from %v: %v", addr, err)
			}
		}
	}
}

// handlePacket forwards and decodes a single received payload.
func (l *UDPListener) handlePacket(packet []byte) error {
	l.stats.AddPacket(len(packet))

	if l.forwarder != nil {
		l.forwarder.ForwardAsync(packet)
	}

	if l.decoder != nil {
		if err := l.decoder.DecodePacket(packet); err != nil {
			l.stats.AddError()
			return err
		}
	}
	return nil
}

// startStatsLogging reports receive statistics on the configured interval.
// An early first report avoids a long silence after startup.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats()
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// Close closes the UDP socket.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
