package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/puck.report/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// MockPacketStats implements PacketStatsInterface for testing. It is
// mutex-guarded because the listener calls it from its own goroutine.
type MockPacketStats struct {
	mu          sync.Mutex
	packetCount int
	byteCount   int
	errorCount  int
	droppedCnt  int
	sweepCount  int
	pointCount  int
	logCalls    int
}

func (m *MockPacketStats) AddPacket(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packetCount++
	m.byteCount += bytes
}

func (m *MockPacketStats) AddError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount++
}

func (m *MockPacketStats) AddDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedCnt++
}

func (m *MockPacketStats) AddSweep(points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepCount++
	m.pointCount += points
}

func (m *MockPacketStats) LogStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logCalls++
}

func (m *MockPacketStats) Packets() (count, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packetCount, m.byteCount
}

func (m *MockPacketStats) Errors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCount
}

// MockDecoder implements PacketDecoder for testing.
type MockDecoder struct {
	mu        sync.Mutex
	callCount int
	lastLen   int
	decodeErr error
}

func (m *MockDecoder) DecodePacket(packet []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastLen = len(packet)
	return m.decodeErr
}

func (m *MockDecoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func TestNewUDPListener_Defaults(t *testing.T) {
	listener := NewUDPListener(UDPListenerConfig{
		Address: ":2368",
		RcvBuf:  1024 * 1024,
	})

	if listener == nil {
		t.Fatal("NewUDPListener returned nil")
	}
	if listener.address != ":2368" {
		t.Errorf("Expected address ':2368', got '%s'", listener.address)
	}
	if listener.rcvBuf != 1024*1024 {
		t.Errorf("Expected rcvBuf %d, got %d", 1024*1024, listener.rcvBuf)
	}
	if listener.logInterval != time.Minute {
		t.Errorf("Expected default log interval 1 minute, got %v", listener.logInterval)
	}
	// stats should be noopStats by default
	if listener.stats == nil {
		t.Error("Expected default noop stats, got nil")
	}
}

func TestNewUDPListener_WithStats(t *testing.T) {
	stats := &MockPacketStats{}
	listener := NewUDPListener(UDPListenerConfig{
		Address:     ":2368",
		RcvBuf:      1024 * 1024,
		Stats:       stats,
		LogInterval: 30 * time.Second,
	})

	if listener.stats != stats {
		t.Error("Expected custom stats to be used")
	}
	if listener.logInterval != 30*time.Second {
		t.Errorf("Expected log interval 30s, got %v", listener.logInterval)
	}
}

func TestHandlePacket_Decodes(t *testing.T) {
	stats := &MockPacketStats{}
	decoder := &MockDecoder{}
	listener := NewUDPListener(UDPListenerConfig{
		Address: ":2368",
		Stats:   stats,
		Decoder: decoder,
	})

	if err := listener.handlePacket(make([]byte, 1206)); err != nil {
		t.Fatalf("handlePacket error: %v", err)
	}

	count, bytes := stats.Packets()
	if count != 1 || bytes != 1206 {
		t.Errorf("Expected 1 packet of 1206 bytes counted, got %d/%d", count, bytes)
	}
	if decoder.Calls() != 1 {
		t.Errorf("Expected 1 decode call, got %d", decoder.Calls())
	}
	if decoder.lastLen != 1206 {
		t.Errorf("Expected decoder to see 1206 bytes, got %d", decoder.lastLen)
	}
}

func TestHandlePacket_DecodeErrorCounted(t *testing.T) {
	stats := &MockPacketStats{}
	decoder := &MockDecoder{decodeErr: errors.New("bad block header")}
	listener := NewUDPListener(UDPListenerConfig{
		Address: ":2368",
		Stats:   stats,
		Decoder: decoder,
	})

	if err := listener.handlePacket(make([]byte, 100)); err == nil {
		t.Fatal("Expected decode error to propagate")
	}
	if stats.Errors() != 1 {
		t.Errorf("Expected 1 error counted, got %d", stats.Errors())
	}
	// The packet is still counted as received.
	if count, _ := stats.Packets(); count != 1 {
		t.Errorf("Expected rejected packet to be counted, got %d", count)
	}
}

func TestHandlePacket_NilDecoder(t *testing.T) {
	stats := &MockPacketStats{}
	listener := NewUDPListener(UDPListenerConfig{
		Address: ":2368",
		Stats:   stats,
	})

	// Receive-only mode (forwarding without decoding) must not panic.
	if err := listener.handlePacket(make([]byte, 1206)); err != nil {
		t.Fatalf("handlePacket error: %v", err)
	}
	if count, _ := stats.Packets(); count != 1 {
		t.Errorf("Expected 1 packet counted, got %d", count)
	}
}

func TestUDPListener_ReceiveAndDecode(t *testing.T) {
	stats := &MockPacketStats{}
	decoder := &MockDecoder{}
	listener := NewUDPListener(UDPListenerConfig{
		Address:     "127.0.0.1:19210",
		RcvBuf:      65536,
		LogInterval: time.Hour,
		Stats:       stats,
		Decoder:     decoder,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Start(ctx) }()

	// Give the listener time to bind.
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("udp", "127.0.0.1:19210")
	if err != nil {
		t.Fatalf("failed to dial listener: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(make([]byte, 1206)); err != nil {
		t.Fatalf("failed to send packet: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for decoder.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit after cancellation")
	}

	if decoder.Calls() != 1 {
		t.Errorf("Expected 1 decoded packet, got %d", decoder.Calls())
	}
	if count, bytes := stats.Packets(); count != 1 || bytes != 1206 {
		t.Errorf("Expected 1 packet of 1206 bytes counted, got %d/%d", count, bytes)
	}
}

func TestUDPListener_Close_Nil(t *testing.T) {
	listener := &UDPListener{}

	// Close with nil connection should not error
	if err := listener.Close(); err != nil {
		t.Errorf("Close with nil conn returned error: %v", err)
	}
}

func TestNoopStats(t *testing.T) {
	stats := &noopStats{}

	// These should all be no-ops and not panic
	stats.AddPacket(100)
	stats.AddError()
	stats.AddDropped()
	stats.AddSweep(50)
	stats.LogStats()
}
