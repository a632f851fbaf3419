package network

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

func TestNewPacketForwarder_InvalidAddress(t *testing.T) {
	_, err := NewPacketForwarder("invalid-host-12345", 2370, nil, time.Minute)
	if err == nil {
		t.Error("Expected error for invalid address, got nil")
	}
}

func TestForwardAsync_CopiesPacket(t *testing.T) {
	forwarder, err := NewPacketForwarder("127.0.0.1", 19220, nil, time.Minute)
	if err != nil {
		t.Fatalf("NewPacketForwarder: %v", err)
	}
	defer forwarder.Close()

	packet := []byte{1, 2, 3, 4}
	forwarder.ForwardAsync(packet)

	// Mutate the caller's buffer: the queued copy must be unaffected.
	packet[0] = 99

	select {
	case queued := <-forwarder.channel:
		if !bytes.Equal(queued, []byte{1, 2, 3, 4}) {
			t.Errorf("queued packet = %v, want [1 2 3 4]", queued)
		}
	default:
		t.Fatal("Expected a queued packet")
	}
}

func TestForwardAsync_DropsWhenFull(t *testing.T) {
	stats := &MockPacketStats{}
	forwarder, err := NewPacketForwarder("127.0.0.1", 19221, stats, time.Minute)
	if err != nil {
		t.Fatalf("NewPacketForwarder: %v", err)
	}
	defer forwarder.Close()

	// Fill the buffer without a running forwarding goroutine.
	for i := 0; i < cap(forwarder.channel); i++ {
		forwarder.ForwardAsync([]byte{0})
	}
	if stats.droppedCnt != 0 {
		t.Fatalf("Expected no drops while filling, got %d", stats.droppedCnt)
	}

	forwarder.ForwardAsync([]byte{0})
	if stats.droppedCnt != 1 {
		t.Errorf("Expected 1 dropped packet, got %d", stats.droppedCnt)
	}
}

func TestForwarder_DeliversPackets(t *testing.T) {
	// Stand up a receiver socket on an ephemeral port.
	receiver, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to create receiver: %v", err)
	}
	defer receiver.Close()
	port := receiver.LocalAddr().(*net.UDPAddr).Port

	forwarder, err := NewPacketForwarder("127.0.0.1", port, nil, time.Hour)
	if err != nil {
		t.Fatalf("NewPacketForwarder: %v", err)
	}
	defer forwarder.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	forwarder.Start(ctx)

	sent := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	forwarder.ForwardAsync(sent)

	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	buffer := make([]byte, 64)
	n, _, err := receiver.ReadFromUDP(buffer)
	if err != nil {
		t.Fatalf("failed to receive forwarded packet: %v", err)
	}
	if !bytes.Equal(buffer[:n], sent) {
		t.Errorf("forwarded packet = %v, want %v", buffer[:n], sent)
	}
}
