//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/puck.report/internal/monitoring"
)

// ReadPCAPFile replays captured sensor traffic from a PCAP file through the
// same decode path as live UDP. Only packets on udpPort are considered.
// This function is only available when building with the 'pcap' build tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, decoder PacketDecoder, stats PacketStatsInterface, forwarder *PacketForwarder) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filterStr, err)
	}
	monitoring.Logf("PCAP BPF filter set: %s", filterStr)

	if forwarder != nil {
		forwarder.Start(ctx)
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	rejectedCount := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("PCAP reader stopping (processed %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				elapsed := time.Since(startTime)
				monitoring.Logf("PCAP replay complete: %d packets in %v (%d rejected)", packetCount, elapsed, rejectedCount)
				return nil
			}

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok {
				continue
			}

			payload := udp.Payload
			if len(payload) == 0 {
				continue
			}

			packetCount++
			if stats != nil {
				stats.AddPacket(len(payload))
			}

			if forwarder != nil {
				forwarder.ForwardAsync(payload)
			}

			if decoder != nil {
				if err := decoder.DecodePacket(payload); err != nil {
					rejectedCount++
					if stats != nil {
						stats.AddError()
					}
					monitoring.Debugf("PCAP packet %d rejected: %v", packetCount, err)
				}
			}
		}
	}
}
