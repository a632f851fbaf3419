package lidar

import (
	"encoding/binary"
	"fmt"
	"math"
)

/*
VLP-16 LiDAR Packet Parser

The Velodyne VLP-16 ("Puck") sends 1206-byte UDP payloads containing
measurements from 16 laser channels organised into 12 data blocks, each
block carrying two full 16-channel firing sequences (24 firings per packet,
up to 384 returns).

PACKET STRUCTURE (1206 bytes total):
├── Data Blocks (1200 bytes) - 12 blocks × 100 bytes each, starting at offset 0
│   └── Each block: 2-byte header (0xFFEE on the wire) + 2-byte azimuth
│       + 32 channel records × 3 bytes (distance + intensity)
└── Tail (6 bytes) - 4-byte device timestamp (µs) + 2-byte factory field

Only even-numbered firings carry an azimuth in the packet; the azimuth of
odd-numbered firings is reconstructed by interpolation (see interpolate.go).

Validation is all-or-nothing: if any block header fails the sentinel check
the whole packet is rejected and no firings are extracted.
*/

// VLP-16 packet structure constants
// These define the fixed format of UDP payloads sent by the sensor
const (
	PACKET_SIZE       = 1206                                                             // UDP payload size in bytes
	BLOCKS_PER_PACKET = 12                                                               // Data blocks per packet
	SCANS_PER_BLOCK   = 32                                                               // Channel records per block (16 channels × 2 firing sequences)
	RAW_SCAN_SIZE     = 3                                                                // Channel record size: 2 bytes distance + 1 byte intensity
	BLOCK_HEADER_SIZE = 2                                                                // Block header sentinel size
	AZIMUTH_SIZE      = 2                                                                // Azimuth field size (little-endian uint16)
	BLOCK_SIZE        = BLOCK_HEADER_SIZE + AZIMUTH_SIZE + SCANS_PER_BLOCK*RAW_SCAN_SIZE // 100 bytes per block
	TAIL_SIZE         = 6                                                                // Timestamp (4 bytes) + factory field (2 bytes)

	FIRINGS_PER_BLOCK  = 2                                     // Firing sequences per block
	SCANS_PER_FIRING   = 16                                    // Laser channels per firing sequence
	FIRINGS_PER_PACKET = BLOCKS_PER_PACKET * FIRINGS_PER_BLOCK // 24 firings per packet

	// UPPER_BANK is the block header sentinel. The wire bytes are 0xFF 0xEE,
	// which read as 0xEEFF through a little-endian uint16.
	UPPER_BANK = 0xEEFF

	// Physical measurement conversion constants
	DISTANCE_RESOLUTION = 0.002 // Distance unit: 2mm per LSB (converts raw values to meters)
	AZIMUTH_RESOLUTION  = 0.01  // Azimuth unit: 0.01 degrees per LSB
	ROTATION_MAX_UNITS  = 36000 // Raw azimuth value representing 360.00 degrees

	// Firing timing. One 16-channel firing sequence takes 55.296µs
	// (16 × 2.304µs plus recharge); channels within a sequence fire
	// 2.304µs apart. Expressed in seconds for point time offsets.
	FIRING_INTERVAL  = 55.296e-6
	CHANNEL_INTERVAL = 2.304e-6
)

// ChannelData is the raw measurement of a single laser channel.
type ChannelData struct {
	Distance  uint16 // raw distance in 2mm units (0 = no return)
	Intensity uint8  // laser return intensity (0-255)
}

// DataBlock is one of the 12 blocks in a packet: a raw azimuth plus two
// consecutive 16-channel firing sequences.
type DataBlock struct {
	Azimuth  uint16                       // raw azimuth in 0.01-degree units
	Channels [SCANS_PER_BLOCK]ChannelData // two firing sequences, channel 0 first
}

// PacketTail is the 6-byte trailer of a packet.
type PacketTail struct {
	Timestamp  uint32 // microseconds since the top of the hour
	ReturnMode uint8  // 0x37 strongest, 0x38 last, 0x39 dual
	Model      uint8  // product model (0x22 for the VLP-16)
}

// RawPacket is a fully validated, decoded packet. It is immutable input to
// the decoder; one packet is consumed entirely by one decode call.
type RawPacket struct {
	Blocks [BLOCKS_PER_PACKET]DataBlock
	Tail   PacketTail
}

// ParsePacket validates a 1206-byte VLP-16 payload and extracts its blocks
// and tail. All 12 block headers must carry the sentinel; a single mismatch
// rejects the entire packet with no partial decode.
func ParsePacket(data []byte) (*RawPacket, error) {
	if len(data) != PACKET_SIZE {
		return nil, fmt.Errorf("invalid packet size: expected %d, got %d", PACKET_SIZE, len(data))
	}

	// Validate every block header before extracting anything, so a bad
	// packet never produces partial output.
	for blockIdx := 0; blockIdx < BLOCKS_PER_PACKET; blockIdx++ {
		offset := blockIdx * BLOCK_SIZE
		header := binary.LittleEndian.Uint16(data[offset : offset+2])
		if header != UPPER_BANK {
			return nil, fmt.Errorf("invalid packet: block %d header is 0x%04X, want 0x%04X",
				blockIdx, header, uint16(UPPER_BANK))
		}
	}

	packet := &RawPacket{}
	for blockIdx := 0; blockIdx < BLOCKS_PER_PACKET; blockIdx++ {
		offset := blockIdx * BLOCK_SIZE
		block := &packet.Blocks[blockIdx]
		block.Azimuth = binary.LittleEndian.Uint16(data[offset+BLOCK_HEADER_SIZE : offset+BLOCK_HEADER_SIZE+AZIMUTH_SIZE])

		channelOffset := offset + BLOCK_HEADER_SIZE + AZIMUTH_SIZE
		for ch := 0; ch < SCANS_PER_BLOCK; ch++ {
			block.Channels[ch] = ChannelData{
				Distance:  binary.LittleEndian.Uint16(data[channelOffset : channelOffset+2]),
				Intensity: data[channelOffset+2],
			}
			channelOffset += RAW_SCAN_SIZE
		}
	}

	tailOffset := BLOCKS_PER_PACKET * BLOCK_SIZE
	packet.Tail = PacketTail{
		Timestamp:  binary.LittleEndian.Uint32(data[tailOffset : tailOffset+4]),
		ReturnMode: data[tailOffset+4],
		Model:      data[tailOffset+5],
	}

	return packet, nil
}

// rawAzimuthToRadians converts a raw 0.01-degree azimuth to radians.
func rawAzimuthToRadians(raw uint16) float64 {
	return float64(raw) * AZIMUTH_RESOLUTION * math.Pi / 180.0
}

// ExtractFirings fills the 24 firing records of a packet: distances in
// meters, intensities as-is, and the base azimuth of even-numbered firings
// taken from their block. Odd-numbered firings receive their azimuth later
// from the interpolator.
func (p *RawPacket) ExtractFirings(firings *[FIRINGS_PER_PACKET]Firing) {
	for blockIdx := 0; blockIdx < BLOCKS_PER_PACKET; blockIdx++ {
		block := &p.Blocks[blockIdx]
		firings[blockIdx*FIRINGS_PER_BLOCK].Azimuth = rawAzimuthToRadians(block.Azimuth)

		for blockFir := 0; blockFir < FIRINGS_PER_BLOCK; blockFir++ {
			firing := &firings[blockIdx*FIRINGS_PER_BLOCK+blockFir]
			for ch := 0; ch < SCANS_PER_FIRING; ch++ {
				raw := block.Channels[blockFir*SCANS_PER_FIRING+ch]
				firing.Distances[ch] = float64(raw.Distance) * DISTANCE_RESOLUTION
				firing.Intensities[ch] = raw.Intensity
			}
		}
	}
}
