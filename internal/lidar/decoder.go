package lidar

import "github.com/banshee-data/puck.report/internal/monitoring"

// SweepDecoder assembles decoded packets into complete 360° sweeps.
//
// The decoder starts without an angular reference: packets are discarded
// until the first 0° crossing is observed, because the revolution in
// progress at startup can never be completed. From then on it accumulates
// firings into the current sweep and, each time the azimuth wraps past 0°,
// hands the finished sweep to the callback and starts the next one. A packet
// spans far less than one revolution, so at most one sweep is emitted per
// packet.
//
// All state lives on the decoder; independent sensors get independent
// decoders. A decoder is not safe for concurrent use.

// DefaultRingCapacity is the initial per-ring point capacity. A VLP-16 at
// 600rpm produces roughly 1800 points per ring per revolution.
const DefaultRingCapacity = 2048

// SweepHandler receives each completed sweep. The handler owns the sweep;
// the decoder allocates fresh buffers after every emission.
type SweepHandler func(*Sweep)

// SweepDecoderConfig configures a SweepDecoder.
type SweepDecoderConfig struct {
	SensorID string
	MinRange float64 // meters, inclusive; 0 means DefaultMinRange
	MaxRange float64 // meters, inclusive; 0 means DefaultMaxRange
	OnSweep  SweepHandler
	// RingCapacity is the initial per-ring point capacity; 0 means
	// DefaultRingCapacity.
	RingCapacity int
}

// SweepDecoder is the per-sensor decode session. DecodePacket is the single
// entry point; it runs parse → interpolate → project → assemble for one
// packet synchronously.
type SweepDecoder struct {
	sensorID  string
	projector Projector
	onSweep   SweepHandler
	ringCap   int

	// Scratch space, overwritten on every packet.
	firings [FIRINGS_PER_PACKET]Firing

	// Session state. awaitingReference is true until the first 0° crossing
	// has been seen; timeBase accumulates sweep-relative firing time.
	current           *Sweep
	lastAzimuth       float64
	awaitingReference bool
	timeBase          float64
	sweepCount        int64
}

// NewSweepDecoder creates a decode session with the given configuration.
func NewSweepDecoder(config SweepDecoderConfig) *SweepDecoder {
	if config.MinRange == 0 {
		config.MinRange = DefaultMinRange
	}
	if config.MaxRange == 0 {
		config.MaxRange = DefaultMaxRange
	}
	if config.RingCapacity == 0 {
		config.RingCapacity = DefaultRingCapacity
	}

	d := &SweepDecoder{
		sensorID:          config.SensorID,
		projector:         Projector{MinRange: config.MinRange, MaxRange: config.MaxRange},
		onSweep:           config.OnSweep,
		ringCap:           config.RingCapacity,
		awaitingReference: true,
	}
	d.current = d.newSweep()
	return d
}

// Reset returns the decoder to its initial state: no angular reference,
// empty buffers, zero time base. Sweep numbering continues.
func (d *SweepDecoder) Reset() {
	d.awaitingReference = true
	d.lastAzimuth = 0
	d.timeBase = 0
	d.clearSweep()
}

// newSweep allocates a sweep with empty rings and their fixed altitudes.
func (d *SweepDecoder) newSweep() *Sweep {
	s := &Sweep{SensorID: d.sensorID}
	for ch := 0; ch < SCANS_PER_FIRING; ch++ {
		s.Scans[scanRingIndex[ch]].Altitude = scanAltitude[ch]
		s.Scans[scanRingIndex[ch]].Points = make([]Point, 0, d.ringCap)
	}
	return s
}

// clearSweep empties the ring buffers in place, keeping their backing
// arrays for reuse.
func (d *SweepDecoder) clearSweep() {
	for i := range d.current.Scans {
		d.current.Scans[i].Points = d.current.Scans[i].Points[:0]
	}
}

// DecodePacket processes one 1206-byte packet. A malformed packet returns
// an error and mutates no state; a well-formed packet may emit at most one
// completed sweep through the callback.
func (d *SweepDecoder) DecodePacket(data []byte) error {
	packet, err := ParsePacket(data)
	if err != nil {
		return err
	}

	packet.ExtractFirings(&d.firings)
	interpolateAzimuths(&d.firings)

	// Scan for the 0° crossing: the first firing whose azimuth drops below
	// the running last azimuth starts a new revolution.
	newSweepStart := 0
	for newSweepStart < FIRINGS_PER_PACKET {
		if d.firings[newSweepStart].Azimuth < d.lastAzimuth {
			break
		}
		d.lastAzimuth = d.firings[newSweepStart].Azimuth
		newSweepStart++
	}

	if d.awaitingReference {
		if newSweepStart == FIRINGS_PER_PACKET {
			// Still inside the unobservable partial revolution.
			return nil
		}
		// First 0° crossing: the firings before it belong to the partial
		// revolution and are dropped; the rest open the first sweep.
		d.awaitingReference = false
		monitoring.Logf("lidar: azimuth reference found, assembling sweeps for sensor %q", d.sensorID)
		d.projectFirings(newSweepStart, FIRINGS_PER_PACKET)
		d.timeBase += FIRING_INTERVAL * float64(FIRINGS_PER_PACKET-newSweepStart)
		d.lastAzimuth = d.firings[FIRINGS_PER_PACKET-1].Azimuth
		return nil
	}

	// Firings up to the crossing (or the whole packet) extend the current
	// sweep.
	d.projectFirings(0, newSweepStart)

	if newSweepStart == FIRINGS_PER_PACKET {
		d.timeBase += FIRING_INTERVAL * FIRINGS_PER_PACKET
		return nil
	}

	// Revolution complete: hand the sweep over and start the next one with
	// the remainder of the packet.
	d.emit(newSweepStart, packet.Tail.Timestamp)

	d.timeBase = 0
	d.lastAzimuth = d.firings[FIRINGS_PER_PACKET-1].Azimuth
	d.projectFirings(newSweepStart, FIRINGS_PER_PACKET)
	d.timeBase += FIRING_INTERVAL * float64(FIRINGS_PER_PACKET-newSweepStart)

	return nil
}

// projectFirings projects the valid samples of firings [start, end) into
// the current sweep's rings. Point times use the firing's index within the
// packet on top of the running time base.
func (d *SweepDecoder) projectFirings(start, end int) {
	for firingIdx := start; firingIdx < end; firingIdx++ {
		firing := &d.firings[firingIdx]
		for ch := 0; ch < SCANS_PER_FIRING; ch++ {
			point, ring, ok := d.projector.Project(firing, firingIdx, ch, d.timeBase)
			if !ok {
				continue
			}
			d.current.Scans[ring].Points = append(d.current.Scans[ring].Points, point)
		}
	}
}

// emit finishes the current sweep and passes ownership to the callback.
// boundary is the index of the first firing of the next revolution.
func (d *SweepDecoder) emit(boundary int, deviceTimestamp uint32) {
	d.sweepCount++
	finished := d.current
	finished.Sequence = d.sweepCount
	finished.Duration = d.timeBase + FIRING_INTERVAL*float64(boundary)
	finished.DeviceTimestamp = deviceTimestamp

	// The callback keeps the sweep, so the next one needs fresh backing
	// arrays rather than a clear-in-place.
	d.current = d.newSweep()

	if d.onSweep != nil {
		d.onSweep(finished)
	}
}
