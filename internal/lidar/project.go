package lidar

import "math"

// Default range gate, matching the sensor's useful envelope.
const (
	DefaultMinRange = 0.5   // meters
	DefaultMaxRange = 100.0 // meters
)

// scanAltitudeDeg lists the fixed vertical angles of the 16 channels in the
// hardware firing order: the channels alternate between the lower and upper
// halves of the ±15° fan.
var scanAltitudeDeg = [SCANS_PER_FIRING]float64{
	-15, 1, -13, 3, -11, 5, -9, 7, -7, 9, -5, 11, -3, 13, -1, 15,
}

// Derived constant tables, indexed by raw channel index.
var (
	scanAltitude    [SCANS_PER_FIRING]float64 // radians
	cosScanAltitude [SCANS_PER_FIRING]float64
	sinScanAltitude [SCANS_PER_FIRING]float64

	// scanRingIndex maps a raw channel index to its physical ring:
	// even channels fill rings 0-7 (lower fan), odd channels rings 8-15.
	scanRingIndex [SCANS_PER_FIRING]int

	// ringScanIndex is the inverse permutation: physical ring to raw channel.
	ringScanIndex [SCANS_PER_FIRING]int
)

func init() {
	for ch := 0; ch < SCANS_PER_FIRING; ch++ {
		scanAltitude[ch] = scanAltitudeDeg[ch] * math.Pi / 180.0
		cosScanAltitude[ch] = math.Cos(scanAltitude[ch])
		sinScanAltitude[ch] = math.Sin(scanAltitude[ch])

		if ch%2 == 0 {
			scanRingIndex[ch] = ch / 2
		} else {
			scanRingIndex[ch] = ch/2 + 8
		}
		ringScanIndex[scanRingIndex[ch]] = ch
	}
}

// RingAltitude returns the vertical angle (radians) of a physical ring, or 0
// for a ring outside [0, 16).
func RingAltitude(ring int) float64 {
	if ring < 0 || ring >= SCANS_PER_FIRING {
		return 0
	}
	return scanAltitude[ringScanIndex[ring]]
}

// Projector converts range/azimuth/channel samples into Cartesian points.
// Samples outside the [MinRange, MaxRange] gate are skipped, not errors.
type Projector struct {
	MinRange float64 // meters, inclusive
	MaxRange float64 // meters, inclusive
}

// inRange reports whether a distance passes the range gate.
func (pr *Projector) inRange(distance float64) bool {
	return distance >= pr.MinRange && distance <= pr.MaxRange
}

// Project converts one channel sample of a firing into a Point. The
// returned ring is the physical scan line the point belongs to. ok is false
// when the sample fails the range gate.
//
// The sensor-native frame has x toward the laser origin at azimuth 90° and
// y at azimuth 0°; the output frame rotates that so x points along azimuth
// 0° with y inverted, z unchanged.
func (pr *Projector) Project(firing *Firing, firingIdx, ch int, timeBase float64) (point Point, ring int, ok bool) {
	distance := firing.Distances[ch]
	if !pr.inRange(distance) {
		return Point{}, 0, false
	}

	azimuth := firing.Azimuths[ch]
	sinAzimuth, cosAzimuth := math.Sincos(azimuth)

	x := distance * cosScanAltitude[ch] * sinAzimuth
	y := distance * cosScanAltitude[ch] * cosAzimuth
	z := distance * sinScanAltitude[ch]

	point = Point{
		X:         y,
		Y:         -x,
		Z:         z,
		Azimuth:   azimuth,
		Distance:  distance,
		Intensity: firing.Intensities[ch],
		Time:      timeBase + float64(firingIdx)*FIRING_INTERVAL + float64(ch)*CHANNEL_INTERVAL,
	}
	return point, scanRingIndex[ch], true
}
