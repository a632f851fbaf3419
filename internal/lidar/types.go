package lidar

// Point is a single projected laser return in the output frame.
// Time is relative to the start of the sweep the point belongs to.
type Point struct {
	X         float64 // meters, output frame
	Y         float64 // meters, output frame
	Z         float64 // meters, output frame
	Azimuth   float64 // radians, [0, 2π)
	Distance  float64 // meters
	Intensity uint8   // raw laser return intensity (0-255)
	Time      float64 // seconds since sweep start
}

// Scan is one laser ring of a sweep. Points are stored in firing order,
// which is also temporal order within the ring.
type Scan struct {
	Altitude float64 // fixed vertical angle of this ring in radians
	Points   []Point
}

// Sweep is one complete 360° revolution of the sensor. Scans are indexed
// by physical ring order (bottom ring first), not by raw channel index.
type Sweep struct {
	SensorID        string
	Sequence        int64                  // decoder-assigned sweep number, starting at 1
	Scans           [SCANS_PER_FIRING]Scan // 16 rings, bottom (-15°) to top (+15°)
	Duration        float64                // seconds spanned by the sweep's firings
	DeviceTimestamp uint32                 // device µs timestamp of the packet that closed the sweep
}

// PointCount returns the total number of points across all rings.
func (s *Sweep) PointCount() int {
	total := 0
	for i := range s.Scans {
		total += len(s.Scans[i].Points)
	}
	return total
}

// Firing holds the measurements of one 16-channel firing sequence.
// A packet yields 24 firings; they are decoder scratch space and are
// overwritten on every packet.
type Firing struct {
	Azimuth     float64                   // base azimuth of the firing sequence, radians
	Azimuths    [SCANS_PER_FIRING]float64 // per-channel azimuth, radians
	Distances   [SCANS_PER_FIRING]float64 // meters (0 = no return)
	Intensities [SCANS_PER_FIRING]uint8
}
