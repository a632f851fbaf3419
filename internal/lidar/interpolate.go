package lidar

import "math"

// The packet carries one azimuth per block, shared by the block's first
// firing sequence. The second sequence of each block has no azimuth of its
// own: the sensor keeps rotating between sequences, so the missing angles
// are reconstructed by interpolating between the neighbouring measured ones.

const twoPi = 2 * math.Pi

// interpolateAzimuths fills in the base azimuth of odd-numbered firings and
// the per-channel azimuths of every firing.
//
// Odd firing i takes the midpoint of its even neighbours i-1 and i+1, with
// a +2π correction when the forward neighbour has wrapped past 0°. Firing 23
// has no forward neighbour and extrapolates using the delta between firings
// 20 and 22.
//
// Within a firing sequence the channels fire 2.304µs apart while the head
// keeps rotating, so each channel's azimuth advances by the corresponding
// fraction of the delta to the next firing's base azimuth.
func interpolateAzimuths(firings *[FIRINGS_PER_PACKET]Firing) {
	for i := 1; i < FIRINGS_PER_PACKET; i += 2 {
		left, right := i-1, i+1
		if i == FIRINGS_PER_PACKET-1 {
			left, right = i-3, i-1
		}

		diff := firings[right].Azimuth - firings[left].Azimuth
		if diff < 0 {
			diff += twoPi
		}

		azimuth := firings[i-1].Azimuth + diff/2
		if azimuth > twoPi {
			azimuth -= twoPi
		}
		firings[i].Azimuth = azimuth
	}

	for i := 0; i < FIRINGS_PER_PACKET; i++ {
		var localDelta float64
		if i < FIRINGS_PER_PACKET-1 {
			localDelta = firings[i+1].Azimuth - firings[i].Azimuth
		} else {
			localDelta = firings[i].Azimuth - firings[i-1].Azimuth
		}

		for ch := 0; ch < SCANS_PER_FIRING; ch++ {
			azimuth := firings[i].Azimuth + float64(ch)*(CHANNEL_INTERVAL/FIRING_INTERVAL)*localDelta
			firings[i].Azimuths[ch] = wrapAzimuth(azimuth)
		}
	}
}

// wrapAzimuth normalises an angle into [0, 2π).
func wrapAzimuth(azimuth float64) float64 {
	if azimuth >= twoPi {
		azimuth -= twoPi
	} else if azimuth < 0 {
		azimuth += twoPi
	}
	return azimuth
}
