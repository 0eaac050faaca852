package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultBBoxBufferDeg pads degenerate bounding boxes so a zero-area box is
// never emitted.
const DefaultBBoxBufferDeg = 0.002

// metersPerDegreeLat is the local equirectangular scale used for point
// buffering; longitude is additionally scaled by cos(latitude).
const metersPerDegreeLat = 111000.0

// bufferSegments is the vertex count of the circular point buffer.
const bufferSegments = 32

// BBoxRing returns the closed axis-aligned bounding box of points. Any
// collapsed dimension is expanded by bufferDeg so the ring always has area.
// Returns nil for an empty point set.
func BBoxRing(points []orb.Point, bufferDeg float64) orb.Ring {
	if len(points) == 0 {
		return nil
	}
	if bufferDeg <= 0 {
		bufferDeg = DefaultBBoxBufferDeg
	}

	minLng, maxLng := points[0][0], points[0][0]
	minLat, maxLat := points[0][1], points[0][1]
	for _, p := range points[1:] {
		minLng = math.Min(minLng, p[0])
		maxLng = math.Max(maxLng, p[0])
		minLat = math.Min(minLat, p[1])
		maxLat = math.Max(maxLat, p[1])
	}
	if minLng == maxLng {
		minLng -= bufferDeg
		maxLng += bufferDeg
	}
	if minLat == maxLat {
		minLat -= bufferDeg
		maxLat += bufferDeg
	}

	return orb.Ring{
		{minLng, minLat},
		{maxLng, minLat},
		{maxLng, maxLat},
		{minLng, maxLat},
		{minLng, minLat},
	}
}

// BufferPoint approximates a circular buffer of radiusM meters around one
// point. The point is projected with a latitude-scaled equirectangular
// projection so the buffer stays roughly isotropic in real-world meters.
func BufferPoint(pt orb.Point, radiusM float64) orb.Ring {
	if radiusM <= 0 {
		return nil
	}
	scaleLat := metersPerDegreeLat
	scaleLng := metersPerDegreeLat * math.Max(math.Cos(pt[1]*math.Pi/180), 1e-6)

	ring := make(orb.Ring, 0, bufferSegments+1)
	for i := 0; i < bufferSegments; i++ {
		theta := 2 * math.Pi * float64(i) / bufferSegments
		ring = append(ring, orb.Point{
			pt[0] + radiusM*math.Cos(theta)/scaleLng,
			pt[1] + radiusM*math.Sin(theta)/scaleLat,
		})
	}
	ring = append(ring, ring[0])
	return ring
}

// CloseRing appends the first coordinate as the last when the ring is not
// already explicitly closed.
func CloseRing(ring orb.Ring) orb.Ring {
	if len(ring) == 0 {
		return ring
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// RingArea returns the absolute planar area of a closed ring.
func RingArea(ring orb.Ring) float64 {
	return math.Abs(planar.Area(orb.Polygon{ring}))
}

// LargestRing selects the ring with the greatest area from a set of
// disjoint candidate parts. Returns nil for an empty set.
func LargestRing(rings []orb.Ring) orb.Ring {
	var best orb.Ring
	bestArea := -1.0
	for _, r := range rings {
		if a := RingArea(r); a > bestArea {
			best, bestArea = r, a
		}
	}
	return best
}
