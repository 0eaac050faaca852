package geom

import "github.com/paulmach/orb"

// Hull method names accepted by Synthesizer.
const (
	MethodBBox    = "bbox"
	MethodConvex  = "convex"
	MethodConcave = "concave"
)

// Synthesizer turns a point cloud into a single zone ring. When the
// requested method cannot produce a valid ring the next simpler one is
// tried: concave falls back to convex, convex falls back to the bounding
// box. Fewer than three distinct points always yields a bounding box.
type Synthesizer struct {
	Method        string
	ConcaveRatio  float64
	BBoxBufferDeg float64
}

// Synthesize returns the zone ring and the name of the method that actually
// produced it. Returns nil for an empty point set.
func (s Synthesizer) Synthesize(points []orb.Point) (orb.Ring, string) {
	if len(points) == 0 {
		return nil, ""
	}

	switch s.Method {
	case MethodConcave:
		if ring := ConcaveHull(points, s.ConcaveRatio); ring != nil {
			return ring, MethodConcave
		}
		fallthrough
	case MethodConvex:
		if ring := ConvexHull(points); ring != nil {
			return ring, MethodConvex
		}
	}
	return BBoxRing(points, s.BBoxBufferDeg), MethodBBox
}
