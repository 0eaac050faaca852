package geom

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ConvexHull computes the convex hull of points with Andrew's monotone
// chain, returning a closed counter-clockwise ring. Returns nil when the
// distinct points are fewer than 3 or are collinear (no area to enclose);
// callers degrade to a bounding box in that case.
func ConvexHull(points []orb.Point) orb.Ring {
	pts := dedupe(points)
	if len(pts) < 3 {
		return nil
	}

	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	var lower, upper []orb.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil // collinear input
	}
	return CloseRing(orb.Ring(hull))
}

// ConcaveHull computes a concave hull (Moreira-Santos k-nearest-neighbors
// walk). ratio in [0,1] controls concavity the way shapely's concave_hull
// does: 1 behaves like the convex hull, smaller values hug the points
// tighter. The walk retries with a larger neighborhood until every input
// point is enclosed; nil is returned when no simple enclosing ring is found,
// and callers degrade to the convex hull.
func ConcaveHull(points []orb.Point, ratio float64) orb.Ring {
	pts := dedupe(points)
	n := len(pts)
	if n < 3 {
		return nil
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	k := 3 + int(math.Round(ratio*float64(n-3)))
	for ; k < n; k++ {
		if ring := knnHull(pts, k); ring != nil {
			return ring
		}
	}
	return nil
}

// knnHull runs one Moreira-Santos walk with neighborhood size k.
func knnHull(pts []orb.Point, k int) orb.Ring {
	n := len(pts)
	if k >= n {
		return nil
	}

	// Start at the lowest point (min lat, tie-break min lng).
	startIdx := 0
	for i, p := range pts {
		if p[1] < pts[startIdx][1] || (p[1] == pts[startIdx][1] && p[0] < pts[startIdx][0]) {
			startIdx = i
		}
	}
	start := pts[startIdx]

	remaining := make([]orb.Point, 0, n-1)
	remaining = append(remaining, pts[:startIdx]...)
	remaining = append(remaining, pts[startIdx+1:]...)

	hull := orb.Ring{start}
	current := start
	prevAngle := 0.0

	for step := 1; ; step++ {
		if step > n*2 {
			return nil // walk is not terminating; widen the neighborhood
		}
		// The start point becomes a legal target again once the hull is
		// long enough to close without degenerating.
		candidates := remaining
		if step > 3 {
			candidates = append(append([]orb.Point{}, remaining...), start)
		}
		if len(candidates) == 0 {
			return nil
		}

		neighbors := nearest(candidates, current, k)
		sortByRightHandTurn(neighbors, current, prevAngle)

		var next *orb.Point
		for i := range neighbors {
			cand := neighbors[i]
			if cand == start && len(hull) > 3 {
				next = &neighbors[i]
				break
			}
			if !intersectsHull(hull, current, cand) {
				next = &neighbors[i]
				break
			}
		}
		if next == nil {
			return nil
		}

		if *next == start {
			ring := CloseRing(hull)
			if RingArea(ring) == 0 || !containsAll(ring, pts) {
				return nil
			}
			return ring
		}

		hull = append(hull, *next)
		prevAngle = math.Atan2(current[1]-(*next)[1], current[0]-(*next)[0])
		current = *next
		remaining = remove(remaining, *next)
	}
}

func dedupe(points []orb.Point) []orb.Point {
	seen := make(map[orb.Point]struct{}, len(points))
	out := make([]orb.Point, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// cross returns the z-component of (b-a) x (c-a); positive for a left turn.
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func nearest(candidates []orb.Point, from orb.Point, k int) []orb.Point {
	sorted := append([]orb.Point{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		return planar.DistanceSquared(sorted[i], from) < planar.DistanceSquared(sorted[j], from)
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// sortByRightHandTurn orders neighbors by descending clockwise angle from
// the previous direction, so the walk keeps the point cloud on its right.
func sortByRightHandTurn(neighbors []orb.Point, current orb.Point, prevAngle float64) {
	angle := func(p orb.Point) float64 {
		a := math.Atan2(p[1]-current[1], p[0]-current[0]) - prevAngle
		for a < 0 {
			a += 2 * math.Pi
		}
		return a
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return angle(neighbors[i]) > angle(neighbors[j])
	})
}

// intersectsHull reports whether segment current→cand crosses any existing
// hull edge (sharing an endpoint does not count).
func intersectsHull(hull orb.Ring, current, cand orb.Point) bool {
	for i := 0; i+1 < len(hull); i++ {
		a, b := hull[i], hull[i+1]
		if a == current || b == current || a == cand || b == cand {
			continue
		}
		if segmentsIntersect(a, b, current, cand) {
			return true
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func containsAll(ring orb.Ring, pts []orb.Point) bool {
	poly := orb.Polygon{ring}
	for _, p := range pts {
		if !planar.PolygonContains(poly, p) && !onRing(ring, p) {
			return false
		}
	}
	return true
}

// onRing reports whether p lies on one of the ring's edges.
func onRing(ring orb.Ring, p orb.Point) bool {
	const eps = 1e-12
	for i := 0; i+1 < len(ring); i++ {
		a, b := ring[i], ring[i+1]
		if math.Abs(cross(a, b, p)) > eps {
			continue
		}
		if p[0] >= math.Min(a[0], b[0])-eps && p[0] <= math.Max(a[0], b[0])+eps &&
			p[1] >= math.Min(a[1], b[1])-eps && p[1] <= math.Max(a[1], b[1])+eps {
			return true
		}
	}
	return false
}

func remove(pts []orb.Point, target orb.Point) []orb.Point {
	for i, p := range pts {
		if p == target {
			return append(pts[:i], pts[i+1:]...)
		}
	}
	return pts
}
