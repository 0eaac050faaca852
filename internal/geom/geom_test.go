package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func assertClosed(t *testing.T, ring orb.Ring) {
	t.Helper()
	if len(ring) < 4 {
		t.Fatalf("ring too short: %d points", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		t.Fatalf("ring not closed: first %v last %v", ring[0], ring[len(ring)-1])
	}
}

func TestBBoxRing(t *testing.T) {
	pts := []orb.Point{{120.5, 31.3}, {120.7, 31.2}, {120.6, 31.5}}
	ring := BBoxRing(pts, 0)

	assertClosed(t, ring)
	if got := RingArea(ring); got == 0 {
		t.Fatal("bbox must have area")
	}
	for _, p := range pts {
		if !planar.PolygonContains(orb.Polygon{ring}, p) {
			t.Errorf("point %v outside bbox", p)
		}
	}
}

func TestBBoxRingDegenerate(t *testing.T) {
	tests := []struct {
		name string
		pts  []orb.Point
	}{
		{"single point", []orb.Point{{120.5, 31.3}}},
		{"horizontal line", []orb.Point{{120.5, 31.3}, {120.7, 31.3}}},
		{"vertical line", []orb.Point{{120.5, 31.3}, {120.5, 31.6}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ring := BBoxRing(tt.pts, 0.002)
			assertClosed(t, ring)
			if RingArea(ring) == 0 {
				t.Fatal("degenerate input must still produce a ring with area")
			}
		})
	}
}

func TestBBoxRingEmpty(t *testing.T) {
	if BBoxRing(nil, 0) != nil {
		t.Fatal("empty input must yield nil")
	}
}

func TestConvexHullDropsInteriorPoints(t *testing.T) {
	pts := []orb.Point{
		{0, 0}, {4, 0}, {4, 4}, {0, 4}, // square
		{2, 2}, {1, 3}, // interior
	}
	ring := ConvexHull(pts)
	assertClosed(t, ring)
	if len(ring) != 5 {
		t.Fatalf("want 4 corners + closure, got %d points", len(ring))
	}
	if got, want := RingArea(ring), 16.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("area = %v, want %v", got, want)
	}
}

func TestConvexHullDegenerate(t *testing.T) {
	tests := []struct {
		name string
		pts  []orb.Point
	}{
		{"two points", []orb.Point{{0, 0}, {1, 1}}},
		{"collinear", []orb.Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}},
		{"duplicates", []orb.Point{{1, 1}, {1, 1}, {1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ring := ConvexHull(tt.pts); ring != nil {
				t.Fatalf("want nil, got %v", ring)
			}
		})
	}
}

func TestConcaveHullContainsAllPoints(t *testing.T) {
	// Irregular cloud, no collinear runs.
	pts := []orb.Point{
		{0.1, 0.2}, {2.3, 0.4}, {4.1, 1.1}, {4.8, 3.2}, {3.9, 4.7},
		{1.8, 4.9}, {0.3, 3.6}, {1.2, 2.1}, {2.7, 2.8}, {3.3, 1.9},
	}
	ring := ConcaveHull(pts, 0.5)
	if ring == nil {
		// The walk found no simple enclosing ring; the synthesizer
		// degrades to convex in that case.
		if ConvexHull(pts) == nil {
			t.Fatal("convex fallback must exist")
		}
		t.Skip("no concave ring at this ratio")
	}
	assertClosed(t, ring)
	poly := orb.Polygon{ring}
	for _, p := range pts {
		if !planar.PolygonContains(poly, p) && !onRing(ring, p) {
			t.Errorf("point %v not enclosed", p)
		}
	}
}

func TestConcaveHullTightensOnLowRatio(t *testing.T) {
	// An L-shaped cloud: a convex hull spans the empty quadrant, a concave
	// hull with a small ratio should not add area beyond the convex one.
	var pts []orb.Point
	for i := 0; i <= 10; i++ {
		pts = append(pts, orb.Point{float64(i), 0}, orb.Point{float64(i), 1})
		pts = append(pts, orb.Point{0, float64(i)}, orb.Point{1, float64(i)})
	}
	concave := ConcaveHull(pts, 0.1)
	if concave == nil {
		t.Skip("walk found no simple ring at this ratio; degradation covers this")
	}
	convex := ConvexHull(pts)
	if ca, va := RingArea(concave), RingArea(convex); ca > va+1e-9 {
		t.Fatalf("concave area %v exceeds convex area %v", ca, va)
	}
}

func TestConcaveHullTooFewPoints(t *testing.T) {
	if ring := ConcaveHull([]orb.Point{{0, 0}, {1, 0}}, 0.5); ring != nil {
		t.Fatalf("want nil, got %v", ring)
	}
}

func TestBufferPointRing(t *testing.T) {
	ring := BufferPoint(orb.Point{120.5, 31.3}, 300)
	assertClosed(t, ring)
	if len(ring) != bufferSegments+1 {
		t.Fatalf("want %d points, got %d", bufferSegments+1, len(ring))
	}

	// Latitude radius is radius/111000 degrees regardless of longitude scale.
	wantLatSpan := 2 * 300.0 / metersPerDegreeLat
	minLat, maxLat := ring[0][1], ring[0][1]
	for _, p := range ring {
		minLat = math.Min(minLat, p[1])
		maxLat = math.Max(maxLat, p[1])
	}
	if got := maxLat - minLat; math.Abs(got-wantLatSpan) > 1e-6 {
		t.Fatalf("lat span = %v, want %v", got, wantLatSpan)
	}
}

func TestBufferPointNonPositiveRadius(t *testing.T) {
	if BufferPoint(orb.Point{0, 0}, 0) != nil {
		t.Fatal("zero radius must yield nil")
	}
}

func TestCloseRing(t *testing.T) {
	open := orb.Ring{{0, 0}, {1, 0}, {1, 1}}
	closed := CloseRing(open)
	assertClosed(t, closed)
	if again := CloseRing(closed); len(again) != len(closed) {
		t.Fatal("closing an already closed ring must be a no-op")
	}
}

func TestLargestRing(t *testing.T) {
	small := CloseRing(orb.Ring{{0, 0}, {1, 0}, {1, 1}})
	big := CloseRing(orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	if got := LargestRing([]orb.Ring{small, big}); RingArea(got) != RingArea(big) {
		t.Fatal("largest ring not selected")
	}
	if LargestRing(nil) != nil {
		t.Fatal("empty set must yield nil")
	}
}

func TestSynthesizeDegradation(t *testing.T) {
	square := []orb.Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {2, 2}}
	collinear := []orb.Point{{0, 0}, {1, 1}, {2, 2}}
	pair := []orb.Point{{0, 0}, {1, 1}}

	tests := []struct {
		name       string
		method     string
		pts        []orb.Point
		wantMethod string
	}{
		{"bbox stays bbox", MethodBBox, square, MethodBBox},
		{"convex on square", MethodConvex, square, MethodConvex},
		{"convex degrades on collinear", MethodConvex, collinear, MethodBBox},
		{"concave degrades on pair", MethodConcave, pair, MethodBBox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Synthesizer{Method: tt.method, ConcaveRatio: 0.5}
			ring, method := s.Synthesize(tt.pts)
			if method != tt.wantMethod {
				t.Fatalf("method = %q, want %q", method, tt.wantMethod)
			}
			assertClosed(t, ring)
			if RingArea(ring) == 0 {
				t.Fatal("synthesized ring must have area")
			}
		})
	}

	if ring, method := (Synthesizer{Method: MethodConvex}).Synthesize(nil); ring != nil || method != "" {
		t.Fatal("empty input must yield nil ring")
	}
}
