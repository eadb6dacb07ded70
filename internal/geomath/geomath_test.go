package geomath

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// meterInDegrees converts meters to latitude degrees. Longitude degrees
// shrink with cos(lat), so east-west offsets at the test latitude use
// the stretched lonMeterInDegrees instead.
const meterInDegrees = 180 / (math.Pi * earthRadiusInMeters)

var lonMeterInDegrees = meterInDegrees / math.Cos(47*math.Pi/180)

func TestDistanceMeters(t *testing.T) {
	zurich := orb.Point{8.540192, 47.378177}
	bern := orb.Point{7.447447, 46.947974}

	t.Run("ZeroIdentity", func(t *testing.T) {
		if d := DistanceMeters(zurich, zurich); d != 0 {
			t.Errorf("expected zero distance to self, got %v", d)
		}
	})

	t.Run("Symmetry", func(t *testing.T) {
		ab := DistanceMeters(zurich, bern)
		ba := DistanceMeters(bern, zurich)
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("distance not symmetric: %v vs %v", ab, ba)
		}
		if ab < 0 {
			t.Errorf("distance must be non-negative, got %v", ab)
		}
	})

	t.Run("KnownDistance", func(t *testing.T) {
		// Zurich HB to Bern is roughly 95 km great-circle.
		got := DistanceMeters(zurich, bern)
		if got < 94_000 || got > 97_000 {
			t.Errorf("expected ~95km between Zurich and Bern, got %v", got)
		}
	})
}

func TestPointToSegmentDistanceMeters(t *testing.T) {
	t.Run("DegenerateSegment", func(t *testing.T) {
		p := orb.Point{8.54, 47.38}
		s := orb.Point{8.55, 47.39}
		got := PointToSegmentDistanceMeters(p, s, s)
		want := DistanceMeters(p, s)
		if got != want {
			t.Errorf("degenerate segment: got %v, want point distance %v", got, want)
		}
	})

	t.Run("ClampToEnd", func(t *testing.T) {
		// p lies beyond segEnd along the segment axis, so the nearest
		// point is segEnd itself.
		start := orb.Point{8.0, 47.0}
		end := orb.Point{8.001, 47.0}
		p := orb.Point{8.002, 47.0}
		got := PointToSegmentDistanceMeters(p, start, end)
		want := DistanceMeters(p, end)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("PerpendicularProjection", func(t *testing.T) {
		// p sits 10 m north of the midpoint of an east-west segment.
		start := orb.Point{8.0, 47.0}
		end := orb.Point{8.002, 47.0}
		p := orb.Point{8.001, 47.0 + 10*meterInDegrees}
		got := PointToSegmentDistanceMeters(p, start, end)
		if math.Abs(got-10) > 0.01 {
			t.Errorf("expected ~10m, got %v", got)
		}
	})
}

func TestDistanceToGeometry(t *testing.T) {
	p := orb.Point{8.0, 47.0}

	t.Run("Point", func(t *testing.T) {
		d, ok := DistanceToGeometry(p, orb.Point{8.0, 47.0 + 20*meterInDegrees})
		if !ok {
			t.Fatal("expected ok for point geometry")
		}
		if math.Abs(d-20) > 0.01 {
			t.Errorf("expected ~20m, got %v", d)
		}
	})

	t.Run("NonFinitePoint", func(t *testing.T) {
		if _, ok := DistanceToGeometry(p, orb.Point{math.NaN(), 47.0}); ok {
			t.Error("expected not-ok for NaN point geometry")
		}
	})

	t.Run("NilGeometry", func(t *testing.T) {
		if _, ok := DistanceToGeometry(p, nil); ok {
			t.Error("expected not-ok for nil geometry")
		}
	})

	t.Run("UnsupportedGeometry", func(t *testing.T) {
		ls := orb.LineString{{8.0, 47.0}, {8.001, 47.0}}
		if _, ok := DistanceToGeometry(p, ls); ok {
			t.Error("expected not-ok for line string geometry")
		}
	})

	t.Run("PolygonNearestEdge", func(t *testing.T) {
		// Square roughly 100m x 100m whose western edge passes 50m east
		// of p.
		side := 100 * meterInDegrees
		sideLon := 100 * lonMeterInDegrees
		west := 8.0 + 50*lonMeterInDegrees
		poly := orb.Polygon{orb.Ring{
			{west, 47.0 - side/2},
			{west + sideLon, 47.0 - side/2},
			{west + sideLon, 47.0 + side/2},
			{west, 47.0 + side/2},
			{west, 47.0 - side/2},
		}}
		d, ok := DistanceToGeometry(p, poly)
		if !ok {
			t.Fatal("expected ok for polygon geometry")
		}
		if math.Abs(d-50) > 0.5 {
			t.Errorf("expected ~50m to nearest edge, got %v", d)
		}
	})

	t.Run("MultiPolygonMinimum", func(t *testing.T) {
		near := orb.Polygon{orb.Ring{
			{8.0 + 30*lonMeterInDegrees, 47.0},
			{8.0 + 40*lonMeterInDegrees, 47.0},
			{8.0 + 40*lonMeterInDegrees, 47.0 + 10*meterInDegrees},
			{8.0 + 30*lonMeterInDegrees, 47.0},
		}}
		far := orb.Polygon{orb.Ring{
			{8.01, 47.01},
			{8.011, 47.01},
			{8.011, 47.011},
			{8.01, 47.01},
		}}
		d, ok := DistanceToGeometry(p, orb.MultiPolygon{far, near})
		if !ok {
			t.Fatal("expected ok for multipolygon geometry")
		}
		if math.Abs(d-30) > 0.5 {
			t.Errorf("expected ~30m to nearest polygon, got %v", d)
		}
	})
}

func TestIsWithinRadius(t *testing.T) {
	p := orb.Point{8.0, 47.0}

	t.Run("ZeroRadiusSelf", func(t *testing.T) {
		if !IsWithinRadius(p, p, 0) {
			t.Error("a point must be within a zero radius of itself")
		}
	})

	t.Run("InclusiveBoundary", func(t *testing.T) {
		// 5m due north is an exact arc length for the haversine, so the
		// boundary is representable.
		q := orb.Point{8.0, 47.0 + 5*meterInDegrees}
		if !IsWithinRadius(p, q, 5.0000001) {
			t.Error("expected point just inside radius to match")
		}
		if IsWithinRadius(p, q, 4.99) {
			t.Error("expected point outside radius not to match")
		}
	})

	t.Run("MalformedGeometry", func(t *testing.T) {
		if IsWithinRadius(p, nil, 1000) {
			t.Error("nil geometry must never be within a radius")
		}
	})
}
