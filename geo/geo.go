// Package geo provides the great-circle and point-to-polyline math used by the
// feed matchers. The point-to-segment routine works in a local equirectangular
// plane and is only meant for short (sub-kilometer) segments.
package geo

import "math"

const (
	earthRadiusKM     = 6371.0088
	earthRadiusMeters = earthRadiusKM * 1000.0
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// HaversineKM returns the great-circle distance between two points in kilometers.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// HaversineMeters returns the great-circle distance between two points in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineKM(lat1, lon1, lat2, lon2) * 1000.0
}

// BearingDeg returns the initial bearing from point 1 to point 2 in [0,360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := toRad(lat1)
	p2 := toRad(lat2)
	dl := toRad(lon2 - lon1)

	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)
	brng := toDeg(math.Atan2(y, x))
	return math.Mod(brng+360.0, 360.0)
}

// PointToSegmentMeters returns the distance in meters from p to the segment
// a-b, projected onto a local plane centered on the mean latitude of the three
// points. The projection parameter is clamped to the segment; a degenerate
// zero-length segment falls back to the direct distance.
func PointToSegmentMeters(p, a, b Point) float64 {
	phi := toRad((a.Lat + b.Lat + p.Lat) / 3.0)
	x := func(lon float64) float64 { return toRad(lon-a.Lon) * math.Cos(phi) * earthRadiusMeters }
	y := func(lat float64) float64 { return toRad(lat-a.Lat) * earthRadiusMeters }

	bx, by := x(b.Lon), y(b.Lat)
	px, py := x(p.Lon), y(p.Lat)

	ab2 := bx*bx + by*by
	if ab2 <= 1e-9 {
		return math.Sqrt(px*px + py*py)
	}

	t := (px*bx + py*by) / ab2
	t = math.Max(0, math.Min(1, t))

	dx := px - t*bx
	dy := py - t*by
	return math.Sqrt(dx*dx + dy*dy)
}

// PointToPolylineMeters scans consecutive segments of poly and returns the
// minimum distance in meters together with the bearing of the best segment.
// Polylines with fewer than two points report ok=false.
func PointToPolylineMeters(lat, lon float64, poly []Point) (distM, segBearingDeg float64, ok bool) {
	if len(poly) < 2 {
		return 0, 0, false
	}
	p := Point{Lat: lat, Lon: lon}
	bestDist := math.MaxFloat64
	bestBearing := 0.0
	for i := 0; i < len(poly)-1; i++ {
		a, b := poly[i], poly[i+1]
		d := PointToSegmentMeters(p, a, b)
		if d < bestDist {
			bestDist = d
			bestBearing = BearingDeg(a.Lat, a.Lon, b.Lat, b.Lon)
		}
	}
	return bestDist, bestBearing, true
}
