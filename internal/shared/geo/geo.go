package geo

import "math"

// EarthRadiusM is the mean Earth radius used for great-circle distances.
const EarthRadiusM = 6371000.0

const degToRad = math.Pi / 180

// Haversine returns the great-circle distance in meters between two
// lat/lon points given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// Point is a position in a local tangent plane, meters from the
// projection center.
type Point struct {
	X float64
	Y float64
}

// ProjectToPlane maps a lat/lon pair onto a flat plane centered at
// (centerLat, centerLon) using an equirectangular approximation. The X
// axis is scaled by cos(centerLat) to correct longitude compression.
// Only valid for course-sized extents, meters to a few kilometers.
func ProjectToPlane(lat, lon, centerLat, centerLon float64) Point {
	return Point{
		X: (lon - centerLon) * degToRad * EarthRadiusM * math.Cos(centerLat*degToRad),
		Y: (lat - centerLat) * degToRad * EarthRadiusM,
	}
}

// SideOfLine returns the 2D cross product of (b-a) and (p-a). The sign
// tells which side of the line a->b the point p lies on; zero means
// collinear.
func SideOfLine(p, a, b Point) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// SegmentIntersection reports whether the path segment p1->p2 crosses
// the finite segment a->b, and if so the fraction along p1->p2 where the
// crossing occurs. Both endpoint pairs must straddle the other segment's
// line. Collinear degenerate cases count as no intersection.
func SegmentIntersection(p1, p2, a, b Point) (float64, bool) {
	d1 := SideOfLine(p1, a, b)
	d2 := SideOfLine(p2, a, b)
	if d1 == 0 && d2 == 0 {
		return 0, false
	}
	if (d1 > 0 && d2 > 0) || (d1 < 0 && d2 < 0) {
		return 0, false
	}

	d3 := SideOfLine(a, p1, p2)
	d4 := SideOfLine(b, p1, p2)
	if (d3 > 0 && d4 > 0) || (d3 < 0 && d4 < 0) {
		return 0, false
	}

	denom := d1 - d2
	if denom == 0 {
		return 0, false
	}
	return d1 / denom, true
}
