package grid

import "math"

// MetersPerDegree approximates the ground length of one degree of
// latitude. Longitude degrees are scaled by the cosine of the latitude.
const MetersPerDegree = 111139.0

// LatLng is a geographic point in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Rect is an axis-aligned bounding rectangle expressed as its
// south-west and north-east corners.
type Rect struct {
	SouthWest LatLng `json:"southWest"`
	NorthEast LatLng `json:"northEast"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() LatLng {
	return LatLng{
		Lat: (r.SouthWest.Lat + r.NorthEast.Lat) / 2,
		Lng: (r.SouthWest.Lng + r.NorthEast.Lng) / 2,
	}
}

// Contains reports whether p falls inside the rectangle. The south and
// west edges belong to the rectangle; the north and east edges belong
// to the neighboring cells, matching the grid's floor semantics.
func (r Rect) Contains(p LatLng) bool {
	return p.Lat >= r.SouthWest.Lat && p.Lat < r.NorthEast.Lat &&
		p.Lng >= r.SouthWest.Lng && p.Lng < r.NorthEast.Lng
}

// DistanceMeters computes the equirectangular approximation of the
// ground distance between two points. The approximation is only
// trustworthy near the reference latitude; callers far from the origin
// region must not rely on its accuracy.
func DistanceMeters(a, b LatLng) float64 {
	dLat := (b.Lat - a.Lat) * MetersPerDegree
	dLng := (b.Lng - a.Lng) * MetersPerDegree * math.Cos(a.Lat*math.Pi/180)
	return math.Hypot(dLat, dLng)
}
