// Package geo provides the geodetic types and spherical geometry used to
// decide which ground stations face the viewer and which stations have
// line of sight to a spacecraft.
package geo

import "math"

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Point is a geodetic position in degrees.
// Lat is in [-90, 90]; Lon is normalized to (-180, 180].
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NormalizeLon maps an arbitrary longitude in degrees into (-180, 180].
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360.0)
	if lon <= -180.0 {
		lon += 360.0
	} else if lon > 180.0 {
		lon -= 360.0
	}
	return lon
}

// Vec3 is a Cartesian position in a geocentric frame. Units are whatever the
// caller uses consistently (the spacecraft feed delivers kilometers); every
// consumer here normalizes before use.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Norm returns the Euclidean magnitude of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Scale returns v multiplied by factor.
func (v Vec3) Scale(factor float64) Vec3 {
	return Vec3{X: v.X * factor, Y: v.Y * factor, Z: v.Z * factor}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

// Cross returns the cross product v × w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		X: v.Y*w.Z - v.Z*w.Y,
		Y: v.Z*w.X - v.X*w.Z,
		Z: v.X*w.Y - v.Y*w.X,
	}
}

// IsZero reports whether all components are exactly zero. Zero vectors are
// degenerate inputs for every angular computation in this package.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// ZenithVector returns the unit vector pointing from Earth's center through
// the given geodetic point (spherical Earth; the station/spacecraft frame
// alignment assumption makes ellipsoidal precision pointless here).
func ZenithVector(p Point) Vec3 {
	lat := p.Lat * deg2rad
	lon := p.Lon * deg2rad
	cosLat := math.Cos(lat)
	return Vec3{
		X: cosLat * math.Cos(lon),
		Y: cosLat * math.Sin(lon),
		Z: math.Sin(lat),
	}
}
