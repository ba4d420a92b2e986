package geo

import (
	"errors"
	"math"
)

// ErrDegenerateVector is returned when a zero-magnitude spacecraft position
// is passed to InCone. acos of a zero-vector dot product is NaN, so the
// caller must treat this as "no data", not as a geometry result.
var ErrDegenerateVector = errors.New("geo: zero-magnitude position vector")

// Visible reports whether the point (lon, lat) lies on the near hemisphere
// of an orthographic projection rotated by (rotLambda, rotPhi). The
// projection center is (-rotLambda, -rotPhi); the test computes the cosine
// of the great-circle distance between center and point with the spherical
// law of cosines.
//
// The horizon itself (great-circle distance exactly 90°, cosine 0) counts as
// NOT visible. That boundary choice is what makes stations sitting on the
// limb blink off rather than on as the globe rotates past them.
//
// horizonEpsilon absorbs the float64 rounding of cos(π/2), which lands at
// ~6e-17 rather than 0; without it the exact-horizon case would flip to
// visible. internal/projection thresholds on the same value so that a point
// projects iff it is visible.
const horizonEpsilon = 1e-12

func Visible(rotLambda, rotPhi, lon, lat float64) bool {
	centerLat := -rotPhi * deg2rad
	centerLon := -rotLambda * deg2rad
	pLat := lat * deg2rad
	pLon := lon * deg2rad

	cosDist := math.Sin(centerLat)*math.Sin(pLat) +
		math.Cos(centerLat)*math.Cos(pLat)*math.Cos(pLon-centerLon)

	return cosDist > horizonEpsilon
}

// InCone reports whether a spacecraft at position sat falls inside a ground
// station's antenna cone. coneFullAngle is the full cone width in degrees,
// not the half-angle. The station and spacecraft are assumed to share a
// geocentric frame.
//
// For stations at negative latitude the zenith angle is replaced by its
// supplement before comparison. This mirrors the empirically tuned
// southern-hemisphere behavior of the antenna model; it has not been derived
// from first principles and is suspected to paper over a frame inconsistency
// upstream. Validate against real antenna geometry before trusting it.
func InCone(stn Point, sat Vec3, coneFullAngle float64) (bool, error) {
	if sat.IsZero() {
		return false, ErrDegenerateVector
	}

	zenith := ZenithVector(stn)
	satUnit := sat.Scale(1.0 / sat.Norm())

	// Clamp: rounding can push the dot product a hair past ±1 and make acos NaN.
	cosZ := zenith.Dot(satUnit)
	if cosZ > 1 {
		cosZ = 1
	} else if cosZ < -1 {
		cosZ = -1
	}

	zenithAngle := math.Acos(cosZ) * rad2deg
	if stn.Lat < 0 {
		zenithAngle = 180.0 - zenithAngle
	}

	return zenithAngle <= coneFullAngle/2.0, nil
}
