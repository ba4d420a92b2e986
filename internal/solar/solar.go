// Package solar computes the subsolar point — the geodetic point where the
// sun is directly overhead at a given instant. It drives the globe rotation
// so the rendered Earth always shows its sunlit face.
//
// The model is a low-precision solar ephemeris (mean longitude plus a
// two-term equation of center, Meeus-style truncation), combined with the
// IAU-82 Greenwich Mean Sidereal Time model to place the subsolar meridian.
// Declination is good to a few hundredths of a degree over multi-decade
// ranges, far below the pixel resolution of the visualization. This is not
// a validated astronomical library; do not reuse it where real ephemeris
// accuracy matters.
package solar

import (
	"math"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi

	// j2000 is the Julian Date of the J2000.0 epoch.
	j2000 = 2451545.0
)

// JulianDate converts a time.Time to Julian Date. Exact for any instant the
// Go time package can represent; the fixed offset is the Julian Date of the
// Unix epoch.
func JulianDate(t time.Time) float64 {
	return float64(t.UnixMilli())/86400000.0 + 2440587.5
}

// JulianCenturies returns Julian centuries since J2000.0 for the given time.
func JulianCenturies(t time.Time) float64 {
	return (JulianDate(t) - j2000) / 36525.0
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC
// time, using the IAU-82 model (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries from J2000.0 and the result is in seconds of
// time, normalized to [0, 86400) and converted to radians.
func GMST(t time.Time) float64 {
	tUT1 := JulianCenturies(t.UTC())

	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// SubsolarPoint returns the geodetic point where the sun is directly
// overhead at time t. Pure and total over all valid timestamps.
//
// Latitude is the solar declination, so it is always bounded by the
// obliquity of the ecliptic (±23.44°). Longitude is the sun's right
// ascension minus GMST (the negated Greenwich hour angle), normalized to
// (-180, 180] to match geo.Point's convention.
func SubsolarPoint(t time.Time) geo.Point {
	t = t.UTC()
	T := JulianCenturies(t)

	// Mean solar longitude and mean anomaly (degrees).
	L0 := math.Mod(280.46646+36000.76983*T, 360.0)
	M := math.Mod(357.52911+35999.05029*T, 360.0)

	// Equation of center, truncated to the first two terms (degrees).
	C := 1.9148*math.Sin(M*deg2rad) + 0.0200*math.Sin(2*M*deg2rad)

	// True ecliptic longitude (degrees).
	lambda := math.Mod(L0+C, 360.0)
	if lambda < 0 {
		lambda += 360.0
	}

	// Obliquity of the ecliptic (degrees), with its slow secular drift.
	eps := 23.43929111 - (46.8150*T+0.00059*T*T)/3600.0

	sinLambda := math.Sin(lambda * deg2rad)

	// Right ascension of the sun (radians). atan2 keeps the quadrant right.
	ra := math.Atan2(math.Cos(eps*deg2rad)*sinLambda, math.Cos(lambda*deg2rad))

	// Declination (degrees).
	lat := math.Asin(math.Sin(eps*deg2rad)*sinLambda) * rad2deg

	// Subsolar longitude: hour angle of the sun at Greenwich, negated.
	lon := (ra - GMST(t)) * rad2deg

	return geo.Point{
		Lat: lat,
		Lon: geo.NormalizeLon(lon),
	}
}
