package solar

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
	msolar "github.com/soniakeys/meeus/v3/solar"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
)

// TestJulianDate verifies the Julian Date conversion against known values.
func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{
			name:     "Unix epoch",
			time:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2440587.5,
		},
		{
			name:     "J2000.0 epoch",
			time:     time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: 2451545.0,
		},
		{
			// Vallado Example 3-15: April 6, 2004, 07:51:28.386 UTC
			name:     "Vallado example date",
			time:     time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC),
			expected: 2453101.827411875,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			diff := math.Abs(got - tt.expected)
			if diff > 1e-6 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f (diff=%.2e)", tt.time, got, tt.expected, diff)
			}
		})
	}
}

// TestJulianDateAgainstMeeus cross-checks the conversion against the meeus
// library over a spread of dates.
func TestJulianDateAgainstMeeus(t *testing.T) {
	times := []time.Time{
		time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 12, 21, 18, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
		time.Date(2038, 1, 19, 3, 14, 7, 0, time.UTC),
	}
	for _, tm := range times {
		our := JulianDate(tm)
		ref := julian.TimeToJD(tm)
		if diff := math.Abs(our - ref); diff > 1e-6 {
			t.Errorf("JulianDate(%v) = %.8f, meeus = %.8f (diff=%.2e)", tm, our, ref, diff)
		}
	}
}

// TestGMST validates the GMST calculation against the go-satellite library's
// GSTimeFromDate function, which uses the same IAU-82 model.
func TestGMST(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{
			name: "J2000.0 epoch",
			time: time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "Vallado example date",
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC), // integer seconds for library compat
		},
		{
			name: "equinox 2024",
			time: time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			our := GMST(tt.time)
			ref := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)

			diff := math.Abs(our - ref)
			// 1e-8 radians ≈ 0.06 arcsec.
			if diff > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, go-satellite = %.12f rad (diff=%.2e)", tt.time, our, ref, diff)
			}
		})
	}
}

// TestSubsolarPointEquinox pins the reference example: near the March 2024
// equinox at 12:00 UTC the sun sits close to (0°, 0°).
func TestSubsolarPointEquinox(t *testing.T) {
	tm := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	sp := SubsolarPoint(tm)

	if math.Abs(sp.Lat) > 1.0 {
		t.Errorf("equinox subsolar latitude = %.4f°, want within ±1°", sp.Lat)
	}
	if math.Abs(sp.Lon) > 2.0 {
		t.Errorf("equinox solar-noon subsolar longitude = %.4f°, want within ±2°", sp.Lon)
	}
}

// TestSubsolarPointBounds samples three decades of timestamps and checks the
// output ranges: latitude bounded by the obliquity, longitude normalized.
func TestSubsolarPointBounds(t *testing.T) {
	start := time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3*365; i++ {
		tm := start.Add(time.Duration(i) * 73 * time.Hour) // ~9 years, off-grid hours
		sp := SubsolarPoint(tm)

		if math.Abs(sp.Lat) > 23.45 {
			t.Fatalf("subsolar latitude %.4f° at %v exceeds obliquity bound", sp.Lat, tm)
		}
		if sp.Lon <= -180 || sp.Lon > 180 {
			t.Fatalf("subsolar longitude %.4f° at %v not normalized", sp.Lon, tm)
		}
	}
}

// TestSubsolarPointAgainstMeeus validates the low-precision model against the
// meeus apparent solar position across the seasons. The reference subsolar
// point is the apparent RA/Dec rotated to Earth-fixed by GMST — the same
// construction this package uses with its truncated series.
func TestSubsolarPointAgainstMeeus(t *testing.T) {
	times := []time.Time{
		time.Date(2020, 3, 20, 12, 0, 0, 0, time.UTC),
		time.Date(2020, 6, 20, 12, 0, 0, 0, time.UTC),
		time.Date(2020, 9, 22, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 21, 6, 0, 0, 0, time.UTC),
		time.Date(2031, 7, 4, 17, 45, 0, 0, time.UTC),
	}

	for _, tm := range times {
		sp := SubsolarPoint(tm)

		jd := julian.TimeToJD(tm)
		ra, dec := msolar.ApparentEquatorial(jd)

		refLat := math.Asin(dec.Sin()) * rad2deg
		raRad := math.Atan2(ra.Sin(), ra.Cos())
		refLon := geo.NormalizeLon((raRad - GMST(tm)) * rad2deg)

		if diff := math.Abs(sp.Lat - refLat); diff > 0.05 {
			t.Errorf("%v: subsolar lat %.4f°, meeus %.4f° (diff %.4f°)", tm, sp.Lat, refLat, diff)
		}

		lonDiff := math.Abs(geo.NormalizeLon(sp.Lon - refLon))
		if lonDiff > 0.1 {
			t.Errorf("%v: subsolar lon %.4f°, meeus %.4f° (diff %.4f°)", tm, sp.Lon, refLon, lonDiff)
		}
	}
}
