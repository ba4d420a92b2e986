// Package projection implements the orthographic projection used to flatten
// the globe for the frontend. The sphere is drawn as seen from infinite
// distance, so only the near hemisphere projects; far-side points report a
// "not representable" sentinel instead of a coordinate.
package projection

import "math"

const (
	deg2rad = math.Pi / 180.0

	// Same exact-horizon cutoff as geo.Visible.
	horizonEpsilon = 1e-12
)

// Ortho is an orthographic projection with a rotation and a screen viewport.
// Not safe for concurrent use; callers hold one per request or guard it.
type Ortho struct {
	lambda float64 // rotation about the polar axis, degrees
	phi    float64 // rotation toward the viewer, degrees
	roll   float64 // screen-plane rotation, degrees

	radius float64 // sphere radius in pixels
	cx, cy float64 // screen center
}

// New creates a projection filling a width×height viewport, with the sphere
// radius set to fit with a small margin.
func New(width, height float64) *Ortho {
	r := math.Min(width, height)/2.0 - 10.0
	if r < 1 {
		r = 1
	}
	return &Ortho{
		radius: r,
		cx:     width / 2.0,
		cy:     height / 2.0,
	}
}

// Radius returns the sphere radius in pixels.
func (o *Ortho) Radius() float64 { return o.radius }

// Center returns the screen-space center of the sphere.
func (o *Ortho) Center() (x, y float64) { return o.cx, o.cy }

// Rotate sets the projection rotation. To center the view on a geodetic
// point (lat, lon), pass (-lon, -lat, 0).
func (o *Ortho) Rotate(lambda, phi, roll float64) {
	o.lambda = lambda
	o.phi = phi
	o.roll = roll
}

// Rotation returns the current rotation angles.
func (o *Ortho) Rotation() (lambda, phi, roll float64) {
	return o.lambda, o.phi, o.roll
}

// Project maps a geodetic point to screen coordinates. ok is false when the
// point lies on the far hemisphere (or exactly on the limb) and has no
// orthographic image.
func (o *Ortho) Project(lon, lat float64) (x, y float64, ok bool) {
	centerLon := -o.lambda * deg2rad
	centerLat := -o.phi * deg2rad
	pLat := lat * deg2rad
	dLon := lon*deg2rad - centerLon

	sinC := math.Sin(centerLat)
	cosC := math.Cos(centerLat)
	sinP := math.Sin(pLat)
	cosP := math.Cos(pLat)

	// Cosine of the angular distance to the projection center; the same
	// quantity and threshold geo.Visible uses, so a point projects iff it
	// is visible. The epsilon keeps cos(π/2) rounding (~6e-17) from letting
	// exact-limb points through.
	cosDist := sinC*sinP + cosC*cosP*math.Cos(dLon)
	if cosDist <= horizonEpsilon {
		return 0, 0, false
	}

	dx := o.radius * cosP * math.Sin(dLon)
	dy := o.radius * (cosC*sinP - sinC*cosP*math.Cos(dLon))

	if o.roll != 0 {
		g := o.roll * deg2rad
		cosG := math.Cos(g)
		sinG := math.Sin(g)
		dx, dy = dx*cosG+dy*sinG, dy*cosG-dx*sinG
	}

	// Screen y grows downward.
	return o.cx + dx, o.cy - dy, true
}
