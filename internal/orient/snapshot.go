// Package orient composes the solar ephemeris, the hemisphere visibility
// test, and the antenna cone test into orientation snapshots, and animates
// the globe rotation between snapshot targets.
//
// A snapshot is built whole and swapped atomically. Station flags are never
// mutated in place: every consumer sees station visibility, cone status,
// and the subsolar point from the same computation cycle.
package orient

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
	"github.com/papercircuit/l1-earth-visualizer/internal/station"
)

// State is the controller's animation state.
type State string

const (
	// StateStatic means the projection is fixed at the last computed rotation.
	StateStatic State = "static"
	// StateTransitioning means the rotation is interpolating toward a new target.
	StateTransitioning State = "transitioning"
)

// Rotation holds orthographic projection rotation angles in degrees.
type Rotation struct {
	Lambda float64 `json:"lambda"`
	Phi    float64 `json:"phi"`
	Roll   float64 `json:"roll"`
}

// RotationFor returns the rotation that centers the projection on the
// given subsolar point: (-lon, -lat, 0).
func RotationFor(subsolar geo.Point) Rotation {
	return Rotation{Lambda: -subsolar.Lon, Phi: -subsolar.Lat}
}

// lerp interpolates between two rotations, taking the short way around for
// the longitude component so a transition across the date line doesn't
// spin the globe the long way.
func lerp(from, to Rotation, frac float64) Rotation {
	if frac <= 0 {
		return from
	}
	if frac >= 1 {
		return to
	}
	dLambda := geo.NormalizeLon(to.Lambda - from.Lambda)
	return Rotation{
		Lambda: geo.NormalizeLon(from.Lambda + dLambda*frac),
		Phi:    from.Phi + (to.Phi-from.Phi)*frac,
		Roll:   from.Roll + (to.Roll-from.Roll)*frac,
	}
}

// ConeStatus is one station's line-of-sight result for one spacecraft.
type ConeStatus struct {
	Spacecraft string `json:"spacecraft"`
	InCone     bool   `json:"in_cone"`
}

// StationStatus is a ground station plus the flags derived for the current
// cycle. The static fields are copied from the catalog so a snapshot is
// self-contained.
type StationStatus struct {
	Name          string       `json:"name"`
	Location      geo.Point    `json:"location"`
	ConeFullAngle float64      `json:"cone_full_angle"`
	Color         string       `json:"color"`
	Visible       bool         `json:"visible"`
	Cones         []ConeStatus `json:"cones,omitempty"`
}

// CraftStatus is one spacecraft's position in the current cycle.
type CraftStatus struct {
	Name       string    `json:"name"`
	Position   geo.Vec3  `json:"position_gse_km"`
	Direction  geo.Point `json:"direction"`
	SampleTime time.Time `json:"sample_time"`
	Visible    bool      `json:"visible"`
}

// Snapshot is one consistent orientation of the globe: the subsolar point,
// the projection rotation derived from it, and every derived visibility
// flag, all computed together.
type Snapshot struct {
	Time       time.Time       `json:"time"`
	BuiltAt    time.Time       `json:"built_at"`
	State      State           `json:"state"`
	Subsolar   geo.Point       `json:"subsolar"`
	Rotation   Rotation        `json:"rotation"`
	Stations   []StationStatus `json:"stations"`
	Spacecraft []CraftStatus   `json:"spacecraft"`
	// DataTime is the newest spacecraft sample backing this snapshot;
	// zero when no location data has ever been fetched.
	DataTime time.Time `json:"data_time,omitempty"`
}

// BuildSnapshot derives a full station/spacecraft status set for the given
// rotation. During a transition the rotation differs from RotationFor
// (subsolar); flags always follow the rotation actually on screen.
func BuildSnapshot(t time.Time, subsolar geo.Point, rot Rotation, state State,
	stations []station.Station, craft []sscweb.Observation) *Snapshot {

	snap := &Snapshot{
		Time:     t,
		BuiltAt:  time.Now().UTC(),
		State:    state,
		Subsolar: subsolar,
		Rotation: rot,
	}

	snap.Stations = make([]StationStatus, 0, len(stations))
	for _, s := range stations {
		st := StationStatus{
			Name:          s.Name,
			Location:      s.Location,
			ConeFullAngle: s.ConeFullAngle,
			Color:         s.Color,
			Visible:       geo.Visible(rot.Lambda, rot.Phi, s.Location.Lon, s.Location.Lat),
		}
		for _, c := range craft {
			in, err := geo.InCone(s.Location, c.Position, s.ConeFullAngle)
			if err != nil {
				// Degenerate positions are filtered at parse time; treat a
				// slip-through as out of sight rather than poisoning the cycle.
				in = false
			}
			st.Cones = append(st.Cones, ConeStatus{Spacecraft: c.Spacecraft, InCone: in})
		}
		snap.Stations = append(snap.Stations, st)
	}

	snap.Spacecraft = make([]CraftStatus, 0, len(craft))
	for _, c := range craft {
		dir := directionOf(c.Position)
		snap.Spacecraft = append(snap.Spacecraft, CraftStatus{
			Name:       c.Spacecraft,
			Position:   c.Position,
			Direction:  dir,
			SampleTime: c.Time,
			Visible:    geo.Visible(rot.Lambda, rot.Phi, dir.Lon, dir.Lat),
		})
		if c.Time.After(snap.DataTime) {
			snap.DataTime = c.Time
		}
	}

	return snap
}

// directionOf converts a position vector to the geodetic direction it
// points through (geocentric latitude/longitude of the sub-spacecraft
// point, spherical Earth).
func directionOf(v geo.Vec3) geo.Point {
	n := v.Norm()
	if n == 0 {
		return geo.Point{}
	}
	return geo.Point{
		Lat: math.Asin(v.Z/n) * 180.0 / math.Pi,
		Lon: geo.NormalizeLon(math.Atan2(v.Y, v.X) * 180.0 / math.Pi),
	}
}

// VisibleStationCount returns how many stations in the snapshot are on the
// near hemisphere.
func (s *Snapshot) VisibleStationCount() int {
	var n int
	for _, st := range s.Stations {
		if st.Visible {
			n++
		}
	}
	return n
}

// Store provides thread-safe access to the current snapshot. Snapshots are
// replaced whole.
type Store struct {
	snap atomic.Pointer[Snapshot]
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current snapshot, or nil before the first computation.
func (s *Store) Get() *Snapshot {
	return s.snap.Load()
}

// Set atomically replaces the current snapshot.
func (s *Store) Set(snap *Snapshot) {
	s.snap.Store(snap)
}
