package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
	"github.com/papercircuit/l1-earth-visualizer/internal/orient"
	"github.com/papercircuit/l1-earth-visualizer/internal/projection"
	"github.com/papercircuit/l1-earth-visualizer/internal/solar"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleOrientation serves the current snapshot.
// GET /api/v1/orientation
func (s *Server) handleOrientation(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no orientation available yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// setOrientationRequest is the body for POST /api/v1/orientation.
type setOrientationRequest struct {
	Time    string `json:"time"`
	Animate bool   `json:"animate"`
}

// handleSetOrientation retargets the controller to a new timestamp. The
// request goes through the controller's debounce, so a slider drag that
// posts every change only lands one recompute.
// POST /api/v1/orientation {"time":"2024-03-20T12:00:00Z","animate":true}
func (s *Server) handleSetOrientation(w http.ResponseWriter, r *http.Request) {
	var req setOrientationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	t, err := time.Parse(time.RFC3339, req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "time must be RFC3339")
		return
	}

	s.controller.Request(t, req.Animate)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// handleOrientationAt computes an orientation for an arbitrary timestamp
// without touching the controller. Pure query; the on-screen rotation and
// any running transition are unaffected.
// GET /api/v1/orientation/at?time=2024-03-20T12:00:00Z
func (s *Server) handleOrientationAt(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("time")
	if v == "" {
		writeError(w, http.StatusBadRequest, "missing time parameter")
		return
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "time must be RFC3339")
		return
	}

	subsolar := solar.SubsolarPoint(t)
	snap := orient.BuildSnapshot(t, subsolar, orient.RotationFor(subsolar),
		orient.StateStatic, s.stations, s.observations())
	writeJSON(w, http.StatusOK, snap)
}

// handleStations serves the ground station catalog.
// GET /api/v1/stations
func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stations": s.stations})
}

type spacecraftResponse struct {
	Source       string            `json:"source"`
	FetchedAt    time.Time         `json:"fetched_at"`
	AgeSeconds   float64           `json:"age_seconds"`
	Observations []spacecraftEntry `json:"observations"`
}

type spacecraftEntry struct {
	Name       string    `json:"name"`
	Position   geo.Vec3  `json:"position_gse_km"`
	DistanceKm float64   `json:"distance_km"`
	Time       time.Time `json:"time"`
}

// handleSpacecraft serves the latest location sample per spacecraft.
// GET /api/v1/spacecraft
func (s *Server) handleSpacecraft(w http.ResponseWriter, r *http.Request) {
	ds := s.sscStore.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "no location data available yet")
		return
	}

	resp := spacecraftResponse{
		Source:       ds.Source,
		FetchedAt:    ds.FetchedAt,
		AgeSeconds:   s.sscStore.AgeSeconds(),
		Observations: make([]spacecraftEntry, 0, len(ds.Observations)),
	}
	for _, o := range ds.Observations {
		resp.Observations = append(resp.Observations, spacecraftEntry{
			Name:       o.Spacecraft,
			Position:   o.Position,
			DistanceKm: o.Position.Norm(),
			Time:       o.Time,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type imageryResponse struct {
	Source     string        `json:"source"`
	FetchedAt  time.Time     `json:"fetched_at"`
	AgeSeconds float64       `json:"age_seconds"`
	Records    []imageryItem `json:"records"`
}

type imageryItem struct {
	Identifier string    `json:"identifier"`
	Image      string    `json:"image"`
	Date       time.Time `json:"date"`
	Subsolar   geo.Point `json:"subsolar"`
}

// handleImagery serves the parsed imagery metadata backing the current
// orientation anchor.
// GET /api/v1/imagery
func (s *Server) handleImagery(w http.ResponseWriter, r *http.Request) {
	ds := s.epicStore.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "no imagery data available yet")
		return
	}

	resp := imageryResponse{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt,
		AgeSeconds: s.epicStore.AgeSeconds(),
		Records:    make([]imageryItem, 0, len(ds.Records)),
	}
	for _, rec := range ds.Records {
		resp.Records = append(resp.Records, imageryItem{
			Identifier: rec.Identifier,
			Image:      rec.Image,
			Date:       rec.Date,
			Subsolar:   rec.Subsolar,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type projectedPoint struct {
	Name    string  `json:"name,omitempty"`
	Color   string  `json:"color,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
}

type projectionResponse struct {
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	CenterX    float64          `json:"cx"`
	CenterY    float64          `json:"cy"`
	Radius     float64          `json:"radius"`
	Time       time.Time        `json:"time"`
	State      orient.State     `json:"state"`
	Rotation   orient.Rotation  `json:"rotation"`
	Subsolar   projectedPoint   `json:"subsolar"`
	Stations   []projectedPoint `json:"stations"`
	Spacecraft []projectedPoint `json:"spacecraft"`
	Terminator [][2]float64     `json:"terminator"`
}

// handleProjection serves orthographic screen coordinates for the current
// (or a requested) orientation, so the frontend can draw without
// reimplementing the math.
// GET /api/v1/projection?width=800&height=800&time=2024-03-20T12:00:00Z
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	width, height := 800, 800
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 4000 {
			writeError(w, http.StatusBadRequest, "invalid width parameter, must be 100-4000")
			return
		}
		width = n
	}
	if v := r.URL.Query().Get("height"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 4000 {
			writeError(w, http.StatusBadRequest, "invalid height parameter, must be 100-4000")
			return
		}
		height = n
	}

	var snap *orient.Snapshot
	if v := r.URL.Query().Get("time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "time must be RFC3339")
			return
		}
		subsolar := solar.SubsolarPoint(t)
		snap = orient.BuildSnapshot(t, subsolar, orient.RotationFor(subsolar),
			orient.StateStatic, s.stations, s.observations())
	} else {
		snap = s.controller.Snapshot()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "no orientation available yet")
			return
		}
	}

	proj := projection.New(float64(width), float64(height))
	proj.Rotate(snap.Rotation.Lambda, snap.Rotation.Phi, snap.Rotation.Roll)
	cx, cy := proj.Center()

	resp := projectionResponse{
		Width:    width,
		Height:   height,
		CenterX:  cx,
		CenterY:  cy,
		Radius:   proj.Radius(),
		Time:     snap.Time,
		State:    snap.State,
		Rotation: snap.Rotation,
	}

	if x, y, ok := proj.Project(snap.Subsolar.Lon, snap.Subsolar.Lat); ok {
		resp.Subsolar = projectedPoint{X: x, Y: y, Visible: true}
	}

	for _, st := range snap.Stations {
		p := projectedPoint{Name: st.Name, Color: st.Color}
		if x, y, ok := proj.Project(st.Location.Lon, st.Location.Lat); ok {
			p.X, p.Y, p.Visible = x, y, true
		}
		resp.Stations = append(resp.Stations, p)
	}

	for _, c := range snap.Spacecraft {
		p := projectedPoint{Name: c.Name}
		if x, y, ok := proj.Project(c.Direction.Lon, c.Direction.Lat); ok {
			p.X, p.Y, p.Visible = x, y, true
		}
		resp.Spacecraft = append(resp.Spacecraft, p)
	}

	resp.Terminator = terminatorPoints(proj, snap.Subsolar)

	writeJSON(w, http.StatusOK, resp)
}

// terminatorPoints samples the day/night boundary (the great circle 90°
// from the subsolar point) and projects the samples that fall on the near
// hemisphere.
func terminatorPoints(proj *projection.Ortho, subsolar geo.Point) [][2]float64 {
	s := geo.ZenithVector(subsolar)

	// Orthonormal basis for the plane perpendicular to the subsolar axis.
	// The subsolar point never approaches the poles, so the polar axis is a
	// safe reference.
	pole := geo.Vec3{Z: 1}
	u := pole.Cross(s)
	u = u.Scale(1 / u.Norm())
	v := s.Cross(u)

	const samples = 144
	points := make([][2]float64, 0, samples)
	for i := 0; i < samples; i++ {
		theta := 2 * math.Pi * float64(i) / samples
		p := u.Scale(math.Cos(theta))
		q := v.Scale(math.Sin(theta))
		pt := geo.Vec3{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}

		lat := math.Asin(pt.Z) * 180 / math.Pi
		lon := geo.NormalizeLon(math.Atan2(pt.Y, pt.X) * 180 / math.Pi)
		if x, y, ok := proj.Project(lon, lat); ok {
			points = append(points, [2]float64{x, y})
		}
	}
	return points
}

// observations returns the latest spacecraft samples for on-demand
// snapshot builds, empty when no location data is loaded.
func (s *Server) observations() []sscweb.Observation {
	ds := s.sscStore.Get()
	if ds == nil {
		return nil
	}
	return ds.Observations
}
