// Package station holds the fixed ground-station catalog. Stations are
// immutable for the lifetime of the process; everything derived from them
// (hemisphere visibility, cone line of sight) lives in orientation
// snapshots, never on the records themselves.
package station

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
)

// Station is a fixed ground antenna site.
type Station struct {
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
	// ConeFullAngle is the full angular width of the antenna field of view
	// in degrees, not the half-angle.
	ConeFullAngle float64 `json:"cone_full_angle"`
	Color         string  `json:"color"`
}

// Defaults returns the built-in DSCOVR ground-station catalog.
func Defaults() []Station {
	return []Station{
		{
			Name:          "Wallops Island",
			Location:      geo.Point{Lat: 37.94, Lon: -75.46},
			ConeFullAngle: 170,
			Color:         "#e4572e",
		},
		{
			Name:          "Fairbanks",
			Location:      geo.Point{Lat: 64.86, Lon: -147.85},
			ConeFullAngle: 170,
			Color:         "#3a86ff",
		},
		{
			Name:          "Hartebeesthoek",
			Location:      geo.Point{Lat: -25.89, Lon: 27.69},
			ConeFullAngle: 170,
			Color:         "#2ec4b6",
		},
	}
}

// Load reads a station catalog from a JSON file: an array of Station
// objects. Every entry is validated; a single bad record rejects the file
// so a typo can't silently drop a station.
func Load(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading station file: %w", err)
	}

	var stations []Station
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("parsing station file: %w", err)
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("station file %s contains no stations", path)
	}

	for i, s := range stations {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("station %d (%q): %w", i, s.Name, err)
		}
		stations[i].Location.Lon = geo.NormalizeLon(s.Location.Lon)
	}

	return stations, nil
}

func validate(s Station) error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if s.Location.Lat < -90 || s.Location.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", s.Location.Lat)
	}
	if s.ConeFullAngle <= 0 || s.ConeFullAngle > 360 {
		return fmt.Errorf("cone full angle %v out of range (0, 360]", s.ConeFullAngle)
	}
	return nil
}
