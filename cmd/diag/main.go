// Command diag prints the computed orientation for a timestamp without
// starting the server: subsolar point, globe rotation, per-station
// visibility, and, when cached location data is available, the antenna
// cone status per spacecraft.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/diskcache"
	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
	"github.com/papercircuit/l1-earth-visualizer/internal/orient"
	"github.com/papercircuit/l1-earth-visualizer/internal/solar"
	"github.com/papercircuit/l1-earth-visualizer/internal/sscweb"
	"github.com/papercircuit/l1-earth-visualizer/internal/station"
)

func main() {
	timeFlag := flag.String("time", "", "timestamp to evaluate (RFC3339, default now)")
	cacheDir := flag.String("cache-dir", "/tmp/l1viz", "disk cache directory for spacecraft locations")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	t := time.Now().UTC()
	if *timeFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *timeFlag)
		if err != nil {
			fmt.Println("ERROR parsing -time:", err)
			os.Exit(1)
		}
		t = parsed.UTC()
	}

	subsolar := solar.SubsolarPoint(t)
	rot := orient.RotationFor(subsolar)

	fmt.Printf("Time:     %s\n", t.Format(time.RFC3339))
	fmt.Printf("Subsolar: lat=%.4f° lon=%.4f°\n", subsolar.Lat, subsolar.Lon)
	fmt.Printf("Rotation: lambda=%.4f° phi=%.4f°\n\n", rot.Lambda, rot.Phi)

	var craft []sscweb.Observation
	if data, ts, err := diskcache.New(*cacheDir, "sscweb", 1).LoadLatest(); err != nil {
		fmt.Printf("No cached spacecraft locations (%v)\n\n", err)
	} else if craft, err = sscweb.Parse(data, logger); err != nil {
		fmt.Println("ERROR parsing cached locations:", err)
		os.Exit(1)
	} else {
		fmt.Printf("Spacecraft (cached %s):\n", ts.Format(time.RFC3339))
		for _, c := range craft {
			fmt.Printf("  %-8s dist=%.0f km sample=%s\n",
				c.Spacecraft, c.Position.Norm(), c.Time.Format(time.RFC3339))
		}
		fmt.Println()
	}

	fmt.Println("Stations:")
	for _, st := range station.Defaults() {
		vis := geo.Visible(rot.Lambda, rot.Phi, st.Location.Lon, st.Location.Lat)
		fmt.Printf("  %-16s lat=%8.3f lon=%9.3f visible=%v\n",
			st.Name, st.Location.Lat, st.Location.Lon, vis)
		for _, c := range craft {
			in, err := geo.InCone(st.Location, c.Position, st.ConeFullAngle)
			if err != nil {
				fmt.Printf("    %-8s cone ERROR: %v\n", c.Spacecraft, err)
				continue
			}
			fmt.Printf("    %-8s in_cone=%v\n", c.Spacecraft, in)
		}
	}
}
