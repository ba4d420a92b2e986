package sscweb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
)

// Observation is one spacecraft's most recent position sample, Cartesian
// GSE kilometers.
type Observation struct {
	Spacecraft string
	Time       time.Time
	Position   geo.Vec3
}

// Dataset holds the latest observation per requested spacecraft.
type Dataset struct {
	Source       string
	FetchedAt    time.Time
	Observations []Observation
}

// sscTimeLayout is the timestamp format in the feed, always UTC.
const sscTimeLayout = "2006-01-02T15:04:05Z"

// wireResponse mirrors the feed's JSON shape:
//
//	{"result": {"data": [
//	  {"id": "dscovr",
//	   "coordinates": {"coordinate_system": "gse",
//	                   "x": [1384910.2, ...], "y": [...], "z": [...]},
//	   "time": ["2024-03-20T10:00:00Z", ...]}
//	]}}
//
// The parallel arrays are index-aligned; the last index is the newest
// sample in the requested window.
type wireResponse struct {
	Result struct {
		Data []struct {
			ID          string `json:"id"`
			Coordinates struct {
				CoordinateSystem string    `json:"coordinate_system"`
				X                []float64 `json:"x"`
				Y                []float64 `json:"y"`
				Z                []float64 `json:"z"`
			} `json:"coordinates"`
			Time []string `json:"time"`
		} `json:"data"`
	} `json:"result"`
}

// Parse decodes a locations payload and extracts the most recent usable
// sample per spacecraft. Zero-magnitude triples are degenerate (they would
// NaN the cone test) and are skipped, as are samples with unparseable
// times; the scan walks backwards so an unusable newest sample falls
// through to the one before it. A spacecraft with no usable sample is
// omitted — a "no data" condition, not an error.
func Parse(data []byte, logger *slog.Logger) ([]Observation, error) {
	var wire wireResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing locations feed: %w", err)
	}

	var obs []Observation
	for _, d := range wire.Result.Data {
		coords := d.Coordinates
		n := len(d.Time)
		if len(coords.X) < n {
			n = len(coords.X)
		}
		if len(coords.Y) < n {
			n = len(coords.Y)
		}
		if len(coords.Z) < n {
			n = len(coords.Z)
		}

		found := false
		for i := n - 1; i >= 0 && !found; i-- {
			pos := geo.Vec3{X: coords.X[i], Y: coords.Y[i], Z: coords.Z[i]}
			if pos.IsZero() {
				logger.Warn("skipping degenerate zero position",
					"spacecraft", d.ID,
					"index", i,
				)
				continue
			}
			ts, err := time.Parse(sscTimeLayout, d.Time[i])
			if err != nil {
				logger.Warn("skipping sample with invalid time",
					"spacecraft", d.ID,
					"time", d.Time[i],
					"error", err,
				)
				continue
			}
			obs = append(obs, Observation{
				Spacecraft: d.ID,
				Time:       ts,
				Position:   pos,
			})
			found = true
		}

		if !found {
			logger.Warn("no usable samples for spacecraft", "spacecraft", d.ID)
		}
	}

	return obs, nil
}
