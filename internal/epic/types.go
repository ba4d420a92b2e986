package epic

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/papercircuit/l1-earth-visualizer/internal/geo"
)

// Record is one imagery record from the EPIC feed. The visualizer only
// consumes the capture time and the subsolar centroid; the image identifier
// is carried through so the frontend can link back to the source imagery.
type Record struct {
	Identifier string
	Image      string
	Date       time.Time
	Subsolar   geo.Point
}

// Dataset is a complete parsed EPIC response, records sorted by capture
// time ascending.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Records   []Record
}

// Latest returns the newest record in the dataset.
func (d *Dataset) Latest() (Record, bool) {
	if d == nil || len(d.Records) == 0 {
		return Record{}, false
	}
	return d.Records[len(d.Records)-1], true
}

// epicDateLayout is the timestamp format the feed uses; it carries no zone
// and is documented as UTC.
const epicDateLayout = "2006-01-02 15:04:05"

// wireRecord mirrors the feed's JSON shape:
//
//	[{"identifier":"20240320115936","image":"epic_1b_20240320115936",
//	  "centroid_coordinates":{"lat":0.15,"lon":1.84},
//	  "date":"2024-03-20 11:59:36"}, ...]
type wireRecord struct {
	Identifier          string `json:"identifier"`
	Image               string `json:"image"`
	CentroidCoordinates struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"centroid_coordinates"`
	Date string `json:"date"`
}

// Parse decodes a raw EPIC JSON payload into records. Records with an
// unparseable date are skipped with a warning; an empty result is valid
// (a "no data" day, not an error).
func Parse(data []byte, logger *slog.Logger) ([]Record, error) {
	var wire []wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing imagery feed: %w", err)
	}

	records := make([]Record, 0, len(wire))
	for _, w := range wire {
		date, err := time.ParseInLocation(epicDateLayout, w.Date, time.UTC)
		if err != nil {
			logger.Warn("skipping imagery record with invalid date",
				"identifier", w.Identifier,
				"date", w.Date,
				"error", err,
			)
			continue
		}
		records = append(records, Record{
			Identifier: w.Identifier,
			Image:      w.Image,
			Date:       date,
			Subsolar: geo.Point{
				Lat: w.CentroidCoordinates.Lat,
				Lon: geo.NormalizeLon(w.CentroidCoordinates.Lon),
			},
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}
