// Package sscweb retrieves spacecraft locations from a satellite situation
// center style web service: given a time window and spacecraft names, it
// returns Cartesian GSE position time series and keeps only the newest
// sample per spacecraft. The frame is assumed aligned with the
// ground-station frame; the cone test depends on that assumption.
package sscweb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://sscweb.gsfc.nasa.gov/WS/sscr/2"

// urlTimeLayout formats window bounds into the locations URL.
const urlTimeLayout = "20060102T150405Z"

// maxBodyBytes caps response reads.
const maxBodyBytes = 10 << 20

// Fetcher retrieves raw location data from the remote source.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewFetcher creates a Fetcher for the given base URL. An empty baseURL
// selects the public service endpoint.
func NewFetcher(baseURL string) *Fetcher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the configured base URL.
func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Fetch retrieves GSE locations for the named spacecraft over [start, end].
// URL shape: {base}/locations/{sat1,sat2,...}/{start},{end}/gse
func (f *Fetcher) Fetch(ctx context.Context, spacecraft []string, start, end time.Time) ([]byte, error) {
	if len(spacecraft) == 0 {
		return nil, fmt.Errorf("no spacecraft requested")
	}

	url := fmt.Sprintf("%s/locations/%s/%s,%s/gse",
		f.baseURL,
		strings.Join(spacecraft, ","),
		start.UTC().Format(urlTimeLayout),
		end.UTC().Format(urlTimeLayout),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching spacecraft locations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}

	return body, nil
}
