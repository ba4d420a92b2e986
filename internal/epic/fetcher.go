// Package epic retrieves Earth imagery metadata (capture time, image
// identifier, subsolar centroid) from an EPIC-style API. The subsolar
// centroid from the feed is what anchors the globe rotation to real
// imagery; the locally computed solar ephemeris fills in between records.
package epic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://epic.gsfc.nasa.gov/api/natural"

// maxBodyBytes caps response reads so a misbehaving upstream can't consume
// unbounded memory.
const maxBodyBytes = 10 << 20

// Fetcher retrieves raw imagery metadata from the remote source.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewFetcher creates a Fetcher for the given base URL. An empty baseURL
// selects the public EPIC endpoint.
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

// FetchLatest retrieves the most recent day's records.
func (f *Fetcher) FetchLatest(ctx context.Context) ([]byte, error) {
	return f.get(ctx, f.baseURL)
}

// FetchDate retrieves the records for a specific UTC date.
func (f *Fetcher) FetchDate(ctx context.Context, date time.Time) ([]byte, error) {
	url := fmt.Sprintf("%s/date/%s", f.baseURL, date.UTC().Format("2006-01-02"))
	return f.get(ctx, url)
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching imagery metadata: %w", err)
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
