package epic

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const samplePayload = `[
	{"identifier": "20240320115936", "image": "epic_1b_20240320115936",
	 "centroid_coordinates": {"lat": 0.15, "lon": 1.84},
	 "date": "2024-03-20 11:59:36"},
	{"identifier": "20240320061512", "image": "epic_1b_20240320061512",
	 "centroid_coordinates": {"lat": 0.12, "lon": 87.5},
	 "date": "2024-03-20 06:15:12"}
]`

func TestParse(t *testing.T) {
	records, err := Parse([]byte(samplePayload), testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// Sorted ascending by capture time.
	if !records[0].Date.Before(records[1].Date) {
		t.Errorf("records not sorted: %v then %v", records[0].Date, records[1].Date)
	}

	latest := records[1]
	if latest.Identifier != "20240320115936" {
		t.Errorf("latest identifier = %q", latest.Identifier)
	}
	want := time.Date(2024, 3, 20, 11, 59, 36, 0, time.UTC)
	if !latest.Date.Equal(want) {
		t.Errorf("latest date = %v, want %v", latest.Date, want)
	}
	if latest.Subsolar.Lat != 0.15 || latest.Subsolar.Lon != 1.84 {
		t.Errorf("latest subsolar = %+v", latest.Subsolar)
	}
}

func TestParseSkipsBadDates(t *testing.T) {
	payload := `[
		{"identifier": "a", "centroid_coordinates": {"lat": 0, "lon": 0}, "date": "not a date"},
		{"identifier": "b", "centroid_coordinates": {"lat": 1, "lon": 2}, "date": "2024-03-20 12:00:00"}
	]`
	records, err := Parse([]byte(payload), testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Identifier != "b" {
		t.Errorf("expected only record b, got %+v", records)
	}
}

func TestParseEmptyIsNoData(t *testing.T) {
	records, err := Parse([]byte(`[]`), testLogger)
	if err != nil {
		t.Fatalf("empty payload should not error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte(`{nope`), testLogger); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestFetcherSuccess(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, samplePayload)
	}))
	defer server.Close()

	f := NewFetcher(server.URL)

	data, err := f.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if string(data) != samplePayload {
		t.Error("FetchLatest body mismatch")
	}

	_, err = f.FetchDate(context.Background(), time.Date(2024, 3, 20, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchDate: %v", err)
	}
	if gotPath != "/date/2024-03-20" {
		t.Errorf("FetchDate path = %q, want /date/2024-03-20", gotPath)
	}
}

func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewFetcher(server.URL)
	if _, err := f.FetchLatest(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

// TestFetcherBodyLimit verifies that oversized responses return an error
// instead of consuming unbounded memory.
func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 11; i++ {
			if _, err := io.WriteString(w, chunk); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	f := NewFetcher(server.URL)
	_, err := f.FetchLatest(context.Background())
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
}

func TestStoreLatest(t *testing.T) {
	s := NewStore()
	if s.Get() != nil {
		t.Error("empty store should return nil")
	}
	if s.AgeSeconds() != -1 {
		t.Error("empty store age should be -1")
	}

	records, err := Parse([]byte(samplePayload), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	s.Set(&Dataset{Source: "test", FetchedAt: time.Now(), Records: records})

	ds := s.Get()
	if ds == nil {
		t.Fatal("store returned nil after Set")
	}
	latest, ok := ds.Latest()
	if !ok || latest.Identifier != "20240320115936" {
		t.Errorf("Latest = %+v, ok=%v", latest, ok)
	}
	if s.AgeSeconds() < 0 {
		t.Error("age should be non-negative after Set")
	}

	var empty *Dataset
	if _, ok := empty.Latest(); ok {
		t.Error("nil dataset should report no latest record")
	}
}
