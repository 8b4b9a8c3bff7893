package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/covers-forecast/internal/analogs"
	"github.com/miradorstack/covers-forecast/internal/cache"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/synth"
)

func testRequest() models.ForecastRequest {
	return models.ForecastRequest{
		LocationID:    "paris-11",
		ServiceDate:   time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC),
		ServicePeriod: models.PeriodDinner,
	}
}

type transportFunc func(*http.Request) (*http.Response, error)

func (f transportFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func clientFor(f transportFunc) *http.Client {
	return &http.Client{Transport: f}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func TestFindAnalogsNoEndpointUsesGenerator(t *testing.T) {
	r := NewWeaviateRepo("", "", time.Second, cache.NoopProvider{}, 0, nil)
	req := testRequest()
	snapshot := synth.Synthesize(req.ServiceDate)

	got, err := r.FindAnalogs(context.Background(), req, snapshot, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := analogs.NewGenerator().Generate(req, snapshot)
	if len(got) != len(want) {
		t.Fatalf("expected %d analogs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ObservedCovers != want[i].ObservedCovers || got[i].Similarity != want[i].Similarity {
			t.Fatalf("analog %d differs from generator: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestFindAnalogsParsesAndCaches(t *testing.T) {
	var hits int
	store, err := cache.NewMemoryProvider(8)
	if err != nil {
		t.Fatalf("memory cache: %v", err)
	}
	r := NewWeaviateRepo("https://weaviate.test", "secret", time.Second, store, time.Minute, nil)
	r.httpClient = clientFor(transportFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		if req.URL.Path != "/v1/graphql" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var payload map[string]string
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !strings.Contains(payload["query"], `valueString: "paris-11"`) {
			t.Fatalf("query missing location filter: %s", payload["query"])
		}
		return jsonResponse(http.StatusOK, `{"data":{"Get":{"HistoricalDay":[
			{"serviceDate":"2024-06-15T00:00:00Z","label":"Concert nearby","covers":141.6,"dayOfWeek":"Saturday","weather":"Clear","events":1,"holiday":"","_additional":{"id":"a1","certainty":0.874}},
			{"serviceDate":"2024-03-16T00:00:00Z","label":"Regular weekend service","covers":128,"dayOfWeek":"Saturday","weather":"Rain","events":0,"holiday":"","_additional":{"id":"","certainty":0.931}}
		]}}}`), nil
	}))

	ctx := context.Background()
	req := testRequest()
	snapshot := synth.Synthesize(req.ServiceDate)

	first, err := r.FindAnalogs(ctx, req, snapshot, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 analogs, got %d", len(first))
	}
	if first[0].Similarity != 0.93 || first[0].ObservedCovers != 128 || first[0].ID != "pat_001" {
		t.Fatalf("unexpected top analog %+v", first[0])
	}
	if first[1].ObservedCovers != 142 || first[1].ID != "a1" || first[1].Metadata["events"] != "1" {
		t.Fatalf("unexpected second analog %+v", first[1])
	}

	second, err := r.FindAnalogs(ctx, req, snapshot, 3)
	if err != nil {
		t.Fatalf("unexpected error on cached call: %v", err)
	}
	if hits != 1 {
		t.Fatalf("cache miss triggered network call; hits=%d", hits)
	}
	if len(second) != 2 || second[0].Similarity != 0.93 {
		t.Fatalf("unexpected cached payload: %+v", second)
	}
	if _, err := store.Get(ctx, "analogs:paris-11:dinner:2025-06-14:3"); err != nil {
		t.Fatalf("expected analogs cached under location/period/date key: %v", err)
	}
}

func TestFindAnalogsFallsBackOnFailure(t *testing.T) {
	cases := map[string]transportFunc{
		"transport": func(*http.Request) (*http.Response, error) { return nil, errors.New("dial tcp: refused") },
		"status": func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway, "bad gateway"), nil
		},
		"graphql": func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"errors":[{"message":"no class"}]}`), nil
		},
		"empty": func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"data":{"Get":{"HistoricalDay":[]}}}`), nil
		},
	}
	for name, rt := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewWeaviateRepo("https://weaviate.test", "", time.Second, nil, time.Minute, nil)
			r.httpClient = clientFor(rt)
			req := testRequest()

			got, err := r.FindAnalogs(context.Background(), req, synth.Synthesize(req.ServiceDate), 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != analogs.Count {
				t.Fatalf("expected synthetic analogs, got %d", len(got))
			}
		})
	}
}

func TestFindAnalogsNormalisesRecords(t *testing.T) {
	r := NewWeaviateRepo("https://weaviate.test", "", time.Second, nil, 0, nil)
	r.httpClient = clientFor(transportFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":{"Get":{"HistoricalDay":[
			{"serviceDate":"2024-06-15T00:00:00Z","label":"Closed","covers":0,"_additional":{"id":"a","certainty":0.93}},
			{"serviceDate":"2024-06-08T00:00:00Z","label":"Bad row","covers":-5,"_additional":{"id":"b","certainty":1.4}},
			{"serviceDate":"2024-06-01T00:00:00Z","label":"Overconfident","covers":131.2,"_additional":{"id":"c","certainty":1.4}},
			{"serviceDate":"2024-05-25T00:00:00Z","label":"Regular weekend service","covers":118,"_additional":{"id":"d","certainty":-0.2}}
		]}}}`), nil
	}))
	req := testRequest()

	got, err := r.FindAnalogs(context.Background(), req, synth.Synthesize(req.ServiceDate), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected zero and negative covers to be dropped, got %+v", got)
	}
	if got[0].ID != "c" || got[0].Similarity != 1 || got[0].ObservedCovers != 131 {
		t.Fatalf("unexpected top analog %+v", got[0])
	}
	if got[1].ID != "d" || got[1].Similarity != 0 {
		t.Fatalf("expected negative certainty clamped to 0, got %+v", got[1])
	}
	for _, a := range got {
		if a.ObservedCovers < 1 || a.Similarity < 0 || a.Similarity > 1 {
			t.Fatalf("analog outside valid range: %+v", a)
		}
	}
}

func TestHistoricalDaysSkipsEmptyDays(t *testing.T) {
	history := []models.Observation{
		{Date: time.Date(2024, time.December, 24, 0, 0, 0, 0, time.UTC), Covers: 0},
		{Date: time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC), Covers: 180.4},
		{Date: time.Date(2024, time.December, 26, 0, 0, 0, 0, time.UTC), Covers: -3},
		{Date: time.Date(2024, time.December, 27, 0, 0, 0, 0, time.UTC), Covers: math.NaN()},
	}
	days := HistoricalDays("paris-11", models.PeriodDinner, history)
	if len(days) != 1 || days[0].Covers != 180 {
		t.Fatalf("expected only the Christmas day to be kept, got %+v", days)
	}
}

func TestIndexHistory(t *testing.T) {
	var body map[string][]map[string]any
	r := NewWeaviateRepo("https://weaviate.test", "", time.Second, nil, 0, nil)
	r.httpClient = clientFor(transportFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/batch/objects" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	}))

	history := []models.Observation{
		{Date: time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC), Covers: 180.4},
		{Date: time.Date(2024, time.December, 26, 0, 0, 0, 0, time.UTC), Covers: 95},
	}
	days := HistoricalDays("paris-11", models.PeriodDinner, history)
	if err := r.IndexHistory(context.Background(), days); err != nil {
		t.Fatalf("index history: %v", err)
	}
	if len(body["objects"]) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(body["objects"]))
	}
	props := body["objects"][0]["properties"].(map[string]any)
	wantLabel := analogs.Label(synth.Synthesize(history[0].Date))
	if props["label"] != wantLabel || props["covers"].(float64) != 180 || props["holiday"] != "Christmas" {
		t.Fatalf("unexpected properties %+v", props)
	}
}

func TestIndexHistoryNoEndpoint(t *testing.T) {
	r := NewWeaviateRepo("", "", time.Second, nil, 0, nil)
	if err := r.IndexHistory(context.Background(), []HistoricalDay{{LocationID: "x"}}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestIndexHistoryErrorStatus(t *testing.T) {
	r := NewWeaviateRepo("https://weaviate.test", "", time.Second, nil, 0, nil)
	r.httpClient = clientFor(transportFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, "invalid class"), nil
	}))
	err := r.IndexHistory(context.Background(), []HistoricalDay{{LocationID: "x", Date: time.Now()}})
	if err == nil || !strings.Contains(err.Error(), "invalid class") {
		t.Fatalf("expected error with body, got %v", err)
	}
}
