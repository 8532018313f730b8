package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-quake-search/internal/models"
	"github.com/mr1hm/go-quake-search/internal/repository"
	"github.com/mr1hm/go-quake-search/internal/stream"
)

// mockSearcher implements Searcher for testing
type mockSearcher struct {
	mu        sync.Mutex
	events    []models.Event
	stations  map[string][]models.Station
	waveforms []models.StationWaveforms
	searchErr error
	lastReq     models.SearchRequest
	lastLimit   int
	lastRanking models.Ranking
}

func (m *mockSearcher) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	result := models.NewSearchResult()
	for _, e := range m.events {
		result.AddEvent(e, m.stations[e.ID])
	}
	return result, nil
}

func (m *mockSearcher) Event(ctx context.Context, id string) (*models.Event, error) {
	for _, e := range m.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockSearcher) Stations(ctx context.Context, eventID string, r models.Ranking) ([]models.Station, error) {
	m.lastRanking = r
	stations, ok := m.stations[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return stations, nil
}

func (m *mockSearcher) ListEvents(ctx context.Context, opts repository.Filter) ([]models.Event, error) {
	results := m.events

	// Apply magnitude filter
	if opts.MinMagnitude != nil {
		var filtered []models.Event
		for _, e := range results {
			if e.Mag() >= *opts.MinMagnitude {
				filtered = append(filtered, e)
			}
		}
		results = filtered
	}

	// Apply limit
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

func (m *mockSearcher) Waveforms(ctx context.Context, eventID string, r models.Ranking, limit int) ([]models.StationWaveforms, error) {
	m.lastLimit = limit
	m.lastRanking = r
	if _, err := m.Event(ctx, eventID); err != nil {
		return nil, err
	}
	if len(m.waveforms) > limit {
		return m.waveforms[:limit], nil
	}
	return m.waveforms, nil
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		ID       string `json:"id"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func mag(v float64) *float64 { return &v }

func testEvent(id string, m float64) models.Event {
	e := models.Event{ID: id, Provider: "service.iris.edu", Latitude: 35.0, Longitude: 139.0, Magnitude: mag(m)}
	e.SetOrigin(time.Date(2024, 1, 1, 7, 10, 9, 0, time.UTC))
	return e
}

func setupTestRouter(svc Searcher, bus *stream.Broadcaster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(svc, bus)
	handler.RegisterRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func TestSearch_ReturnsEventsAndStations(t *testing.T) {
	svc := &mockSearcher{
		events: []models.Event{testEvent("eq1", 7.5), testEvent("eq2", 6.0)},
		stations: map[string][]models.Station{
			"eq1": {{SeedID: "IU.MAJO..BHZ", Network: "IU", Station: "MAJO", Channel: "BHZ"}},
		},
	}
	router := setupTestRouter(svc, nil)

	body := `{"lat":37.5,"lng":137.3,"radius":"500","startDate":"2024-01-01","endDate":"2024-01-01","magnitude":"5.5","provider":"service.iris.edu","channelCode":"BHZ","limit":3}`
	w := doRequest(router, "POST", "/api/search", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status   string                      `json:"status"`
		Message  string                      `json:"message"`
		EventIDs []string                    `json:"eventIds"`
		Events   map[string]models.Event     `json:"events"`
		Stations map[string][]models.Station `json:"stations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.Status != "success" || resp.Message != "found 2 events" {
		t.Errorf("unexpected status/message: %s/%s", resp.Status, resp.Message)
	}
	if len(resp.EventIDs) != 2 || resp.EventIDs[0] != "eq1" || resp.EventIDs[1] != "eq2" {
		t.Errorf("expected event ids in catalog order, got %v", resp.EventIDs)
	}
	eq1 := resp.Events["eq1"]
	if len(resp.Events) != 2 || eq1.Mag() != 7.5 || resp.Events["eq2"].ID != "eq2" {
		t.Errorf("expected events keyed by id, got %+v", resp.Events)
	}
	if len(resp.Stations["eq1"]) != 1 || len(resp.Stations["eq2"]) != 0 {
		t.Errorf("unexpected stations: %+v", resp.Stations)
	}

	req := svc.lastReq
	if req.MinMagnitude != 5.5 || req.RadiusKm != 500 || req.EventLimit != 3 {
		t.Errorf("unexpected request: %+v", req)
	}
	if want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC); !req.End.Equal(want) {
		t.Errorf("expected inclusive end date %v, got %v", want, req.End)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"malformed json", `{"lat":`, nil, http.StatusBadRequest},
		{"bad magnitude", `{"lat":1,"lng":1,"radius":1,"startDate":"2024-01-01","endDate":"2024-01-02","magnitude":"big"}`, nil, http.StatusBadRequest},
		{"bad date", `{"lat":1,"lng":1,"radius":1,"startDate":"01/01/2024","endDate":"2024-01-02"}`, nil, http.StatusBadRequest},
		{"invalid request", `{"lat":1,"lng":1,"radius":0,"startDate":"2024-01-01","endDate":"2024-01-02"}`, fmt.Errorf("%w: radius must be positive", models.ErrInvalidRequest), http.StatusBadRequest},
		{"upstream failure", `{"lat":1,"lng":1,"radius":100,"startDate":"2024-01-01","endDate":"2024-01-02"}`, errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(&mockSearcher{searchErr: tt.err}, nil)
			w := doRequest(router, "POST", "/api/search", tt.body)

			if w.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, w.Code)
			}
			var resp map[string]string
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp["status"] != "error" || resp["message"] == "" {
				t.Errorf("expected error body, got %s", w.Body.String())
			}
		})
	}
}

func TestGetEvents_ReturnsGeoJSON(t *testing.T) {
	svc := &mockSearcher{events: []models.Event{testEvent("eq1", 5.5)}}
	router := setupTestRouter(svc, nil)

	w := doRequest(router, "GET", "/api/events", "")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	// Check content type
	contentType := w.Header().Get("Content-Type")
	if contentType != "application/geo+json" {
		t.Errorf("expected content-type application/geo+json, got %s", contentType)
	}

	var fc featureCollection
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if fc.Type != "FeatureCollection" {
		t.Errorf("expected type FeatureCollection, got %s", fc.Type)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}

	f := fc.Features[0]
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) != 2 || f.Geometry.Coordinates[0] != 139.0 {
		t.Errorf("expected lon/lat point, got %+v", f.Geometry)
	}
	if f.Properties["magnitude"] != 5.5 {
		t.Errorf("expected magnitude 5.5, got %v", f.Properties["magnitude"])
	}
}

func TestGetEvents_MagnitudeFilter(t *testing.T) {
	svc := &mockSearcher{
		events: []models.Event{testEvent("e1", 6.0), testEvent("e2", 4.0), testEvent("e3", 7.5)},
	}
	router := setupTestRouter(svc, nil)

	w := doRequest(router, "GET", "/api/events?min_magnitude=5.0", "")

	var fc featureCollection
	json.Unmarshal(w.Body.Bytes(), &fc)

	if len(fc.Features) != 2 {
		t.Errorf("expected 2 events with mag >= 5.0, got %d", len(fc.Features))
	}
}

func TestGetEvents_LimitFilter(t *testing.T) {
	svc := &mockSearcher{}
	for i := 0; i < 5; i++ {
		svc.events = append(svc.events, testEvent(fmt.Sprintf("e%d", i), 5))
	}
	router := setupTestRouter(svc, nil)

	w := doRequest(router, "GET", "/api/events?limit=3", "")

	var fc featureCollection
	json.Unmarshal(w.Body.Bytes(), &fc)

	if len(fc.Features) != 3 {
		t.Errorf("expected 3 events, got %d", len(fc.Features))
	}
}

func TestGetEvent(t *testing.T) {
	router := setupTestRouter(&mockSearcher{events: []models.Event{testEvent("eq1", 6.1)}}, nil)

	w := doRequest(router, "GET", "/api/events/eq1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var e models.Event
	json.Unmarshal(w.Body.Bytes(), &e)
	if e.ID != "eq1" || e.Mag() != 6.1 {
		t.Errorf("unexpected event %+v", e)
	}

	w = doRequest(router, "GET", "/api/events/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetStations_ReturnsRankedGeoJSON(t *testing.T) {
	svc := &mockSearcher{stations: map[string][]models.Station{
		"eq1": {
			{SeedID: "IU.MAJO..BHZ", Latitude: 36.5, Longitude: 138.2, DistanceKm: 134},
			{SeedID: "II.ERM..BHZ", Latitude: 42.0, Longitude: 143.2, DistanceKm: 700},
		},
	}}
	router := setupTestRouter(svc, nil)

	w := doRequest(router, "GET", "/api/events/eq1/stations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var fc featureCollection
	json.Unmarshal(w.Body.Bytes(), &fc)
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(fc.Features))
	}
	if fc.Features[0].ID != "IU.MAJO..BHZ" || fc.Features[1].Properties["rank"] != 2.0 {
		t.Errorf("unexpected station order: %+v", fc.Features)
	}

	if svc.lastRanking != (models.Ranking{}) {
		t.Errorf("expected latest ranking without parameters, got %+v", svc.lastRanking)
	}

	w = doRequest(router, "GET", "/api/events/other/stations", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetStations_SelectsRanking(t *testing.T) {
	svc := &mockSearcher{stations: map[string][]models.Station{"eq1": {}}}
	router := setupTestRouter(svc, nil)

	w := doRequest(router, "GET", "/api/events/eq1/stations?channel=HHZ&stations=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if want := (models.Ranking{ChannelCode: "HHZ", Limit: 3}); svc.lastRanking != want {
		t.Errorf("expected ranking %+v, got %+v", want, svc.lastRanking)
	}

	for _, q := range []string{"stations=0", "stations=many", "stations=21"} {
		w := doRequest(router, "GET", "/api/events/eq1/stations?channel=BHZ&"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", q, w.Code)
		}
	}

	doRequest(router, "GET", "/api/events/eq1/waveforms?channel=BHZ", "")
	if want := (models.Ranking{ChannelCode: "BHZ"}); svc.lastRanking != want {
		t.Errorf("expected waveform ranking %+v, got %+v", want, svc.lastRanking)
	}
}

func TestGetWaveforms(t *testing.T) {
	start := time.Date(2024, 1, 1, 7, 5, 9, 0, time.UTC)
	seg := func(sta string) models.StationWaveforms {
		id := models.SeedID{Network: "IU", Station: sta, Channel: "BHZ"}
		return models.StationWaveforms{
			Station:  models.Station{SeedID: id.String(), Network: "IU", Station: sta, Channel: "BHZ"},
			Segments: []models.Waveform{{SeedID: id, StartTime: start, SampleRate: 2, Samples: []float64{1, 2, 3}}},
		}
	}
	svc := &mockSearcher{
		events:    []models.Event{testEvent("eq1", 7)},
		waveforms: []models.StationWaveforms{seg("MAJO"), seg("ERM"), seg("ANMO")},
	}
	router := setupTestRouter(svc, nil)

	w := doRequest(router, "GET", "/api/events/eq1/waveforms?max=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if svc.lastLimit != 2 || len(resp) != 2 {
		t.Fatalf("expected 2 waveforms, got %d (limit %d)", len(resp), svc.lastLimit)
	}
	if resp[0]["seedId"] != "IU.MAJO..BHZ" || resp[0]["sampling_rate"] != 2.0 {
		t.Errorf("unexpected waveform %v", resp[0])
	}
	if resp[0]["starttime"] != "2024-01-01T07:05:09.000000Z" {
		t.Errorf("unexpected starttime %v", resp[0]["starttime"])
	}
	if times := resp[0]["time"].([]any); len(times) != 3 || times[2] != 1.0 {
		t.Errorf("unexpected time axis %v", times)
	}

	doRequest(router, "GET", "/api/events/eq1/waveforms", "")
	if svc.lastLimit != 5 {
		t.Errorf("expected default limit 5, got %d", svc.lastLimit)
	}

	w = doRequest(router, "GET", "/api/events/missing/waveforms", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestStreamEvents(t *testing.T) {
	bus := stream.NewBroadcaster(10)
	defer bus.Close()

	srv := httptest.NewServer(setupTestRouter(&mockSearcher{}, bus))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events/stream?min_magnitude=6")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("expected event stream, got %s", ct)
	}

	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	small := testEvent("small", 4.0)
	big := testEvent("big", 7.0)
	bus.Broadcast(&small)
	bus.Broadcast(&big)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var e models.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &e); err != nil {
			t.Fatalf("failed to parse event: %v", err)
		}
		if e.ID != "big" {
			t.Errorf("expected only the M7 event, got %s", e.ID)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1, 1))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := doRequest(router, "GET", "/ping", "")
	second := doRequest(router, "GET", "/ping", "")

	if first.Code != http.StatusOK {
		t.Errorf("expected first request to pass, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("expected second request to be limited, got %d", second.Code)
	}
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(&mockSearcher{}, nil)

	w := doRequest(router, "GET", "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}
