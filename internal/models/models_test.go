package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseSeedID(t *testing.T) {
	id, err := ParseSeedID("IU.ANMO.00.BHZ")
	if err != nil {
		t.Fatalf("ParseSeedID failed: %v", err)
	}
	if id.Network != "IU" || id.Station != "ANMO" || id.Location != "00" || id.Channel != "BHZ" {
		t.Errorf("unexpected seed id: %+v", id)
	}
	if id.String() != "IU.ANMO.00.BHZ" {
		t.Errorf("expected round trip, got %s", id.String())
	}

	empty, err := ParseSeedID("CI.PAS..BHZ")
	if err != nil {
		t.Fatalf("ParseSeedID with empty location failed: %v", err)
	}
	if empty.QueryLocation() != "--" {
		t.Errorf("expected -- for empty location, got %q", empty.QueryLocation())
	}

	for _, bad := range []string{"", "IU.ANMO.BHZ", ".ANMO.00.BHZ", "IU..00.BHZ", "IU.ANMO.00."} {
		if _, err := ParseSeedID(bad); !errors.Is(err, ErrInvalidSeedID) {
			t.Errorf("expected ErrInvalidSeedID for %q, got %v", bad, err)
		}
	}
}

func TestEvent_SetOrigin(t *testing.T) {
	origin := time.Date(2024, 1, 1, 7, 10, 9, 0, time.UTC)
	var e Event
	e.SetOrigin(origin)

	if !e.StartTime.Equal(origin.Add(-5 * time.Minute)) {
		t.Errorf("unexpected start time %v", e.StartTime)
	}
	if !e.EndTime.Equal(origin.Add(10 * time.Minute)) {
		t.Errorf("unexpected end time %v", e.EndTime)
	}
	if e.Mag() != 0 {
		t.Errorf("expected zero magnitude for nil, got %v", e.Mag())
	}
}

func TestChannel_OperatingDuring(t *testing.T) {
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)
	closed := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ch   Channel
		want bool
	}{
		{"open ended", Channel{StartTime: start.AddDate(-5, 0, 0)}, true},
		{"starts after window", Channel{StartTime: end.Add(time.Second)}, false},
		{"ended before window", Channel{StartTime: start.AddDate(-5, 0, 0), EndTime: &closed}, false},
		{"no start", Channel{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ch.OperatingDuring(start, end); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSearchRequest_NormalizeValidate(t *testing.T) {
	req := SearchRequest{
		Latitude:    49.17,
		Longitude:   236.04,
		RadiusKm:    500,
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Provider:    " service.iris.edu ",
		ChannelCode: "bhz",
	}
	req.Normalize()

	if req.Longitude < -123.97 || req.Longitude > -123.95 {
		t.Errorf("expected wrapped longitude near -123.96, got %v", req.Longitude)
	}
	if req.ChannelCode != "BHZ" || req.Provider != "service.iris.edu" {
		t.Errorf("unexpected normalized fields: %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	bad := req
	bad.End = bad.Start.Add(-time.Hour)
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for reversed dates, got %v", err)
	}

	bad = req
	bad.RadiusKm = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for zero radius, got %v", err)
	}

	bad = req
	bad.Latitude = 91
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for latitude, got %v", err)
	}

	bad = req
	bad.EventLimit = MaxEventLimit + 1
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for event limit, got %v", err)
	}

	bad = req
	bad.StationLimit = 1_000_000
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for station limit, got %v", err)
	}

	ok := req
	ok.EventLimit, ok.StationLimit = MaxEventLimit, MaxStationLimit
	if err := ok.Validate(); err != nil {
		t.Errorf("expected limits at the maximum to be valid, got %v", err)
	}
}

func TestWaveform_Times(t *testing.T) {
	w := Waveform{
		StartTime:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		SampleRate: 20,
		Samples:    []float64{1, 2, 3, 4, 5},
	}
	times := w.Times()
	if len(times) != 5 || times[4] != 0.2 {
		t.Errorf("unexpected times %v", times)
	}
	if want := w.StartTime.Add(200 * time.Millisecond); !w.EndTime().Equal(want) {
		t.Errorf("expected end %v, got %v", want, w.EndTime())
	}
}
