package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mr1hm/go-quake-search/internal/geo"
)

var ErrInvalidRequest = errors.New("invalid search request")

// Upper bounds on the per-search fan-out.
const (
	MaxEventLimit   = 50
	MaxStationLimit = 20
)

// SearchRequest describes a circular search region and the catalog filters
// applied to it.
type SearchRequest struct {
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lng"`
	RadiusKm     float64   `json:"radiusKm"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	MinMagnitude float64   `json:"minMagnitude"`
	Provider     string    `json:"provider"`
	ChannelCode  string    `json:"channelCode"`
	EventLimit   int       `json:"eventLimit"`
	StationLimit int       `json:"stationLimit"`
}

// Normalize wraps the longitude into [-180, 180) and tidies string fields.
func (r *SearchRequest) Normalize() {
	r.Longitude = geo.NormalizeLongitude(r.Longitude)
	r.Provider = strings.TrimSpace(r.Provider)
	r.ChannelCode = strings.ToUpper(strings.TrimSpace(r.ChannelCode))
}

func (r *SearchRequest) Validate() error {
	switch {
	case math.IsNaN(r.Latitude) || r.Latitude < -90 || r.Latitude > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidRequest, r.Latitude)
	case math.IsNaN(r.Longitude):
		return fmt.Errorf("%w: longitude is not a number", ErrInvalidRequest)
	case !(r.RadiusKm > 0):
		return fmt.Errorf("%w: radius must be positive", ErrInvalidRequest)
	case r.Start.IsZero() || r.End.IsZero():
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRequest)
	case r.End.Before(r.Start):
		return fmt.Errorf("%w: end date before start date", ErrInvalidRequest)
	case r.ChannelCode == "":
		return fmt.Errorf("%w: channel code is required", ErrInvalidRequest)
	case r.Provider == "":
		return fmt.Errorf("%w: provider is required", ErrInvalidRequest)
	case r.EventLimit < 0 || r.StationLimit < 0:
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidRequest)
	case r.EventLimit > MaxEventLimit:
		return fmt.Errorf("%w: event limit %d above %d", ErrInvalidRequest, r.EventLimit, MaxEventLimit)
	case r.StationLimit > MaxStationLimit:
		return fmt.Errorf("%w: station limit %d above %d", ErrInvalidRequest, r.StationLimit, MaxStationLimit)
	}
	return nil
}

// Ranking returns the parameters the request's station lists are ranked by.
func (r SearchRequest) Ranking() Ranking {
	return Ranking{ChannelCode: r.ChannelCode, Limit: r.StationLimit}
}

// Ranking identifies one ranked station list of an event. The same event
// found by searches for different channels or limits has one list each.
type Ranking struct {
	ChannelCode string
	Limit       int
}

// SearchResult holds the events found for a search and the ranked stations
// for each of them, both keyed by event ID. EventIDs keeps the catalog order.
type SearchResult struct {
	EventIDs []string             `json:"eventIds"`
	Events   map[string]Event     `json:"events"`
	Stations map[string][]Station `json:"stations"`
}

func NewSearchResult() *SearchResult {
	return &SearchResult{
		EventIDs: []string{},
		Events:   make(map[string]Event),
		Stations: make(map[string][]Station),
	}
}

func (r *SearchResult) AddEvent(e Event, stations []Station) {
	if _, ok := r.Events[e.ID]; !ok {
		r.EventIDs = append(r.EventIDs, e.ID)
	}
	if stations == nil {
		stations = []Station{}
	}
	r.Events[e.ID] = e
	r.Stations[e.ID] = stations
}
