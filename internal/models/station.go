package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidSeedID = errors.New("invalid seed id")

// SeedID addresses a single channel as network.station.location.channel.
type SeedID struct {
	Network  string
	Station  string
	Location string
	Channel  string
}

func ParseSeedID(s string) (SeedID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return SeedID{}, fmt.Errorf("%w: %q", ErrInvalidSeedID, s)
	}
	id := SeedID{
		Network:  strings.TrimSpace(parts[0]),
		Station:  strings.TrimSpace(parts[1]),
		Location: strings.TrimSpace(parts[2]),
		Channel:  strings.TrimSpace(parts[3]),
	}
	if id.Network == "" || id.Station == "" || id.Channel == "" {
		return SeedID{}, fmt.Errorf("%w: %q", ErrInvalidSeedID, s)
	}
	return id, nil
}

func (id SeedID) String() string {
	return id.Network + "." + id.Station + "." + id.Location + "." + id.Channel
}

// QueryLocation is the location code as FDSN services expect it, where an
// empty location is spelled "--".
func (id SeedID) QueryLocation() string {
	if id.Location == "" {
		return "--"
	}
	return id.Location
}

// Channel is one row of a channel-level station inventory.
type Channel struct {
	Network    string
	Station    string
	Location   string
	Code       string
	Latitude   float64
	Longitude  float64
	ElevationM float64
	DepthM     float64
	Azimuth    float64
	Dip        float64
	Sensor     string
	SampleRate float64
	StartTime  time.Time
	EndTime    *time.Time // nil while the channel is still operating
}

func (c *Channel) SeedID() SeedID {
	return SeedID{
		Network:  c.Network,
		Station:  c.Station,
		Location: c.Location,
		Channel:  c.Code,
	}
}

// OperatingDuring reports whether the channel's epoch overlaps [start, end].
func (c *Channel) OperatingDuring(start, end time.Time) bool {
	if !c.StartTime.IsZero() && c.StartTime.After(end) {
		return false
	}
	if c.EndTime != nil && c.EndTime.Before(start) {
		return false
	}
	return true
}

// Station is a ranked recording station for one event.
type Station struct {
	SeedID     string     `json:"seedId"`
	Network    string     `json:"network"`
	Station    string     `json:"station"`
	Location   string     `json:"location"`
	Channel    string     `json:"channel"`
	Latitude   float64    `json:"lat"`
	Longitude  float64    `json:"lng"`
	ElevationM float64    `json:"elevation"`
	DepthM     float64    `json:"depth"`
	Sensor     string     `json:"sensor,omitempty"`
	SampleRate float64    `json:"sampleRate"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	DistanceKm float64    `json:"distanceKm"`
	Icon       string     `json:"icon"`
}

func (s *Station) ID() SeedID {
	return SeedID{
		Network:  s.Network,
		Station:  s.Station,
		Location: s.Location,
		Channel:  s.Channel,
	}
}
