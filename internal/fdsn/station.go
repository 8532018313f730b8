package fdsn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

var channelColumns = []string{
	"Network", "Station", "Location", "Channel", "Latitude", "Longitude", "Elevation",
	"Depth", "Azimuth", "Dip", "SensorDescription", "Scale", "ScaleFreq", "ScaleUnits",
	"SampleRate", "StartTime", "EndTime",
}

// some services close open epochs with a far future date instead of leaving
// EndTime empty
const openEpochYear = 2500

type StationQuery struct {
	Provider        string
	Latitude        float64
	Longitude       float64
	MaxRadiusDeg    float64
	Start           time.Time
	End             time.Time
	Network         string // comma separated, optional
	ChannelCode     string // may contain FDSN wildcards
	MatchTimeSeries bool
}

func (q StationQuery) params() url.Values {
	p := url.Values{
		"latitude":          {formatFloat(q.Latitude)},
		"longitude":         {formatFloat(q.Longitude)},
		"maxradius":         {formatFloat(q.MaxRadiusDeg)},
		"starttime":         {formatTime(q.Start)},
		"endtime":           {formatTime(q.End)},
		"level":             {"channel"},
		"format":            {"text"},
		"includerestricted": {"false"},
		"nodata":            {"404"},
	}
	if q.Network != "" {
		p.Set("network", q.Network)
	}
	if q.ChannelCode != "" {
		p.Set("channel", q.ChannelCode)
	}
	if q.MatchTimeSeries {
		p.Set("matchtimeseries", "true")
	}
	return p
}

// Channels runs a channel-level fdsnws-station query.
func (c *Client) Channels(ctx context.Context, q StationQuery) ([]models.Channel, error) {
	body, err := c.get(ctx, serviceStation, q.Provider, q.params())
	if errors.Is(err, ErrNoData) {
		return []models.Channel{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("station query: %w", err)
	}

	channels, err := ParseChannels(body)
	if err != nil {
		return nil, fmt.Errorf("station query: %w", err)
	}
	return channels, nil
}

// ParseChannels decodes a channel-level fdsnws-station text response.
func ParseChannels(body []byte) ([]models.Channel, error) {
	channels := []models.Channel{}
	err := scanText(body, channelColumns, func(row textRow) {
		ch := models.Channel{
			Network:  row.get("Network"),
			Station:  row.get("Station"),
			Location: row.get("Location"),
			Code:     row.get("Channel"),
			Sensor:   row.get("SensorDescription"),
		}
		lat, okLat := row.float("Latitude")
		lon, okLon := row.float("Longitude")
		if ch.Network == "" || ch.Station == "" || ch.Code == "" || !okLat || !okLon {
			slog.Debug("skipping malformed channel row", "network", ch.Network, "station", ch.Station)
			return
		}
		ch.Latitude, ch.Longitude = lat, lon
		ch.ElevationM, _ = row.float("Elevation")
		ch.DepthM, _ = row.float("Depth")
		ch.Azimuth, _ = row.float("Azimuth")
		ch.Dip, _ = row.float("Dip")
		ch.SampleRate, _ = row.float("SampleRate")
		ch.StartTime, _ = row.time("StartTime")
		if end, ok := row.time("EndTime"); ok && end.Year() < openEpochYear {
			ch.EndTime = &end
		}

		channels = append(channels, ch)
	})
	if err != nil {
		return nil, fmt.Errorf("error reading station text: %w", err)
	}
	return channels, nil
}
