package ranking

import (
	"math"
	"path"
	"strings"

	"github.com/mr1hm/go-quake-search/internal/geo"
	"github.com/mr1hm/go-quake-search/internal/models"
)

type Options struct {
	// ChannelCode is matched case-insensitively. Comma separated parts
	// containing * or ? are globs, other parts match as substrings.
	ChannelCode string
	// ApprovedChannels, when set, replaces ChannelCode with exact matches.
	ApprovedChannels []string
	ApprovedNetworks []string
	Limit            int
}

// Rank returns the stations closest to the event epicenter. Each station
// contributes its first channel that matches the channel options and was
// operating during the event window.
func Rank(event models.Event, channels []models.Channel, opts Options) []models.Station {
	match := channelMatcher(opts)
	networks := upperSet(opts.ApprovedNetworks)
	epicenter := geo.Point{Latitude: event.Latitude, Longitude: event.Longitude}

	kc := NewKClosest(opts.Limit)
	seen := make(map[string]struct{})

	for i := range channels {
		ch := &channels[i]
		stationKey := ch.Network + "." + ch.Station
		if _, done := seen[stationKey]; done {
			continue
		}
		if networks != nil {
			if _, ok := networks[strings.ToUpper(ch.Network)]; !ok {
				continue
			}
		}
		if !match(ch.Code) || !ch.OperatingDuring(event.StartTime, event.EndTime) {
			continue
		}
		seen[stationKey] = struct{}{}

		dist := geo.Distance(epicenter, geo.Point{Latitude: ch.Latitude, Longitude: ch.Longitude})
		if math.IsInf(dist, 1) {
			continue
		}
		kc.Offer(stationFromChannel(ch, dist))
	}
	return kc.Sorted()
}

func stationFromChannel(ch *models.Channel, distanceKm float64) models.Station {
	return models.Station{
		SeedID:     ch.SeedID().String(),
		Network:    ch.Network,
		Station:    ch.Station,
		Location:   ch.Location,
		Channel:    ch.Code,
		Latitude:   ch.Latitude,
		Longitude:  ch.Longitude,
		ElevationM: ch.ElevationM,
		DepthM:     ch.DepthM,
		Sensor:     ch.Sensor,
		SampleRate: ch.SampleRate,
		StartTime:  ch.StartTime,
		EndTime:    ch.EndTime,
		DistanceKm: distanceKm,
		Icon:       geo.StationIcon,
	}
}

func channelMatcher(opts Options) func(code string) bool {
	if approved := upperSet(opts.ApprovedChannels); approved != nil {
		return func(code string) bool {
			_, ok := approved[strings.ToUpper(code)]
			return ok
		}
	}

	var patterns []string
	for _, p := range strings.Split(strings.ToUpper(opts.ChannelCode), ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return func(string) bool { return true }
	}

	return func(code string) bool {
		code = strings.ToUpper(code)
		for _, p := range patterns {
			if strings.ContainsAny(p, "*?") {
				if ok, err := path.Match(p, code); err == nil && ok {
					return true
				}
				continue
			}
			if strings.Contains(code, p) {
				return true
			}
		}
		return false
	}
}

func upperSet(values []string) map[string]struct{} {
	var set map[string]struct{}
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(values))
		}
		set[v] = struct{}{}
	}
	return set
}
