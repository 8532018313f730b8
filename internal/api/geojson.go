package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mr1hm/go-quake-search/internal/geo"
	"github.com/mr1hm/go-quake-search/internal/models"
)

func eventsGeoJSON(events []models.Event) *geojson.FeatureCollection {
	features := make([]*geojson.Feature, 0, len(events))

	for _, e := range events {
		p := geo.Point{Latitude: e.Latitude, Longitude: e.Longitude}
		features = append(features, &geojson.Feature{
			ID:       e.ID,
			Geometry: p.Geom(),
			Properties: map[string]any{
				"id":          e.ID,
				"catalog_id":  e.CatalogID,
				"provider":    e.Provider,
				"magnitude":   e.Magnitude,
				"mag_type":    e.MagnitudeType,
				"depth":       e.DepthKm,
				"origin_time": e.OriginTime,
				"description": e.Description,
				"icon":        e.Icon,
				"color":       geo.MagnitudeColor(e.Mag()),
			},
		})
	}

	return &geojson.FeatureCollection{Features: features}
}

func stationsGeoJSON(stations []models.Station) *geojson.FeatureCollection {
	features := make([]*geojson.Feature, 0, len(stations))

	for i, s := range stations {
		p := geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
		features = append(features, &geojson.Feature{
			ID:       s.SeedID,
			Geometry: p.Geom(),
			Properties: map[string]any{
				"seed_id":     s.SeedID,
				"network":     s.Network,
				"station":     s.Station,
				"location":    s.Location,
				"channel":     s.Channel,
				"sensor":      s.Sensor,
				"elevation":   s.ElevationM,
				"sample_rate": s.SampleRate,
				"distance_km": s.DistanceKm,
				"rank":        i + 1,
				"icon":        s.Icon,
			},
		})
	}

	return &geojson.FeatureCollection{Features: features}
}

func writeGeoJSON(c *gin.Context, fc *geojson.FeatureCollection) {
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

type waveformJSON struct {
	SeedID       string    `json:"seedId"`
	Network      string    `json:"network"`
	Station      string    `json:"station"`
	StartTime    string    `json:"starttime"`
	SamplingRate float64   `json:"sampling_rate"`
	Time         []float64 `json:"time"`
	Amplitude    []float64 `json:"amplitude"`
}

// waveformsJSON flattens station waveforms into one entry per contiguous
// segment, in station rank order.
func waveformsJSON(stations []models.StationWaveforms) []waveformJSON {
	out := make([]waveformJSON, 0, len(stations))
	for _, sw := range stations {
		for i := range sw.Segments {
			seg := &sw.Segments[i]
			out = append(out, waveformJSON{
				SeedID:       seg.SeedID.String(),
				Network:      sw.Station.Network,
				Station:      sw.Station.Station,
				StartTime:    seg.StartTime.UTC().Format("2006-01-02T15:04:05.000000Z"),
				SamplingRate: seg.SampleRate,
				Time:         seg.Times(),
				Amplitude:    seg.Samples,
			})
		}
	}
	return out
}
