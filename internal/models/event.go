package models

import "time"

// Event windows are measured from the origin time.
const (
	EventLeadTime  = 5 * time.Minute
	EventTrailTime = 10 * time.Minute
)

type Event struct {
	ID            string    `json:"eventId"`
	CatalogID     string    `json:"catalogId,omitempty"` // id assigned by the event service
	Provider      string    `json:"provider"`
	Latitude      float64   `json:"lat"`
	Longitude     float64   `json:"lng"`
	DepthKm       float64   `json:"depth"`
	Magnitude     *float64  `json:"mag"`
	MagnitudeType string    `json:"magType,omitempty"`
	OriginTime    time.Time `json:"originTime"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Description   string    `json:"description,omitempty"`
	Icon          string    `json:"icon"`
}

// SetOrigin stores the origin time and derives the event window around it.
func (e *Event) SetOrigin(t time.Time) {
	e.OriginTime = t.UTC()
	e.StartTime = e.OriginTime.Add(-EventLeadTime)
	e.EndTime = e.OriginTime.Add(EventTrailTime)
}

// Mag returns the magnitude or 0 when the catalog did not report one.
func (e *Event) Mag() float64 {
	if e.Magnitude == nil {
		return 0
	}
	return *e.Magnitude
}
