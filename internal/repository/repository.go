package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

var ErrNotFound = errors.New("not found")

type Filter struct {
	Limit        int
	Offset       int
	Since        *time.Time // origin time >= Since
	MinMagnitude *float64
	Provider     string
}

// WaveformKey addresses the waveform cache: one channel over one request
// window.
type WaveformKey struct {
	SeedID models.SeedID
	Start  time.Time
	End    time.Time
}

type EventStore interface {
	SaveEvents(ctx context.Context, events []models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, opts Filter) ([]models.Event, error)
}

// StationStore keeps ranked station lists per event and ranking key. The
// ranking key names the parameters a list was ranked with, so searches for
// the same event with other channels or limits do not overwrite each other.
type StationStore interface {
	SaveStations(ctx context.Context, eventID, ranking string, stations []models.Station) error
	// GetStations with an empty ranking returns the latest saved list.
	GetStations(ctx context.Context, eventID, ranking string) ([]models.Station, error)
}

type WaveformStore interface {
	SaveWaveforms(ctx context.Context, key WaveformKey, segments []models.Waveform) error
	GetWaveforms(ctx context.Context, key WaveformKey) ([]models.Waveform, error)
}

// SearchCache stores whole search results by search key. Misses return
// ErrNotFound.
type SearchCache interface {
	GetSearch(ctx context.Context, key string) (*models.SearchResult, error)
	PutSearch(ctx context.Context, key string, result *models.SearchResult, ttl time.Duration) error
}

// Store is the full cache the search service works against.
type Store interface {
	EventStore
	StationStore
	WaveformStore
	SearchCache
	PurgeExpired(ctx context.Context) (int64, error)
}
