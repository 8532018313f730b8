package fdsn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

type DataSelectQuery struct {
	Provider string
	SeedID   models.SeedID
	Start    time.Time
	End      time.Time
}

func (q DataSelectQuery) params() url.Values {
	return url.Values{
		"network":   {q.SeedID.Network},
		"station":   {q.SeedID.Station},
		"location":  {q.SeedID.QueryLocation()},
		"channel":   {q.SeedID.Channel},
		"starttime": {formatTime(q.Start)},
		"endtime":   {formatTime(q.End)},
		"nodata":    {"404"},
	}
}

// DataSelect fetches raw miniSEED for one channel and time window. It
// returns ErrNoData when the archive has nothing for the window.
func (c *Client) DataSelect(ctx context.Context, q DataSelectQuery) ([]byte, error) {
	body, err := c.get(ctx, serviceDataSelect, q.Provider, q.params())
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, err
		}
		return nil, fmt.Errorf("dataselect %s: %w", q.SeedID, err)
	}
	if len(body) == 0 {
		return nil, ErrNoData
	}
	return body, nil
}
