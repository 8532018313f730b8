package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

const dateLayout = "2006-01-02"

// flexFloat accepts a JSON number, a numeric string or an empty string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type searchBody struct {
	Lat         flexFloat `json:"lat"`
	Lng         flexFloat `json:"lng"`
	Radius      flexFloat `json:"radius"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	Magnitude   flexFloat `json:"magnitude"`
	Provider    string    `json:"provider"`
	ChannelCode string    `json:"channelCode"`
	Limit       int       `json:"limit"`
}

// request converts the form body into a search request. The end date is
// inclusive, so the search runs to the end of that day.
func (b searchBody) request() (models.SearchRequest, error) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(b.StartDate))
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("invalid startDate %q, expected YYYY-MM-DD", b.StartDate)
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(b.EndDate))
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("invalid endDate %q, expected YYYY-MM-DD", b.EndDate)
	}

	return models.SearchRequest{
		Latitude:     float64(b.Lat),
		Longitude:    float64(b.Lng),
		RadiusKm:     float64(b.Radius),
		Start:        start,
		End:          end.Add(24 * time.Hour),
		MinMagnitude: float64(b.Magnitude),
		Provider:     b.Provider,
		ChannelCode:  b.ChannelCode,
		EventLimit:   b.Limit,
	}, nil
}
