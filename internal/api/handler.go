package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-quake-search/internal/models"
	"github.com/mr1hm/go-quake-search/internal/repository"
	"github.com/mr1hm/go-quake-search/internal/search"
	"github.com/mr1hm/go-quake-search/internal/stream"
)

// Searcher is the part of search.Service the HTTP layer uses.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
	Event(ctx context.Context, id string) (*models.Event, error)
	Stations(ctx context.Context, eventID string, r models.Ranking) ([]models.Station, error)
	ListEvents(ctx context.Context, f repository.Filter) ([]models.Event, error)
	Waveforms(ctx context.Context, eventID string, r models.Ranking, limit int) ([]models.StationWaveforms, error)
}

type Handler struct {
	svc         Searcher
	broadcaster *stream.Broadcaster
}

func NewHandler(svc Searcher, broadcaster *stream.Broadcaster) *Handler {
	return &Handler{
		svc:         svc,
		broadcaster: broadcaster,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/search", h.search)
	r.GET("/api/events", h.getEvents)
	r.GET("/api/events/stream", h.streamEvents)
	r.GET("/api/events/:id", h.getEvent)
	r.GET("/api/events/:id/stations", h.getStations)
	r.GET("/api/events/:id/waveforms", h.getWaveforms)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *Handler) search(c *gin.Context) {
	var body searchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	req, err := body.request()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Search(c.Request.Context(), req)
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, search.ErrNotStarted):
		fail(c, http.StatusServiceUnavailable, "search service unavailable")
		return
	case err != nil:
		slog.Error("search failed", "error", err)
		fail(c, http.StatusBadGateway, "failed to query seismic data services")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  searchMessage(len(result.EventIDs)),
		"eventIds": result.EventIDs,
		"events":   result.Events,
		"stations": result.Stations,
	})
}

func (h *Handler) getEvents(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20,
	}

	if m := c.Query("min_magnitude"); m != "" {
		if mag, err := strconv.ParseFloat(m, 64); err == nil {
			filter.MinMagnitude = &mag
		}
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(dateLayout, s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	events, err := h.svc.ListEvents(c.Request.Context(), filter)
	if err != nil {
		slog.Error("failed to list events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch events",
		})
		return
	}

	writeGeoJSON(c, eventsGeoJSON(events))
}

func (h *Handler) getEvent(c *gin.Context) {
	event, err := h.svc.Event(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// rankingQuery reads the optional channel and stations parameters that
// select one of an event's station lists. Without channel the latest list
// is used.
func rankingQuery(c *gin.Context) (models.Ranking, bool) {
	r := models.Ranking{ChannelCode: c.Query("channel")}
	if s := c.Query("stations"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > models.MaxStationLimit {
			fail(c, http.StatusBadRequest, "stations must be between 1 and "+strconv.Itoa(models.MaxStationLimit))
			return r, false
		}
		r.Limit = n
	}
	return r, true
}

func (h *Handler) getStations(c *gin.Context) {
	ranking, ok := rankingQuery(c)
	if !ok {
		return
	}

	stations, err := h.svc.Stations(c.Request.Context(), c.Param("id"), ranking)
	if err != nil {
		notFoundOr500(c, err)
		return
	}
	writeGeoJSON(c, stationsGeoJSON(stations))
}

func (h *Handler) getWaveforms(c *gin.Context) {
	ranking, ok := rankingQuery(c)
	if !ok {
		return
	}

	limit := search.DefaultMaxWaveforms
	if m := c.Query("max"); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	waveforms, err := h.svc.Waveforms(c.Request.Context(), c.Param("id"), ranking, limit)
	if err != nil {
		notFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, waveformsJSON(waveforms))
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func notFoundOr500(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	slog.Error("request failed", "path", c.FullPath(), "id", c.Param("id"), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"status":  "error",
		"message": message,
	})
}

func searchMessage(n int) string {
	switch n {
	case 0:
		return "no events found"
	case 1:
		return "found 1 event"
	default:
		return "found " + strconv.Itoa(n) + " events"
	}
}
