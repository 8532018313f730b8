package fdsn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mr1hm/go-quake-search/internal/observability"
)

// ErrNoData is returned when a service answers 204 or 404 for a query.
var ErrNoData = errors.New("fdsn: no data")

const (
	serviceEvent      = "event"
	serviceStation    = "station"
	serviceDataSelect = "dataselect"

	queryTimeLayout = "2006-01-02T15:04:05"
	maxBodyBytes    = 64 << 20
)

type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64 // per host; <= 0 disables limiting
	UserAgent         string
}

func DefaultOptions() Options {
	return Options{
		Timeout:           30 * time.Second,
		MaxRetries:        2,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		RequestsPerSecond: 5,
		UserAgent:         "go-quake-search/1.0",
	}
}

// Client talks to FDSN web services (fdsnws-event, fdsnws-station and
// fdsnws-dataselect) on any provider host.
type Client struct {
	httpClient *http.Client
	opts       Options
	metrics    *observability.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(opts Options, metrics *observability.Metrics) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = def.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		opts:     opts,
		metrics:  metrics,
		limiters: make(map[string]*rate.Limiter),
	}
}

// transientError marks failures worth retrying: network errors, 429 and 5xx.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// ServiceURL builds the query endpoint for a service on a provider. The
// provider is a bare host ("service.iris.edu") or a base URL.
func ServiceURL(provider, service string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", errors.New("fdsn: provider is required")
	}
	if !strings.Contains(provider, "://") {
		provider = "https://" + provider
	}
	u, err := url.Parse(provider)
	if err != nil {
		return "", fmt.Errorf("fdsn: invalid provider %q: %w", provider, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("fdsn: invalid provider %q", provider)
	}
	return strings.TrimRight(u.String(), "/") + "/fdsnws/" + service + "/1/query", nil
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		if c.opts.RequestsPerSecond <= 0 {
			l = rate.NewLimiter(rate.Inf, 1)
		} else {
			burst := int(c.opts.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
			l = rate.NewLimiter(rate.Limit(c.opts.RequestsPerSecond), burst)
		}
		c.limiters[host] = l
	}
	return l
}

func (c *Client) get(ctx context.Context, service, provider string, params url.Values) ([]byte, error) {
	endpoint, err := ServiceURL(provider, service)
	if err != nil {
		return nil, err
	}
	u, _ := url.Parse(endpoint)
	fullURL := endpoint + "?" + params.Encode()

	backoff := c.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		body, err := c.do(ctx, service, u.Host, fullURL)
		if err == nil {
			return body, nil
		}

		var te *transientError
		if !errors.As(err, &te) || attempt > c.opts.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		c.metrics.FDSNRequests.WithLabelValues(service, "retry").Inc()
		slog.Warn("fdsn request failed, retrying", "service", service, "host", u.Host, "attempt", attempt, "error", err)

		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, c.opts.MaxBackoff)
	}
}

func (c *Client) do(ctx context.Context, service, host, fullURL string) ([]byte, error) {
	if err := c.limiter(host).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FDSNDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.metrics.FDSNRequests.WithLabelValues(service, "error").Inc()
		return nil, &transientError{err: fmt.Errorf("error while doing request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		c.metrics.FDSNRequests.WithLabelValues(service, "nodata").Inc()
		return nil, ErrNoData
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		c.metrics.FDSNRequests.WithLabelValues(service, "error").Inc()
		return nil, &transientError{err: statusError(resp)}
	case resp.StatusCode != http.StatusOK:
		c.metrics.FDSNRequests.WithLabelValues(service, "error").Inc()
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.FDSNRequests.WithLabelValues(service, "error").Inc()
		return nil, &transientError{err: fmt.Errorf("error reading resp.Body: %w", err)}
	}

	c.metrics.FDSNRequests.WithLabelValues(service, "success").Inc()
	return body, nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return fmt.Errorf("unexpected status code: %d - status: %s: %s", resp.StatusCode, resp.Status, msg)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(queryTimeLayout)
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.5f", v), "0"), ".")
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
