// Package overpass estimates roof counts by counting OpenStreetMap buildings
// through the Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hailwatch/internal/observability"
	"github.com/sony/gobreaker"
)

// DefaultURL is the public Overpass interpreter endpoint.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// Client implements domain.RoofEstimator with Overpass "out count" queries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Overpass client. Repeated failures open a circuit so a
// struggling endpoint is not hit for every alert in a pass.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "overpass",
			MaxRequests: 1,
			Interval:    5 * time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			},
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// EstimateBuildingCount returns the number of building ways within
// radiusMeters of the point.
func (c *Client) EstimateBuildingCount(ctx context.Context, lat, lon float64, radiusMeters int) (int, error) {
	start := time.Now()
	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.count(ctx, buildQuery(lat, lon, radiusMeters))
	})
	c.metrics.RoofAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.RoofRequests.WithLabelValues("circuit_open").Inc()
		return 0, fmt.Errorf("overpass unavailable: %w", err)
	case err != nil:
		c.metrics.RoofRequests.WithLabelValues("error").Inc()
		return 0, err
	}
	c.metrics.RoofRequests.WithLabelValues("success").Inc()
	return result.(int), nil
}

func buildQuery(lat, lon float64, radiusMeters int) string {
	return fmt.Sprintf(`[out:json][timeout:25];(way["building"](around:%d,%s,%s););out count;`,
		radiusMeters,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
	)
}

func (c *Client) count(ctx context.Context, query string) (int, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("overpass API error: status %d: %s", resp.StatusCode, body)
	}

	var countResp response
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if len(countResp.Elements) == 0 {
		return 0, errors.New("overpass response has no elements")
	}
	return parseTotal(countResp.Elements[0].Tags.Total)
}

// parseTotal accepts the total as a JSON string or number.
func parseTotal(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("overpass response has no total")
	}
	s := strings.Trim(string(raw), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse total %q: %w", s, err)
	}
	return n, nil
}

// Overpass API response types.

type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type string `json:"type"`
	Tags tags   `json:"tags"`
}

type tags struct {
	Total json.RawMessage `json:"total"`
}
