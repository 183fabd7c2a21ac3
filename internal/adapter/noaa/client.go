// Package noaa polls the National Weather Service active-alerts feed.
package noaa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/hailwatch/internal/domain"
)

// Client fetches severe thunderstorm warnings and extracts one candidate per
// feature.
type Client struct {
	feedURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client. NWS rejects requests without a User-Agent.
func NewClient(feedURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		feedURL:   feedURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Name returns the source tag.
func (c *Client) Name() domain.Source { return domain.SourceNOAA }

// Poll returns the candidates in the current feed. Features without an id or
// usable geometry are skipped and logged. Transport and status errors are
// returned to the caller.
func (c *Client) Poll(ctx context.Context) ([]domain.RawCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alerts feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("alerts feed error: status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	return c.extract(fc), nil
}

// extract decodes features one at a time so a malformed feature only costs
// itself.
func (c *Client) extract(fc featureCollection) []domain.RawCandidate {
	candidates := make([]domain.RawCandidate, 0, len(fc.Features))
	for i, raw := range fc.Features {
		var f feature
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Warn("skipping malformed feature", "index", i, "error", err)
			continue
		}
		if f.ID == "" {
			c.logger.Warn("skipping feature without id")
			continue
		}
		lon, lat, ok := representativePoint(f.Geometry)
		if !ok {
			c.logger.Info("skipping feature without coordinates", "feature_id", f.ID)
			continue
		}
		candidates = append(candidates, domain.RawCandidate{
			Source:   domain.SourceNOAA,
			NativeID: f.ID,
			Lat:      formatCoord(lat),
			Lon:      formatCoord(lon),
			Sent:     f.Properties.Sent,
			Raw:      raw,
		})
	}
	return candidates
}

// representativePoint returns the first position of the geometry: the first
// vertex of the first ring for a Polygon, the position itself for a Point.
// GeoJSON positions are [lon, lat]. The geometry type is not required.
func representativePoint(g *geometry) (lon, lat float64, ok bool) {
	if g == nil || len(g.Coordinates) == 0 {
		return 0, 0, false
	}
	raw := g.Coordinates
	// Point, LineString/Polygon ring, Polygon, MultiPolygon.
	for range 4 {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return 0, 0, false
		}
		var n float64
		if json.Unmarshal(items[0], &n) == nil {
			var pos []float64
			if err := json.Unmarshal(raw, &pos); err != nil || len(pos) < 2 {
				return 0, 0, false
			}
			return pos[0], pos[1], true
		}
		raw = items[0]
	}
	return 0, 0, false
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GeoJSON feed types.

type featureCollection struct {
	Features []json.RawMessage `json:"features"`
}

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
	Geometry   *geometry  `json:"geometry"`
}

type properties struct {
	Sent string `json:"sent"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}
