package noaa

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/hailwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserAgent     = "hailwatch-test (test@example.com)"
	contentTypeGeo    = "application/geo+json"
	headerContentType = "Content-Type"
)

const polygonFeed = `{
  "type": "FeatureCollection",
  "features": [
    {
      "id": "urn:oid:2.49.0.1.840.0.abc",
      "type": "Feature",
      "properties": {"sent": "2024-05-01T12:00:00-05:00", "event": "Severe Thunderstorm Warning"},
      "geometry": {"type": "Polygon", "coordinates": [[[-80.1, 26.5], [-80.0, 26.6], [-80.2, 26.7], [-80.1, 26.5]]]}
    },
    {
      "id": "urn:oid:2.49.0.1.840.0.nogeo",
      "type": "Feature",
      "properties": {"sent": "2024-05-01T12:05:00-05:00"},
      "geometry": null
    },
    {
      "id": "urn:oid:2.49.0.1.840.0.point",
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Point", "coordinates": [-97.74, 30.27]}
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Point", "coordinates": [-97.74, 30.27]}
    }
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func countLogLines(buf *bytes.Buffer, msg string) int {
	return strings.Count(buf.String(), `"msg":"`+msg+`"`)
}

func serveFeed(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, contentTypeGeo, r.Header.Get("Accept"))
		w.Header().Set(headerContentType, contentTypeGeo)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Poll_ExtractsFirstVertex(t *testing.T) {
	srv := serveFeed(t, http.StatusOK, polygonFeed)
	logger, logs := bufferLogger()
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, logger)

	candidates, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2, "features without geometry or id are skipped")
	assert.Equal(t, 1, countLogLines(logs, "skipping feature without coordinates"))
	assert.Equal(t, 1, countLogLines(logs, "skipping feature without id"))

	first := candidates[0]
	assert.Equal(t, domain.SourceNOAA, first.Source)
	assert.Equal(t, "urn:oid:2.49.0.1.840.0.abc", first.NativeID)
	assert.Equal(t, "26.5", first.Lat)
	assert.Equal(t, "-80.1", first.Lon)
	assert.Empty(t, first.HailSize)
	assert.Equal(t, "2024-05-01T12:00:00-05:00", first.Sent)
	assert.Contains(t, string(first.Raw), "urn:oid:2.49.0.1.840.0.abc")

	point := candidates[1]
	assert.Equal(t, "30.27", point.Lat)
	assert.Equal(t, "-97.74", point.Lon)
	assert.Empty(t, point.Sent)
}

func TestClient_Poll_NormalizesToFeedAlert(t *testing.T) {
	srv := serveFeed(t, http.StatusOK, polygonFeed)
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, discardLogger())

	candidates, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	alert, err := domain.Normalize(candidates[0], c.Name())
	require.NoError(t, err)
	assert.Equal(t, "urn:oid:2.49.0.1.840.0.abc", alert.AlertID)
	assert.Equal(t, 26.5, alert.Lat)
	assert.Equal(t, -80.1, alert.Lon)
	assert.Equal(t, domain.DefaultHailSize, alert.HailSize)
	assert.Equal(t, time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC), alert.Timestamp)
}

func TestClient_Poll_UntypedGeometry(t *testing.T) {
	body := `{"features":[{"id":"X","properties":{"sent":"2024-01-01T00:00:00Z"},"geometry":{"coordinates":[[[-80.1,26.5],[-80.2,26.6]]]}}]}`
	srv := serveFeed(t, http.StatusOK, body)
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, discardLogger())

	candidates, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	alert, err := domain.Normalize(candidates[0], c.Name())
	require.NoError(t, err)
	assert.Equal(t, "X", alert.AlertID)
	assert.Equal(t, 26.5, alert.Lat)
	assert.Equal(t, -80.1, alert.Lon)
	assert.Equal(t, domain.SourceNOAA, alert.Source)
}

func TestClient_Poll_MissingCoordinatesSkipped(t *testing.T) {
	body := `{"features":[{"id":"X","properties":{"sent":"2024-01-01T00:00:00Z"},"geometry":{"type":"Polygon"}}]}`
	srv := serveFeed(t, http.StatusOK, body)
	logger, logs := bufferLogger()
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, logger)

	candidates, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, 1, countLogLines(logs, "skipping feature without coordinates"))
	assert.Contains(t, logs.String(), `"feature_id":"X"`)
}

func TestClient_Poll_MalformedFeatureSkipped(t *testing.T) {
	body := `{"features":[
		{"id":"good","properties":{"sent":"2024-01-01T00:00:00Z"},"geometry":{"type":"Point","coordinates":[-80.1,26.5]}},
		{"id":12345,"properties":{},"geometry":{"type":"Point","coordinates":[-80.1,26.5]}},
		{"id":"bad-geometry","properties":{},"geometry":"n/a"},
		{"id":"bad-sent","properties":{"sent":20240101},"geometry":{"type":"Point","coordinates":[-80.1,26.5]}}
	]}`
	srv := serveFeed(t, http.StatusOK, body)
	logger, logs := bufferLogger()
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, logger)

	candidates, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "good", candidates[0].NativeID)
	assert.Equal(t, 3, countLogLines(logs, "skipping malformed feature"))
	assert.Contains(t, logs.String(), `"index":1`)
}

func TestClient_Poll_EmptyFeed(t *testing.T) {
	srv := serveFeed(t, http.StatusOK, `{"type":"FeatureCollection","features":[]}`)
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, discardLogger())

	candidates, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestClient_Poll_Non2xx(t *testing.T) {
	srv := serveFeed(t, http.StatusServiceUnavailable, `{"title":"Service Unavailable"}`)
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, discardLogger())

	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_Poll_MalformedJSON(t *testing.T) {
	srv := serveFeed(t, http.StatusOK, `{"features": [`)
	c := NewClient(srv.URL, testUserAgent, 5*time.Second, discardLogger())

	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feed")
}

func TestClient_Poll_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testUserAgent, 50*time.Millisecond, discardLogger())
	_, err := c.Poll(context.Background())
	require.Error(t, err)
}

func TestRepresentativePoint(t *testing.T) {
	tests := []struct {
		name   string
		geom   *geometry
		wantOK bool
	}{
		{"nil geometry", nil, false},
		{"empty coordinates", &geometry{Type: "Polygon"}, false},
		{"empty ring", &geometry{Type: "Polygon", Coordinates: []byte(`[[]]`)}, false},
		{"short position", &geometry{Type: "Point", Coordinates: []byte(`[1]`)}, false},
		{"null coordinates", &geometry{Type: "Polygon", Coordinates: []byte(`null`)}, false},
		{"non-numeric position", &geometry{Type: "Point", Coordinates: []byte(`["a","b"]`)}, false},
		{"too deep", &geometry{Coordinates: []byte(`[[[[[1,2]]]]]`)}, false},
		{"polygon", &geometry{Type: "Polygon", Coordinates: []byte(`[[[-80.1,26.5]]]`)}, true},
		{"untyped polygon", &geometry{Coordinates: []byte(`[[[-80.1,26.5],[-80.2,26.6]]]`)}, true},
		{"multipolygon", &geometry{Type: "MultiPolygon", Coordinates: []byte(`[[[[-80.1,26.5]]]]`)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := representativePoint(tt.geom)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
