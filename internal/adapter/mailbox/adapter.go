// Package mailbox reads HailStrike notification emails and extracts alert
// candidates from their plain-text bodies.
package mailbox

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/hailwatch/internal/domain"
)

// DefaultWindow is how far back Poll looks for notifications.
const DefaultWindow = 24 * time.Hour

// Adapter turns fetched notification messages into candidates.
type Adapter struct {
	fetcher Fetcher
	window  time.Duration
	logger  *slog.Logger
}

// NewAdapter creates a mailbox adapter. A non-positive window uses DefaultWindow.
func NewAdapter(fetcher Fetcher, window time.Duration, logger *slog.Logger) *Adapter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Adapter{fetcher: fetcher, window: window, logger: logger}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.Source { return domain.SourceHailStrike }

// Poll returns candidates from messages received within the window.
func (a *Adapter) Poll(ctx context.Context) ([]domain.RawCandidate, error) {
	return a.PollSince(ctx, domain.Now().Add(-a.window))
}

// PollSince returns candidates from messages received on or after since.
// Messages that are missing a marker are skipped and logged. Connection,
// login and search failures are returned.
func (a *Adapter) PollSince(ctx context.Context, since time.Time) ([]domain.RawCandidate, error) {
	messages, err := a.fetcher.FetchSince(ctx, since)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.RawCandidate, 0, len(messages))
	for _, m := range messages {
		body, err := plainTextBody(m.Body)
		if err != nil {
			a.logger.Warn("skipping unreadable message", "seq_num", m.SeqNum, "error", err)
			continue
		}
		fields, err := parseMarkers(body)
		if err != nil {
			a.logger.Warn("skipping message", "seq_num", m.SeqNum, "error", err)
			continue
		}
		candidates = append(candidates, domain.RawCandidate{
			Source:   domain.SourceHailStrike,
			NativeID: strconv.FormatUint(uint64(m.SeqNum), 10),
			Lat:      fields.lat,
			Lon:      fields.lon,
			HailSize: fields.hailSize,
			Raw:      []byte(body),
		})
	}
	return candidates, nil
}
