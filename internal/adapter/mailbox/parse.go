package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset" // non-UTF-8 bodies
	"github.com/emersion/go-message/mail"
)

const (
	markerLatitude  = "Latitude: "
	markerLongitude = "Longitude: "
	markerHailSize  = "Hail Size: "
)

var errNoTextPart = errors.New("no text/plain part")

type markerFields struct {
	lat      string
	lon      string
	hailSize string
}

// plainTextBody returns the first text/plain part of a multipart message, or
// the whole body of a single-part one.
func plainTextBody(raw []byte) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	multipart := strings.HasPrefix(mediaType(mr.Header.Get("Content-Type")), "multipart/")
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", errNoTextPart
		}
		if err != nil {
			return "", fmt.Errorf("read part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if multipart {
			ct, _, _ := h.ContentType()
			if ct != "text/plain" {
				continue
			}
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(b), nil
	}
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// parseMarkers reads the token following each marker up to the next
// whitespace. All three markers are required.
func parseMarkers(body string) (markerFields, error) {
	var f markerFields
	var ok bool
	if f.lat, ok = tokenAfter(body, markerLatitude); !ok {
		return markerFields{}, fmt.Errorf("missing %q", strings.TrimSpace(markerLatitude))
	}
	if f.lon, ok = tokenAfter(body, markerLongitude); !ok {
		return markerFields{}, fmt.Errorf("missing %q", strings.TrimSpace(markerLongitude))
	}
	if f.hailSize, ok = tokenAfter(body, markerHailSize); !ok {
		return markerFields{}, fmt.Errorf("missing %q", strings.TrimSpace(markerHailSize))
	}
	return f, nil
}

func tokenAfter(body, marker string) (string, bool) {
	_, rest, found := strings.Cut(body, marker)
	if !found {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}
