package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize validates a raw candidate and maps it into the canonical Alert
// shape. RoofCount is left at zero for the enricher to fill in. All errors
// wrap ErrParse.
func Normalize(raw RawCandidate, source Source) (Alert, error) {
	if !source.Valid() {
		return Alert{}, fmt.Errorf("%w: unknown source %q", ErrParse, source)
	}

	id, err := deriveAlertID(source, raw.NativeID)
	if err != nil {
		return Alert{}, err
	}

	lat, err := parseCoordinate("lat", raw.Lat, 90)
	if err != nil {
		return Alert{}, err
	}
	lon, err := parseCoordinate("lon", raw.Lon, 180)
	if err != nil {
		return Alert{}, err
	}

	hailSize, err := parseHailSize(raw.HailSize)
	if err != nil {
		return Alert{}, err
	}

	ts, err := parseEventTime(raw.Sent)
	if err != nil {
		return Alert{}, err
	}

	return Alert{
		AlertID:   id,
		Lat:       lat,
		Lon:       lon,
		HailSize:  hailSize,
		Source:    source,
		Timestamp: ts,
	}, nil
}

// deriveAlertID builds the dedup key. Feed ids are already globally unique
// URNs; mailbox sequence numbers are only unique per source, so they get a
// source prefix.
func deriveAlertID(source Source, nativeID string) (string, error) {
	nativeID = strings.TrimSpace(nativeID)
	if nativeID == "" {
		return "", fmt.Errorf("%w: missing alert id", ErrParse)
	}
	if source == SourceNOAA {
		return nativeID, nil
	}
	return string(source) + "-" + nativeID, nil
}

func parseCoordinate(name, s string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrParse, name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrParse, name, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -limit || v > limit {
		return 0, fmt.Errorf("%w: %s %v out of range", ErrParse, name, v)
	}
	return v, nil
}

// parseHailSize returns DefaultHailSize for an empty value. Quote marks used
// as an inch symbol are stripped.
func parseHailSize(s string) (float64, error) {
	s = strings.Trim(strings.TrimSpace(s), `"“”'`)
	if s == "" {
		return DefaultHailSize, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: hail size %q: %v", ErrParse, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: hail size %v out of range", ErrParse, v)
	}
	return v, nil
}

// parseEventTime falls back to the clock when the source has no event time.
func parseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: sent time %q: %v", ErrParse, s, err)
	}
	return t.UTC(), nil
}
