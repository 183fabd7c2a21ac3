package domain

import (
	"errors"
	"time"
)

// Source identifies where an alert came from.
type Source string

const (
	SourceNOAA       Source = "noaa"
	SourceHailStrike Source = "hailstrike"
)

// DefaultHailSize is recorded when the source carries no measurement (inches).
const DefaultHailSize = 1.0

// DefaultRoofRadiusMeters is the search radius for roof estimates (about one mile).
const DefaultRoofRadiusMeters = 1609

var (
	// ErrParse marks a candidate that cannot be turned into an Alert.
	ErrParse = errors.New("parse alert")
	// ErrDuplicate is returned by stores when an alert_id already exists.
	ErrDuplicate = errors.New("duplicate alert")
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceNOAA, SourceHailStrike:
		return true
	default:
		return false
	}
}

// RawCandidate is an alert as extracted by a source adapter, before any
// validation. Numeric fields are kept as text.
type RawCandidate struct {
	Source   Source
	NativeID string // feed feature id, or mailbox sequence number
	Lat      string
	Lon      string
	HailSize string // empty when the source has no measurement
	Sent     string // RFC 3339 event time, empty when unknown
	Raw      []byte `json:"-"`
}

// Alert is the canonical hail alert record.
type Alert struct {
	AlertID   string    `json:"alert_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	HailSize  float64   `json:"hail_size"`
	Source    Source    `json:"source"`
	RoofCount int       `json:"roof_count"`
	City      *string   `json:"city"`
	State     *string   `json:"state"`
	County    *string   `json:"county"`
	Timestamp time.Time `json:"timestamp"`
}
