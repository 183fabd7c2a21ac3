// Package domain models hail alerts collected from the National Weather
// Service and the HailStrike notification inbox.
//
// # Sources
//
// "noaa" alerts come from the NWS active-alerts API
// (https://api.weather.gov/alerts/active), filtered to Severe Thunderstorm
// Warnings. Each GeoJSON feature carries a stable URN id, a "sent" timestamp,
// and a polygon. The feed has no hail measurement.
//
// "hailstrike" alerts arrive as plain-text notification emails whose body
// contains marker lines:
//
//	Latitude: 26.5
//	Longitude: -80.1
//	Hail Size: 1.75"
//
// # Candidates and alerts
//
// Adapters emit a [RawCandidate] holding the fields exactly as extracted
// (strings, like a CSV row). [Normalize] turns a candidate into a canonical
// [Alert] or an error wrapping [ErrParse]. Normalization is pure: the only
// ambient input is the package clock, used when the source has no event time.
//
// # ID Generation
//
// Alert IDs are derived from source identity only, never from ingestion time,
// so re-polling the same upstream state yields the same IDs:
//
//	noaa:       the feature id verbatim, e.g. "https://api.weather.gov/alerts/urn:oid:2.49.0.1.840.0.abc"
//	hailstrike: "hailstrike-" + IMAP sequence number, e.g. "hailstrike-42"
//
// The store is the single authority on uniqueness; the pipeline checks for an
// existing ID before every insert.
//
// # Point approximation
//
// A warning polygon is reduced to its first vertex. This is a representative
// point, not a centroid. Roof counts are estimated within [DefaultRoofRadiusMeters]
// of that point.
package domain
