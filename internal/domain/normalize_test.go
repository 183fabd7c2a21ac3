package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { SetClock(nil) })
}

func TestNormalize_FeedCandidate(t *testing.T) {
	raw := RawCandidate{
		Source:   SourceNOAA,
		NativeID: "X",
		Lat:      "26.5",
		Lon:      "-80.1",
		Sent:     "2024-01-01T00:00:00Z",
	}

	alert, err := Normalize(raw, SourceNOAA)
	require.NoError(t, err)

	want := Alert{
		AlertID:   "X",
		Lat:       26.5,
		Lon:       -80.1,
		HailSize:  DefaultHailSize,
		Source:    SourceNOAA,
		Timestamp: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, alert); diff != "" {
		t.Fatalf("alert mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, alert.City)
	assert.Nil(t, alert.State)
	assert.Nil(t, alert.County)
}

func TestNormalize_MailboxCandidate(t *testing.T) {
	now := time.Date(2024, time.May, 2, 18, 30, 0, 0, time.UTC)
	freezeClock(t, now)

	alert, err := Normalize(RawCandidate{
		NativeID: "42",
		Lat:      "26.5",
		Lon:      "-80.1",
		HailSize: `1.75"`,
	}, SourceHailStrike)
	require.NoError(t, err)

	assert.Equal(t, "hailstrike-42", alert.AlertID)
	assert.Equal(t, 26.5, alert.Lat)
	assert.Equal(t, -80.1, alert.Lon)
	assert.Equal(t, 1.75, alert.HailSize)
	assert.Equal(t, SourceHailStrike, alert.Source)
	assert.Equal(t, now, alert.Timestamp)
	assert.Zero(t, alert.RoofCount)
}

func TestNormalize_DeterministicID(t *testing.T) {
	freezeClock(t, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC))
	raw := RawCandidate{NativeID: "7", Lat: "35.1", Lon: "-97.4", HailSize: "2.0"}

	first, err := Normalize(raw, SourceHailStrike)
	require.NoError(t, err)
	second, err := Normalize(raw, SourceHailStrike)
	require.NoError(t, err)

	assert.Equal(t, first.AlertID, second.AlertID)
}

func TestNormalize_SentOffsetConvertedToUTC(t *testing.T) {
	alert, err := Normalize(RawCandidate{
		NativeID: "urn:1",
		Lat:      "30",
		Lon:      "-97",
		Sent:     "2024-04-26T10:15:00-05:00",
	}, SourceNOAA)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 26, 15, 15, 0, 0, time.UTC), alert.Timestamp)
}

func TestNormalize_Errors(t *testing.T) {
	valid := RawCandidate{NativeID: "1", Lat: "30", Lon: "-97", HailSize: "1.0"}

	cases := []struct {
		name   string
		mutate func(*RawCandidate)
		source Source
	}{
		{name: "missing id", mutate: func(r *RawCandidate) { r.NativeID = "  " }},
		{name: "missing lat", mutate: func(r *RawCandidate) { r.Lat = "" }},
		{name: "bad lon", mutate: func(r *RawCandidate) { r.Lon = "west" }},
		{name: "lat out of range", mutate: func(r *RawCandidate) { r.Lat = "91" }},
		{name: "lon out of range", mutate: func(r *RawCandidate) { r.Lon = "-180.5" }},
		{name: "lat NaN", mutate: func(r *RawCandidate) { r.Lat = "NaN" }},
		{name: "lon Inf", mutate: func(r *RawCandidate) { r.Lon = "+Inf" }},
		{name: "bad hail size", mutate: func(r *RawCandidate) { r.HailSize = "golf" }},
		{name: "negative hail size", mutate: func(r *RawCandidate) { r.HailSize = "-1" }},
		{name: "bad sent time", mutate: func(r *RawCandidate) { r.Sent = "yesterday" }},
		{name: "unknown source", mutate: func(*RawCandidate) {}, source: Source("radar")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := valid
			tc.mutate(&raw)
			source := tc.source
			if source == "" {
				source = SourceHailStrike
			}
			_, err := Normalize(raw, source)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParseHailSize(t *testing.T) {
	cases := map[string]float64{
		"":        DefaultHailSize,
		`1.75"`:   1.75,
		`"2.5"`:   2.5,
		"“1.00”":  1.0,
		" 0.75 ":  0.75,
		"3":       3,
	}
	for in, want := range cases {
		got, err := parseHailSize(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
}
