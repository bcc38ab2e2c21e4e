package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/spot"
)

func TestParseBasicCQSpot(t *testing.T) {
	line := "DX de EA5WU-#:    7018.3  RW1M           CW    19 dB  18 WPM  CQ      2259Z"
	got, err := ParseSpot(line)
	require.NoError(t, err)

	want := spot.Spot{
		Spotter:      "EA5WU-#",
		FrequencyKHz: 7018.3,
		DXCall:       "RW1M",
		Mode:         spot.ModeCW,
		SNRdB:        19,
		WPM:          18,
		Type:         spot.TypeCQ,
		Time:         spot.ClockTime{Hour: 22, Minute: 59},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("spot mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNCDXFBeacon(t *testing.T) {
	line := "DX de KM3T-2-#:  14100.0  CS3B           CW    24 dB  22 WPM  NCDXF B 2259Z"
	got, err := ParseSpot(line)
	require.NoError(t, err)

	assert.Equal(t, "KM3T-2-#", got.Spotter)
	assert.Equal(t, "CS3B", got.DXCall)
	assert.Equal(t, spot.TypeNCDXFBeacon, got.Type)
}

func TestParseRegularBeacon(t *testing.T) {
	line := "DX de K9LC-#:    28169.9  VA3XCD/B       CW     9 dB  10 WPM  BEACON  2259Z"
	got, err := ParseSpot(line)
	require.NoError(t, err)

	assert.Equal(t, "VA3XCD/B", got.DXCall)
	assert.Equal(t, spot.TypeBeacon, got.Type)
}

func TestParsePortableCallsign(t *testing.T) {
	line := "DX de W1NT-6-#:  28222.9  N1NSP/B        CW     5 dB  15 WPM  BEACON  2259Z"
	got, err := ParseSpot(line)
	require.NoError(t, err)

	assert.Equal(t, "W1NT-6-#", got.Spotter)
	assert.Equal(t, "N1NSP/B", got.DXCall)
}

func TestParseCaseInsensitive(t *testing.T) {
	line := "dx de ea5wu-#:    7018.3  rw1m           cw    19 db  18 wpm  cq      2259z"
	got, err := ParseSpot(line)
	require.NoError(t, err)
	assert.Equal(t, spot.ModeCW, got.Mode)
	assert.Equal(t, "EA5WU-#", got.Spotter)
	assert.Equal(t, "RW1M", got.DXCall)
}

func TestParseNegativeSNR(t *testing.T) {
	line := "DX de TEST-#:    7018.3  W1AW           CW    -5 dB  20 WPM  CQ      1234Z"
	got, err := ParseSpot(line)
	require.NoError(t, err)
	assert.Equal(t, -5, got.SNRdB)
}

func TestParseMidnight(t *testing.T) {
	line := "DX de TEST-#:    7018.3  W1AW           CW    10 dB  20 WPM  CQ      0000Z"
	got, err := ParseSpot(line)
	require.NoError(t, err)
	assert.Equal(t, spot.ClockTime{}, got.Time)
}

func TestParseRejectsJunk(t *testing.T) {
	lines := []string{
		"",
		"Welcome to the Reverse Beacon Network",
		"DX de EA5WU-#:",
		"DX de EA5WU-#:    7018.3  RW1M           CW    19 dB  18 WPM  CQ", // no time
		"DX de EA5WU-#:    junk    RW1M           CW    19 dB  18 WPM  CQ  2259Z",
		"DX de EA5WU-#:    7018.3  RW1M           SSTV  19 dB  18 WPM  CQ  2259Z",
		"DX de EA5WU-#:    7018.3  RW1M           CW    xx dB  18 WPM  CQ  2259Z",
		"DX de EA5WU-#:    7018.3  RW1M           CW    19 dB  18 WPM  CQ  9999Z",
	}

	for _, line := range lines {
		_, err := ParseSpot(line)
		require.Error(t, err, "line: %q", line)
		assert.True(t, errors.IsInvalid(err), "line: %q", line)
	}
}

func TestLooksLikeSpot(t *testing.T) {
	assert.True(t, LooksLikeSpot(
		"DX de EA5WU-#:    7018.3  RW1M           CW    19 dB  18 WPM  CQ      2259Z"))
	assert.True(t, LooksLikeSpot(
		"  DX de EA5WU-#:    7018.3  RW1M           CW    19 dB  18 WPM  CQ      2259Z  "))
	assert.False(t, LooksLikeSpot("Hello world"))
	assert.False(t, LooksLikeSpot(""))
	assert.False(t, LooksLikeSpot("DX de ")) // too short
}

func TestIsCW(t *testing.T) {
	s := spot.Spot{Mode: spot.ModeCW}
	assert.True(t, IsCW(&s))
	s.Mode = spot.ModeRTTY
	assert.False(t, IsCW(&s))
}

func TestParseVariousBands(t *testing.T) {
	tests := []struct {
		line string
		freq float64
		band string
	}{
		{"DX de T-#: 1820.0 W1AW CW 10 dB 20 WPM CQ 0000Z", 1820.0, "160m"},
		{"DX de T-#: 3525.0 W1AW CW 10 dB 20 WPM CQ 0000Z", 3525.0, "80m"},
		{"DX de T-#: 7030.0 W1AW CW 10 dB 20 WPM CQ 0000Z", 7030.0, "40m"},
		{"DX de T-#: 14025.0 W1AW CW 10 dB 20 WPM CQ 0000Z", 14025.0, "20m"},
		{"DX de T-#: 21025.0 W1AW CW 10 dB 20 WPM CQ 0000Z", 21025.0, "15m"},
		{"DX de T-#: 28025.0 W1AW CW 10 dB 20 WPM CQ 0000Z", 28025.0, "10m"},
	}

	for _, tt := range tests {
		got, err := ParseSpot(tt.line)
		require.NoError(t, err, "line: %q", tt.line)
		assert.InDelta(t, tt.freq, got.FrequencyKHz, 0.01)
		assert.Equal(t, tt.band, got.Band())
	}
}
