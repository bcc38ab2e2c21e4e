// Package spot defines the core types representing RBN (Reverse Beacon
// Network) spots: a single decoded observation of a station transmitting,
// with frequency, signal quality, and speed attributes.
package spot

import (
	"encoding/json"
	"fmt"
)

// Mode is the transmission mode of a spot.
type Mode string

// Known transmission modes.
const (
	ModeCW      Mode = "CW"
	ModeRTTY    Mode = "RTTY"
	ModeFT8     Mode = "FT8"
	ModeFT4     Mode = "FT4"
	ModePSK31   Mode = "PSK31"
	ModeUnknown Mode = "UNKNOWN"
)

// ParseMode normalizes a mode string to a known Mode.
// Unrecognized strings map to ModeUnknown.
func ParseMode(s string) Mode {
	switch Mode(upper(s)) {
	case ModeCW:
		return ModeCW
	case ModeRTTY:
		return ModeRTTY
	case ModeFT8:
		return ModeFT8
	case ModeFT4:
		return ModeFT4
	case ModePSK31:
		return ModePSK31
	default:
		return ModeUnknown
	}
}

// Type is the kind of activity detected (CQ call, beacon, ...).
type Type string

// Known spot types.
const (
	TypeCQ          Type = "CQ"
	TypeNCDXFBeacon Type = "NCDXF_BEACON"
	TypeBeacon      Type = "BEACON"
	TypeOther       Type = "OTHER"
)

// ParseType normalizes a spot type string to a known Type.
// Unrecognized strings map to TypeOther.
func ParseType(s string) Type {
	switch Type(upper(s)) {
	case TypeCQ:
		return TypeCQ
	case TypeNCDXFBeacon:
		return TypeNCDXFBeacon
	case TypeBeacon:
		return TypeBeacon
	default:
		return TypeOther
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// ClockTime is the UTC wall-clock time a spot was reported (time only, the
// feed carries no date). Serialized in the feed's "HHMMZ" form.
type ClockTime struct {
	Hour   int
	Minute int
}

// NewClockTime builds a ClockTime, validating the hour and minute ranges.
func NewClockTime(hour, minute int) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %02d:%02d", hour, minute)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// String renders the feed's Zulu form, e.g. "2259Z".
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d%02dZ", t.Hour, t.Minute)
}

// MarshalJSON renders the time as its Zulu string form.
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the Zulu string form produced by MarshalJSON.
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) != 5 || (s[4] != 'Z' && s[4] != 'z') {
		return fmt.Errorf("invalid clock time %q", s)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(s[:4], "%02d%02d", &hour, &minute); err != nil {
		return fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	ct, err := NewClockTime(hour, minute)
	if err != nil {
		return err
	}
	*t = ct
	return nil
}

// Spot is one parsed observation from the feed. Immutable once produced by
// the parser; downstream components only read it.
type Spot struct {
	// Spotter is the callsign of the skimmer station that detected the
	// signal, typically with a "-#" suffix.
	Spotter string `json:"spotter"`

	// FrequencyKHz is the frequency where the signal was detected.
	FrequencyKHz float64 `json:"frequency_khz"`

	// DXCall is the callsign of the station being spotted.
	DXCall string `json:"dx_call"`

	// Mode is the transmission mode (CW, RTTY, ...).
	Mode Mode `json:"mode"`

	// SNRdB is the signal-to-noise ratio in decibels. May be negative.
	SNRdB int `json:"snr_db"`

	// WPM is the CW speed in words per minute.
	WPM uint16 `json:"wpm"`

	// Type is the kind of activity (CQ, BEACON, ...).
	Type Type `json:"spot_type"`

	// Time is the reported UTC time of the spot.
	Time ClockTime `json:"time"`
}

// Band returns the amateur radio band for the spot's frequency, or the empty
// string when the frequency falls outside every recognized band.
func (s *Spot) Band() string {
	switch khz := uint64(s.FrequencyKHz); {
	case khz >= 135 && khz <= 138:
		return "2200m"
	case khz >= 472 && khz <= 479:
		return "630m"
	case khz >= 1800 && khz <= 2000:
		return "160m"
	case khz >= 3500 && khz <= 4000:
		return "80m"
	case khz >= 5330 && khz <= 5410:
		return "60m"
	case khz >= 7000 && khz <= 7300:
		return "40m"
	case khz >= 10100 && khz <= 10150:
		return "30m"
	case khz >= 14000 && khz <= 14350:
		return "20m"
	case khz >= 18068 && khz <= 18168:
		return "17m"
	case khz >= 21000 && khz <= 21450:
		return "15m"
	case khz >= 24890 && khz <= 24990:
		return "12m"
	case khz >= 28000 && khz <= 29700:
		return "10m"
	case khz >= 50000 && khz <= 54000:
		return "6m"
	case khz >= 144000 && khz <= 148000:
		return "2m"
	default:
		return ""
	}
}

// WireSize is the spot's serialized JSON size in bytes. Approximate but
// consistent, so byte budgets and statistics agree with each other.
func (s *Spot) WireSize() int {
	data, err := json.Marshal(s)
	if err != nil {
		return 0
	}
	return len(data)
}

// String renders the spot in roughly the feed's own format.
func (s *Spot) String() string {
	return fmt.Sprintf("DX de %s: %8.1f %s %s %d dB %d WPM %s %s",
		s.Spotter, s.FrequencyKHz, s.DXCall, s.Mode, s.SNRdB, s.WPM, s.Type, s.Time)
}
