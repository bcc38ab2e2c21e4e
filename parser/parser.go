// Package parser decodes raw RBN feed lines into spot values.
//
// Feed lines follow this general format:
//
//	DX de SPOTTER:  FREQ  CALLSIGN  MODE  SNR dB  WPM WPM  TYPE  TIMEZ
//
// Example:
//
//	DX de EA5WU-#:    7018.3  RW1M           CW    19 dB  18 WPM  CQ      2259Z
//
// Correctness comes first: anything that doesn't match the format is rejected
// with a descriptive error rather than guessed at.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/spot"
)

// Minimum whitespace-delimited tokens in a valid spot line:
// DX de SPOTTER: FREQ CALL MODE SNR dB WPM WPM TYPE TIMEZ
const minTokens = 12

// ParseSpot parses a complete feed line into a Spot.
func ParseSpot(line string) (spot.Spot, error) {
	tokens := strings.Fields(strings.TrimSpace(line))
	if len(tokens) < minTokens {
		return spot.Spot{}, invalid(line, "too few fields")
	}

	if !strings.EqualFold(tokens[0], "DX") || !strings.EqualFold(tokens[1], "de") {
		return spot.Spot{}, invalid(line, `missing "DX de" prefix`)
	}

	spotter, ok := strings.CutSuffix(tokens[2], ":")
	if !ok || !validCallsign(spotter) {
		return spot.Spot{}, invalid(line, "bad spotter callsign")
	}

	freq, err := strconv.ParseFloat(tokens[3], 64)
	if err != nil || freq <= 0 {
		return spot.Spot{}, invalid(line, "bad frequency")
	}

	dxCall := tokens[4]
	if !validCallsign(dxCall) {
		return spot.Spot{}, invalid(line, "bad dx callsign")
	}

	mode := spot.ParseMode(tokens[5])
	if mode == spot.ModeUnknown {
		return spot.Spot{}, invalid(line, "unknown mode "+tokens[5])
	}

	snr, err := strconv.Atoi(tokens[6])
	if err != nil || !strings.EqualFold(tokens[7], "dB") {
		return spot.Spot{}, invalid(line, "bad SNR field")
	}

	wpm, err := strconv.ParseUint(tokens[8], 10, 16)
	if err != nil || !strings.EqualFold(tokens[9], "WPM") {
		return spot.Spot{}, invalid(line, "bad WPM field")
	}

	// Everything between the WPM marker and the trailing time token is the
	// spot type; "NCDXF B" spans two tokens.
	timeTok := tokens[len(tokens)-1]
	typeTokens := tokens[10 : len(tokens)-1]
	if len(typeTokens) == 0 {
		return spot.Spot{}, invalid(line, "missing spot type")
	}
	spotType := parseType(typeTokens)

	clock, err := parseClockTime(timeTok)
	if err != nil {
		return spot.Spot{}, invalid(line, err.Error())
	}

	return spot.Spot{
		Spotter:      strings.ToUpper(spotter),
		FrequencyKHz: freq,
		DXCall:       strings.ToUpper(dxCall),
		Mode:         mode,
		SNRdB:        snr,
		WPM:          uint16(wpm),
		Type:         spotType,
		Time:         clock,
	}, nil
}

// LooksLikeSpot is a fast prefilter so the full parser only runs on lines
// that could plausibly be spots.
func LooksLikeSpot(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) > 20 && strings.EqualFold(trimmed[:6], "DX de ")
}

// IsCW reports whether the spot is a CW spot (not RTTY or digital).
func IsCW(s *spot.Spot) bool {
	return s.Mode == spot.ModeCW
}

func invalid(line, reason string) error {
	return errors.WrapInvalid(errors.ErrParsingFailed, "Parser", "ParseSpot",
		fmt.Sprintf("%s in %q", reason, line))
}

// validCallsign accepts alphanumerics plus '/' for portable designators,
// '-' for suffixes, and '#' for skimmer markers.
func validCallsign(call string) bool {
	if call == "" {
		return false
	}
	for _, c := range call {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '/' || c == '-' || c == '#':
		default:
			return false
		}
	}
	return true
}

func parseType(tokens []string) spot.Type {
	joined := strings.ToUpper(strings.Join(tokens, " "))
	switch joined {
	case "NCDXF B":
		return spot.TypeNCDXFBeacon
	case "BEACON":
		return spot.TypeBeacon
	case "CQ":
		return spot.TypeCQ
	default:
		return spot.TypeOther
	}
}

func parseClockTime(tok string) (spot.ClockTime, error) {
	if len(tok) != 5 || (tok[4] != 'Z' && tok[4] != 'z') {
		return spot.ClockTime{}, fmt.Errorf("bad time %q", tok)
	}
	hour, err := strconv.Atoi(tok[0:2])
	if err != nil {
		return spot.ClockTime{}, fmt.Errorf("bad time %q", tok)
	}
	minute, err := strconv.Atoi(tok[2:4])
	if err != nil {
		return spot.ClockTime{}, fmt.Errorf("bad time %q", tok)
	}
	return spot.NewClockTime(hour, minute)
}
