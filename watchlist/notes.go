package watchlist

import "strings"

// ParseNotes parses callsign notes file content (the Ham2K PoLo format) into
// a list of callsigns:
//
//   - one callsign per line, followed by optional notes
//   - lines starting with # are comments
//   - empty lines are ignored
//
// Only the first whitespace-delimited token of each line is taken, normalized
// to uppercase.
func ParseNotes(content string) []string {
	var callsigns []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if fields := strings.Fields(trimmed); len(fields) > 0 {
			callsigns = append(callsigns, strings.ToUpper(fields[0]))
		}
	}
	return callsigns
}
