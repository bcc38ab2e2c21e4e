package filter

import (
	"fmt"
	"strings"

	"github.com/c360/spotstream/errors"
)

// Wildcard is the marker character allowed at the start or end of a pattern.
const Wildcard = '*'

// PatternSet is an ordered sequence of wildcard patterns with OR semantics.
// A nil set means the constraint is absent; a non-nil empty set is a
// configured constraint that never matches. The two are distinct and must
// stay distinct (config validation rejects the empty case, but runtime
// evaluation still treats it as "matches nothing", never "matches all").
type PatternSet []string

// Match tests a value against a single wildcard pattern. A pattern without
// the marker requires exact equality; "X*" matches any value with prefix X;
// "*X" matches any value with suffix X. Matching is case-sensitive; callsigns
// are normalized to uppercase upstream.
func Match(pattern, value string) bool {
	if suffix, ok := strings.CutPrefix(pattern, string(Wildcard)); ok {
		return strings.HasSuffix(value, suffix)
	}
	if prefix, ok := strings.CutSuffix(pattern, string(Wildcard)); ok {
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}

// MatchAny reports whether any member of the set matches the value.
// An empty set never matches.
func (ps PatternSet) MatchAny(value string) bool {
	for _, p := range ps {
		if Match(p, value) {
			return true
		}
	}
	return false
}

// Validate checks every pattern in the set for legal wildcard placement.
func (ps PatternSet) Validate() error {
	for _, p := range ps {
		if err := ValidatePattern(p); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePattern rejects patterns with a wildcard anywhere other than the
// first or last position, and patterns with more than one wildcard.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PatternSet", "ValidatePattern",
			"empty pattern")
	}

	count := strings.Count(pattern, string(Wildcard))
	if count > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PatternSet", "ValidatePattern",
			fmt.Sprintf("pattern %q has multiple wildcards; only one is allowed", pattern))
	}
	if count == 1 && pattern[0] != Wildcard && pattern[len(pattern)-1] != Wildcard {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PatternSet", "ValidatePattern",
			fmt.Sprintf("pattern %q has an interior wildcard; only prefix (*ABC) or suffix (ABC*) allowed", pattern))
	}
	return nil
}
