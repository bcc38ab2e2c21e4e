// Package filter implements the predicate language over spot attributes:
// wildcard pattern sets, categorical membership, numeric ranges, and optional
// watchlist membership.
package filter

import (
	"strings"
	"time"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/spot"
)

// WatchlistSource answers watchlist membership questions during predicate
// evaluation. Implemented by watchlist.Registry.
type WatchlistSource interface {
	// Contains reports whether the callsign is a member of the resource's
	// current snapshot. An unfetched or never-successfully-fetched resource
	// contains nothing.
	Contains(resource, callsign string) bool
}

// WatchlistRef points a predicate at an externally maintained callsign list.
type WatchlistRef struct {
	// Resource is the opaque identifier (a URL in practice) of the list.
	Resource string

	// RefreshInterval is how often the list should be re-fetched.
	// Zero means fetch once and never refresh.
	RefreshInterval time.Duration
}

// Predicate is a named, immutable filter configuration. A nil slice or
// pointer field means the constraint is absent and imposes no restriction;
// all configured constraints are ANDed. A predicate with zero constraints
// matches every spot.
type Predicate struct {
	// Name identifies the predicate in metrics labels and retrieval paths.
	Name string

	// DXCall constrains the spotted station's callsign.
	DXCall PatternSet

	// Spotter constrains the skimmer's callsign.
	Spotter PatternSet

	// Bands is the set of allowed bands (e.g. "20m", "40m").
	Bands []string

	// Modes is the set of allowed transmission modes.
	Modes []spot.Mode

	// Types is the set of allowed spot types.
	Types []spot.Type

	// MinSNR / MaxSNR bound the signal-to-noise ratio in dB.
	MinSNR *int
	MaxSNR *int

	// MinWPM / MaxWPM bound the CW speed.
	MinWPM *uint16
	MaxWPM *uint16

	// Watchlist requires the dx call to be a member of an external list.
	// Mutually exclusive with DXCall.
	Watchlist *WatchlistRef

	// MaxKeptEntries overrides the storage default for this predicate's
	// queue when non-nil.
	MaxKeptEntries *int
}

// Test evaluates the predicate against a spot, short-circuiting on the first
// failing constraint. The watchlist source may be nil when no predicate in
// the process references a watchlist.
func (p *Predicate) Test(s *spot.Spot, watchlists WatchlistSource) bool {
	if p.Bands != nil && !containsFold(p.Bands, s.Band()) {
		return false
	}
	if p.Modes != nil && !contains(p.Modes, s.Mode) {
		return false
	}
	if p.Types != nil && !contains(p.Types, s.Type) {
		return false
	}
	if p.MinSNR != nil && s.SNRdB < *p.MinSNR {
		return false
	}
	if p.MaxSNR != nil && s.SNRdB > *p.MaxSNR {
		return false
	}
	if p.MinWPM != nil && s.WPM < *p.MinWPM {
		return false
	}
	if p.MaxWPM != nil && s.WPM > *p.MaxWPM {
		return false
	}
	if p.DXCall != nil && !p.DXCall.MatchAny(s.DXCall) {
		return false
	}
	if p.Spotter != nil && !p.Spotter.MatchAny(s.Spotter) {
		return false
	}
	if p.Watchlist != nil {
		if watchlists == nil {
			return false
		}
		if !watchlists.Contains(p.Watchlist.Resource, strings.ToUpper(s.DXCall)) {
			return false
		}
	}
	return true
}

// Validate checks the predicate for configuration errors: illegal wildcard
// placement, configured-but-empty pattern sets, and the mutually exclusive
// dx-call/watchlist pair.
func (p *Predicate) Validate() error {
	if p.DXCall != nil && len(p.DXCall) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Predicate", "Validate",
			"dx_call is configured but empty")
	}
	if p.Spotter != nil && len(p.Spotter) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Predicate", "Validate",
			"spotter is configured but empty")
	}
	if err := p.DXCall.Validate(); err != nil {
		return err
	}
	if err := p.Spotter.Validate(); err != nil {
		return err
	}
	if p.Watchlist != nil {
		if p.DXCall != nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Predicate", "Validate",
				"dx_call patterns and a watchlist are mutually exclusive on one filter")
		}
		if p.Watchlist.Resource == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Predicate", "Validate",
				"watchlist resource is empty")
		}
		if p.Watchlist.RefreshInterval < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Predicate", "Validate",
				"watchlist refresh interval is negative")
		}
	}
	return nil
}

// AnyMatches reports whether at least one predicate matches the spot.
// An empty predicate list matches nothing.
func AnyMatches(predicates []Predicate, s *spot.Spot, watchlists WatchlistSource) bool {
	for i := range predicates {
		if predicates[i].Test(s, watchlists) {
			return true
		}
	}
	return false
}

func contains[T comparable](set []T, v T) bool {
	for _, m := range set {
		if m == v {
			return true
		}
	}
	return false
}

func containsFold(set []string, v string) bool {
	for _, m := range set {
		if strings.EqualFold(m, v) {
			return true
		}
	}
	return false
}
