// Package scoring computes the pairwise compatibility score between two
// candidates in the same bucket. The score is a deterministic, explainable
// sum of weighted signals; no learned components.
package scoring

import (
	"strings"

	"github.com/iimb-synergy/synapse/internal/domain/model"
)

// Default weights. Interest, diversity and section values follow the
// original product tuning; the repeat penalty is deliberately survivable so
// a thin bucket can still re-pair rather than leave both users unmatched.
const (
	defaultInterestWeight = 10.0
	defaultInterestCap    = 5
	defaultIntentBonus    = 25.0
	defaultDiversityBonus = 50.0
	defaultSectionPenalty = -20.0
	defaultNoveltyBonus   = 30.0
	defaultRepeatPenalty  = -100.0
)

// PairSet is the set of unordered user pairs matched inside the cooldown
// window, queried once per cycle from persisted matches.
type PairSet map[model.UserPair]struct{}

// NewPairSet builds a PairSet from a pair list.
func NewPairSet(pairs []model.UserPair) PairSet {
	set := make(PairSet, len(pairs))
	for _, p := range pairs {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether the unordered (a, b) pair is in the set.
func (s PairSet) Contains(a, b string) bool {
	_, ok := s[model.PairOf(a, b)]
	return ok
}

// Scorer computes compatibility scores with configured weights.
type Scorer struct {
	interestWeight float64
	interestCap    int
	intentBonus    float64
	diversityBonus float64
	sectionPenalty float64
	noveltyBonus   float64
	repeatPenalty  float64
}

// NewScorer creates a scorer with default weights, adjusted by options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		interestWeight: defaultInterestWeight,
		interestCap:    defaultInterestCap,
		intentBonus:    defaultIntentBonus,
		diversityBonus: defaultDiversityBonus,
		sectionPenalty: defaultSectionPenalty,
		noveltyBonus:   defaultNoveltyBonus,
		repeatPenalty:  defaultRepeatPenalty,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the symmetric compatibility score for users a and b.
// recent carries the cooldown-window pairing history. Malformed reference
// data (empty ids, self pair) yields ErrInvalidInput; callers drop the
// offending candidate from the bucket and continue.
func (s *Scorer) Score(a, b model.User, recent PairSet) (float64, error) {
	if a.ID == "" || b.ID == "" {
		return 0, ErrInvalidInput
	}
	if a.ID == b.ID {
		return 0, ErrInvalidInput
	}

	score := 0.0

	shared := sharedInterests(a.Interests, b.Interests)
	if shared > s.interestCap {
		shared = s.interestCap
	}
	score += float64(shared) * s.interestWeight

	if a.Intent != "" && a.Intent == b.Intent {
		score += s.intentBonus
	}
	if a.Program != b.Program {
		score += s.diversityBonus
	}
	if a.Section != "" && a.Section == b.Section {
		score += s.sectionPenalty
	}

	if recent.Contains(a.ID, b.ID) {
		score += s.repeatPenalty
	} else {
		score += s.noveltyBonus
	}

	return score, nil
}

// sharedInterests counts tags present on both profiles, case-insensitively.
func sharedInterests(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	count := 0
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if _, ok := set[tag]; ok {
			count++
		}
	}
	return count
}
