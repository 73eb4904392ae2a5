package scoring

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithInterestWeight sets the per-shared-tag contribution.
func WithInterestWeight(w float64) Option {
	return func(s *Scorer) {
		if w >= 0 {
			s.interestWeight = w
		}
	}
}

// WithInterestCap bounds how many shared tags can contribute, so interest
// overlap never dominates the other signals.
func WithInterestCap(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.interestCap = n
		}
	}
}

// WithIntentBonus sets the bonus for an identical declared intent.
func WithIntentBonus(b float64) Option {
	return func(s *Scorer) { s.intentBonus = b }
}

// WithDiversityBonus sets the bonus for differing programs.
func WithDiversityBonus(b float64) Option {
	return func(s *Scorer) { s.diversityBonus = b }
}

// WithSectionPenalty sets the (negative) adjustment for a shared section.
func WithSectionPenalty(p float64) Option {
	return func(s *Scorer) { s.sectionPenalty = p }
}

// WithNoveltyBonus sets the bonus for a pair with no cooldown-window history.
func WithNoveltyBonus(b float64) Option {
	return func(s *Scorer) { s.noveltyBonus = b }
}

// WithRepeatPenalty sets the (negative) adjustment for a repeat pair inside
// the cooldown window. A penalty, never an exclusion.
func WithRepeatPenalty(p float64) Option {
	return func(s *Scorer) { s.repeatPenalty = p }
}
