package ranking

import "strings"

// BonusScorer awards citation bonuses to fused entries.
type BonusScorer struct {
	config *Config
}

// NewBonusScorer creates a scorer. A nil config uses the defaults.
func NewBonusScorer(cfg *Config) *BonusScorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &BonusScorer{config: cfg}
}

// Name returns the name of the scorer for debugging/logging.
func (s *BonusScorer) Name() string { return "citation_bonus" }

// Score returns the bonus and match type for an entry with the given law and
// article titles. A target matches when lawTitle contains its law name; an
// exact article match returns immediately, a law-name match only counts when
// nothing higher has been seen.
func (s *BonusScorer) Score(lawTitle, articleTitle string, targets []Target) (float64, MatchType) {
	bonus, match := 0.0, MatchTypeNone
	for _, t := range targets {
		if t.LawName == "" || !strings.Contains(lawTitle, t.LawName) {
			continue
		}
		if articleTitle == t.ArticleTitle {
			return s.config.ExactBonus, MatchTypeExact
		}
		if match < MatchTypeLawName {
			bonus, match = s.config.LawNameBonus, MatchTypeLawName
		}
	}
	return bonus, match
}
