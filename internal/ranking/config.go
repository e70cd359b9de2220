package ranking

// Config holds all configuration for fusion and bonus scoring.
type Config struct {
	K                  float64 `yaml:"k"`                    // default: 60
	ExactBonus         float64 `yaml:"exact_bonus"`          // default: 2.0
	LawNameBonus       float64 `yaml:"law_name_bonus"`       // default: 0.15
	TopN               int     `yaml:"top_n"`                // default: 20
	CandidatesPerQuery int     `yaml:"candidates_per_query"` // default: 50
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() *Config {
	return &Config{
		K:                  60,
		ExactBonus:         2.0,
		LawNameBonus:       0.15,
		TopN:               20,
		CandidatesPerQuery: 50,
	}
}

// ApplyDefaults fills in zero values that are not usable settings. A zero
// bonus is kept and disables that bonus; start from DefaultConfig to get the
// default bonuses.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.K == 0 {
		c.K = defaults.K
	}
	if c.TopN == 0 {
		c.TopN = defaults.TopN
	}
	if c.CandidatesPerQuery == 0 {
		c.CandidatesPerQuery = defaults.CandidatesPerQuery
	}
}

// RRF returns the reciprocal-rank contribution of a hit at zero-based rank.
func (c *Config) RRF(rank int) float64 {
	return 1 / (c.K + float64(rank) + 1)
}
