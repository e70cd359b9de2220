// Package search fuses the ranked hit lists of several expanded queries with
// Reciprocal Rank Fusion, reconciles them with the citations parsed from the
// question, and fills in article bodies from storage.
package search

import (
	"sort"
	"strings"

	"github.com/hyperjump/joubun/internal/citation"
	"github.com/hyperjump/joubun/internal/lawid"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/ranking"
)

// FusedEntry is one article in the fused ranking. Hit carries the metadata of
// the first sighting; Hit.LawID may be corrected from the common table, Key never changes.
type FusedEntry struct {
	Key        string
	RRFScore   float64
	Bonus      float64
	FinalScore float64
	MatchType  ranking.MatchType
	Hit        models.SearchHit
	// Forced marks an entry synthesized for a cited article no list returned.
	Forced bool
}

// ArticleKey returns the storage key of the entry, using the corrected law id.
func (e *FusedEntry) ArticleKey() models.ArticleKey {
	return models.ArticleKey{LawID: e.Hit.LawID, ArticleTitle: e.Hit.ArticleTitle}
}

// Fuser runs rank fusion with citation bonuses. It holds no per-request state.
type Fuser struct {
	config *ranking.Config
	bonus  *ranking.BonusScorer
	common *lawid.Table
}

// NewFuser creates a fuser. A nil config uses the defaults; common may be nil.
func NewFuser(cfg *ranking.Config, common *lawid.Table) *Fuser {
	if cfg == nil {
		cfg = ranking.DefaultConfig()
	}
	return &Fuser{config: cfg, bonus: ranking.NewBonusScorer(cfg), common: common}
}

// Fuse merges lists into one ranking truncated to topN (topN <= 0 keeps all).
// It returns the ranking and the number of distinct entries before truncation.
//
// The result does not depend on the order of lists as long as every list
// reports the same metadata for a shared key: per-key contributions are
// summed in ascending order and ties are broken by key.
func (f *Fuser) Fuse(lists [][]models.SearchHit, cits []citation.Citation, topN int) ([]*FusedEntry, int) {
	entries := f.accumulate(lists)
	f.forceCitations(entries, cits)
	f.applyBonuses(entries, cits)

	out := make([]*FusedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].Key < out[j].Key
	})
	total := len(out)
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, total
}

func (f *Fuser) accumulate(lists [][]models.SearchHit) map[string]*FusedEntry {
	entries := make(map[string]*FusedEntry)
	contributions := make(map[string][]float64)
	for _, list := range lists {
		for rank, hit := range list {
			key := models.NewArticleKey(hit.LawID, hit.ArticleTitle)
			k := key.String()
			contributions[k] = append(contributions[k], f.config.RRF(rank))
			if _, seen := entries[k]; seen {
				continue
			}
			h := hit
			h.ArticleTitle = key.ArticleTitle
			h.Rank = rank
			entries[k] = &FusedEntry{Key: k, Hit: h}
		}
	}
	for k, e := range entries {
		c := contributions[k]
		sort.Float64s(c)
		for _, v := range c {
			e.RRFScore += v
		}
	}
	return entries
}

// forceCitations adds an entry for every cited article that no list returned.
func (f *Fuser) forceCitations(entries map[string]*FusedEntry, cits []citation.Citation) {
	for i := range cits {
		c := &cits[i]
		if c.LawName == "" || c.ArticleNum < 1 {
			continue
		}
		target := c.ArticleTitle()
		found, partialID := false, ""
		for _, k := range sortedKeys(entries) {
			h := &entries[k].Hit
			if h.LawTitle == c.LawName && h.ArticleTitle == target {
				found = true
				break
			}
			if partialID == "" && strings.Contains(h.LawTitle, c.LawName) {
				partialID = h.LawID
			}
		}
		if found {
			continue
		}
		lawID := partialID
		if id, ok := f.common.Lookup(c.LawName); ok {
			lawID = id
		}
		if lawID == "" && c.HasLawID {
			lawID = c.LawID
		}
		if lawID == "" {
			continue
		}
		k := models.ArticleKey{LawID: lawID, ArticleTitle: target}.String()
		if _, exists := entries[k]; exists {
			continue
		}
		entries[k] = &FusedEntry{
			Key:      k,
			RRFScore: f.config.RRF(0),
			Forced:   true,
			Hit:      models.SearchHit{LawID: lawID, LawTitle: c.LawName, ArticleTitle: target},
		}
	}
}

func (f *Fuser) applyBonuses(entries map[string]*FusedEntry, cits []citation.Citation) {
	targets := make([]ranking.Target, 0, len(cits))
	for i := range cits {
		if cits[i].LawName == "" || cits[i].ArticleNum < 1 {
			continue
		}
		targets = append(targets, ranking.Target{LawName: cits[i].LawName, ArticleTitle: cits[i].ArticleTitle()})
	}
	for _, e := range entries {
		if id, ok := f.common.Lookup(e.Hit.LawTitle); ok {
			e.Hit.LawID = id
		}
		if bonus, match := f.bonus.Score(e.Hit.LawTitle, e.Hit.ArticleTitle, targets); match > e.MatchType {
			e.Bonus, e.MatchType = bonus, match
		}
		e.FinalScore = e.RRFScore + e.Bonus
	}
}

func sortedKeys(entries map[string]*FusedEntry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
