package shard

import (
	"sort"

	"github.com/hyperjump/joubun/internal/models"
)

// Layout holds the storage key formats and the range-sharded law tables.
// Range tables are regenerated by every ingestion run, so they are loaded
// from configuration rather than compiled in.
type Layout struct {
	ChunkMapKey      string                  `yaml:"chunk_map_key"`
	ShardKeyFormat   string                  `yaml:"shard_key_format"`
	ArticleKeyFormat string                  `yaml:"article_key_format"`
	RangeLaws        map[string]RangeSharded `yaml:"range_laws"`
}

// DefaultLayout returns the key formats and range tables of the current corpus.
func DefaultLayout() Layout {
	return Layout{
		ChunkMapKey:      "law_chunk_map.json",
		ShardKeyFormat:   "laws_chunk_%03d.json",
		ArticleKeyFormat: "law-article/%s/%s.json",
		RangeLaws: map[string]RangeSharded{
			// 民法
			"129AC0000000089": {
				KeyFormat: "minpo_chunk_%d.json",
				Ranges: []Range{
					{From: 1, To: 246, Shard: 1},
					{From: 247, To: 408, Shard: 2},
					{From: 409, To: 587, Shard: 3},
					{From: 588, To: 724, Shard: 4},
					{From: 725, To: 881, Shard: 5},
					{From: 882, To: 1004, Shard: 6},
					{From: 1005, To: 1050, Shard: 7},
				},
			},
			// 会社法
			"417AC0000000086": {
				KeyFormat: "laws_chunk_%03d.json",
				Ranges: []Range{
					{From: 1, To: 178, Shard: 77},
					{From: 179, To: 317, Shard: 78},
					{From: 318, To: 449, Shard: 79},
					{From: 450, To: 662, Shard: 80},
					{From: 663, To: 801, Shard: 81},
					{From: 802, To: 966, Shard: 82},
					{From: 967, To: 979, Shard: 83},
				},
			},
		},
	}
}

// Locator chooses the sharding strategy for a law.
type Locator struct {
	layout Layout
}

// NewLocator creates a locator over layout.
func NewLocator(layout Layout) *Locator {
	return &Locator{layout: layout}
}

// Layout returns the locator's layout.
func (l *Locator) Layout() Layout {
	return l.layout
}

// StrategyFor returns the strategy for lawID. Range-sharded laws are matched
// by id first; otherwise the chunk-map value decides. Laws found in neither
// are unresolvable.
func (l *Locator) StrategyFor(cm ChunkMap, lawID string) (Strategy, bool) {
	if rs, ok := l.layout.RangeLaws[lawID]; ok {
		return rs, true
	}
	ref, ok := cm[lawID]
	if !ok {
		return nil, false
	}
	if ref.Kind == RefLarge {
		return PerArticle{KeyFormat: l.layout.ArticleKeyFormat}, true
	}
	shard, ok := ref.Primary()
	if !ok {
		return nil, false
	}
	return SingleShard{Shard: shard, KeyFormat: l.layout.ShardKeyFormat}, true
}

// Plan is the set of storage objects needed to serve a batch of articles.
type Plan struct {
	// Objects are distinct and sorted by key.
	Objects []Object
	// Wanted lists the law ids to extract from shard objects.
	Wanted map[string]struct{}
	// Unresolved lists law ids with no strategy.
	Unresolved []string
	// Unplaced lists keys whose article could not be mapped to an object.
	Unplaced []models.ArticleKey
}

// Plan groups keys by law and collects the distinct objects to fetch.
func (l *Locator) Plan(cm ChunkMap, keys []models.ArticleKey) *Plan {
	byLaw := make(map[string][]string)
	var lawOrder []string
	for _, k := range keys {
		if _, ok := byLaw[k.LawID]; !ok {
			lawOrder = append(lawOrder, k.LawID)
		}
		byLaw[k.LawID] = append(byLaw[k.LawID], k.ArticleTitle)
	}
	sort.Strings(lawOrder)

	plan := &Plan{Wanted: make(map[string]struct{})}
	objects := make(map[string]Object)
	for _, lawID := range lawOrder {
		strategy, ok := l.StrategyFor(cm, lawID)
		if !ok {
			plan.Unresolved = append(plan.Unresolved, lawID)
			continue
		}
		plan.Wanted[lawID] = struct{}{}
		objs, unplaced := strategy.Objects(lawID, byLaw[lawID])
		for _, o := range objs {
			objects[o.Key] = o
		}
		for _, title := range unplaced {
			plan.Unplaced = append(plan.Unplaced, models.ArticleKey{LawID: lawID, ArticleTitle: title})
		}
	}
	plan.Objects = make([]Object, 0, len(objects))
	for _, o := range objects {
		plan.Objects = append(plan.Objects, o)
	}
	sort.Slice(plan.Objects, func(i, j int) bool { return plan.Objects[i].Key < plan.Objects[j].Key })
	return plan
}
