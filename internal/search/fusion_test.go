package search

import (
	"math"
	"testing"

	"github.com/hyperjump/joubun/internal/citation"
	"github.com/hyperjump/joubun/internal/lawid"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/ranking"
)

const (
	minpoID   = "129AC0000000089"
	kaishaID  = "417AC0000000086"
	copyright = "345AC0000000048"
)

func hit(lawID, lawTitle, article string) models.SearchHit {
	return models.SearchHit{LawID: lawID, LawTitle: lawTitle, ArticleTitle: article, Score: 0.5}
}

func newTestFuser() *Fuser {
	return NewFuser(nil, lawid.NewTable(lawid.DefaultCommonTable(), nil))
}

func parseQuery(q string) []citation.Citation {
	return citation.NewParser(nil).ParseQuery(q)
}

func TestFuse_RRFAccumulates(t *testing.T) {
	f := newTestFuser()
	lists := [][]models.SearchHit{
		{hit(minpoID, "民法", "第一条"), hit(minpoID, "民法", "第二条")},
		{hit(minpoID, "民法", "第二条")},
	}
	entries, total := f.Fuse(lists, nil, 0)
	if total != 2 || len(entries) != 2 {
		t.Fatalf("total = %d, entries = %d", total, len(entries))
	}
	// 第二条: rank 1 in list 0 and rank 0 in list 1.
	want := 1.0/61 + 1.0/62
	if entries[0].Key != minpoID+"_第二条" || math.Abs(entries[0].RRFScore-want) > 1e-15 {
		t.Errorf("top = %s %v, want %v", entries[0].Key, entries[0].RRFScore, want)
	}
	if entries[0].MatchType != ranking.MatchTypeNone || entries[0].FinalScore != entries[0].RRFScore {
		t.Errorf("no citations should mean no bonus: %+v", entries[0])
	}
}

func TestFuse_FirstSeenMetadataWins(t *testing.T) {
	f := newTestFuser()
	first := hit(kaishaID, "会社法", "第二条")
	first.ArticleCaption = "（定義）"
	later := hit(kaishaID, "会社法", "第2条")
	later.ArticleCaption = "other"
	entries, _ := f.Fuse([][]models.SearchHit{{first}, {later}}, nil, 0)
	if len(entries) != 1 {
		t.Fatalf("titles should canonicalize to one key, got %d entries", len(entries))
	}
	if entries[0].Hit.ArticleCaption != "（定義）" {
		t.Errorf("caption = %q", entries[0].Hit.ArticleCaption)
	}
}

func TestFuse_DeterministicUnderReordering(t *testing.T) {
	f := newTestFuser()
	a := []models.SearchHit{hit(minpoID, "民法", "第一条"), hit(copyright, "著作権法", "第二条"), hit(minpoID, "民法", "第三条")}
	b := []models.SearchHit{hit(copyright, "著作権法", "第二条"), hit(minpoID, "民法", "第三条")}
	c := []models.SearchHit{hit(minpoID, "民法", "第三条"), hit(minpoID, "民法", "第一条"), hit(kaishaID, "会社法", "第四条")}
	cits := parseQuery("著作権法121条と民法第三条")

	permutations := [][][]models.SearchHit{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	reference, refTotal := f.Fuse(permutations[0], cits, 20)
	for i, lists := range permutations[1:] {
		got, total := f.Fuse(lists, cits, 20)
		if total != refTotal || len(got) != len(reference) {
			t.Fatalf("permutation %d: %d entries, want %d", i+1, len(got), len(reference))
		}
		for j := range got {
			if got[j].Key != reference[j].Key || got[j].FinalScore != reference[j].FinalScore ||
				got[j].RRFScore != reference[j].RRFScore || got[j].MatchType != reference[j].MatchType {
				t.Errorf("permutation %d position %d: %s %v, want %s %v",
					i+1, j, got[j].Key, got[j].FinalScore, reference[j].Key, reference[j].FinalScore)
			}
		}
	}
}

func TestFuse_ExactMatchIsNeverDowngraded(t *testing.T) {
	f := newTestFuser()
	lists := [][]models.SearchHit{{hit(minpoID, "民法", "第九十条"), hit(minpoID, "民法", "第一条")}}
	for _, q := range []string{"民法第九十条と民法第一条", "民法第一条と民法第九十条"} {
		entries, _ := f.Fuse(lists, parseQuery(q), 0)
		for _, e := range entries {
			if e.MatchType != ranking.MatchTypeExact {
				t.Errorf("%s: %s match = %s, want exact", q, e.Key, e.MatchType)
			}
			if e.Bonus != 2.0 {
				t.Errorf("%s: %s bonus = %v", q, e.Key, e.Bonus)
			}
		}
	}

	entries, _ := f.Fuse([][]models.SearchHit{{hit(minpoID, "民法", "第五条")}}, parseQuery("民法第九十条と民法第一条"), 0)
	for _, e := range entries {
		if e.Key == minpoID+"_第五条" && (e.MatchType != ranking.MatchTypeLawName || e.Bonus != 0.15) {
			t.Errorf("law-name match expected, got %s %v", e.MatchType, e.Bonus)
		}
	}
}

func TestFuse_ForcedInclusion(t *testing.T) {
	f := newTestFuser()
	lists := [][]models.SearchHit{
		{hit(kaishaID, "会社法", "第二条"), hit(minpoID, "民法", "第一条")},
	}
	cits := parseQuery("民法第一千五十条")
	entries, _ := f.Fuse(lists, cits, 0)

	var forced []*FusedEntry
	for _, e := range entries {
		if e.Hit.LawID == minpoID && e.Hit.ArticleTitle == "第千五十条" {
			forced = append(forced, e)
		}
	}
	if len(forced) != 1 {
		t.Fatalf("expected exactly one entry for 民法 第千五十条, got %d", len(forced))
	}
	e := forced[0]
	if e.RRFScore != 1.0/61 {
		t.Errorf("rrf = %v, want 1/61", e.RRFScore)
	}
	if e.MatchType != ranking.MatchTypeExact || !e.Forced {
		t.Errorf("entry = %+v", e)
	}
	if entries[0] != e {
		t.Errorf("forced exact match should rank first, got %s", entries[0].Key)
	}
}

func TestFuse_ForcedInclusionWithEmptyLists(t *testing.T) {
	f := newTestFuser()
	entries, total := f.Fuse(nil, parseQuery("民法第一千五十条"), 20)
	if total != 1 || len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Key != minpoID+"_第千五十条" || entries[0].Hit.LawTitle != "民法" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestFuse_ForcedInclusionSkipsFoundArticles(t *testing.T) {
	f := newTestFuser()
	// A corrupted law id on the hit: the entry is still found by title and
	// its law id is corrected for fetching.
	lists := [][]models.SearchHit{{hit("BROKEN", "民法", "第九十条")}}
	entries, _ := f.Fuse(lists, parseQuery("民法第九十条"), 0)
	if len(entries) != 1 {
		t.Fatalf("expected no synthesized duplicate, got %d entries", len(entries))
	}
	if entries[0].Hit.LawID != minpoID || entries[0].Key != "BROKEN_第九十条" {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].ArticleKey().LawID != minpoID {
		t.Error("storage key must use the corrected law id")
	}
}

func TestFuse_ForcedInclusionUsesPartialOrResolvedID(t *testing.T) {
	f := NewFuser(nil, nil)
	lists := [][]models.SearchHit{{hit("X1", "地方税法施行令", "第一条")}}
	entries, _ := f.Fuse(lists, parseQuery("地方税法施行令第三条"), 0)
	if !hasKey(entries, "X1_第三条") {
		t.Errorf("partial law id should be used, got %v", keysOf(entries))
	}

	cits := parseQuery("架空特別法第三条")
	cits[0].LawID, cits[0].HasLawID = "R1", true
	entries, _ = f.Fuse(nil, cits, 0)
	if !hasKey(entries, "R1_第三条") {
		t.Errorf("resolved law id should be used, got %v", keysOf(entries))
	}

	entries, _ = f.Fuse(nil, parseQuery("架空特別法第三条"), 0)
	if len(entries) != 0 {
		t.Errorf("unresolvable citation must not be synthesized, got %v", keysOf(entries))
	}
}

func TestFuse_Truncates(t *testing.T) {
	f := newTestFuser()
	var list []models.SearchHit
	for _, a := range []string{"第一条", "第二条", "第三条", "第四条"} {
		list = append(list, hit(minpoID, "民法", a))
	}
	entries, total := f.Fuse([][]models.SearchHit{list}, nil, 2)
	if total != 4 || len(entries) != 2 {
		t.Errorf("total = %d, len = %d", total, len(entries))
	}
	if entries[0].Key != minpoID+"_第一条" {
		t.Errorf("top = %s", entries[0].Key)
	}
}

func hasKey(entries []*FusedEntry, key string) bool {
	for _, e := range entries {
		if e.Key == key {
			return true
		}
	}
	return false
}

func keysOf(entries []*FusedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}
