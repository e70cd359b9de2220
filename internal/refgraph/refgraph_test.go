package refgraph

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/storage"
)

const minpoID = "129AC0000000089"

type countingStore struct {
	*storage.MemoryStore
	mu    sync.Mutex
	gets  map[string]int
	fails map[string]bool
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	c.gets[key]++
	fail := c.fails[key]
	c.mu.Unlock()
	if fail {
		return nil, errors.New("timeout")
	}
	return c.MemoryStore.Get(ctx, key)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	mem := storage.NewMemoryStore()
	put := func(key string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		_ = mem.Put(context.Background(), key, data)
	}
	put(DefaultIndexKey, map[string]int{minpoID: 3, "132AC0000000048": 3, "140AC0000000045": 9})
	put("refs/refs_chunk_003.json", map[string]any{
		minpoID: map[string]any{
			"refs": map[string][]Ref{
				minpoID + "_Art90": {{Target: minpoID + "_Art91", Text: "前条", Start: 3, End: 5}},
				minpoID + "_Art3_2": {{Target: minpoID + "_Art3", Text: "前条", Paragraph: 1}},
			},
			"reverse_refs": map[string][]string{
				minpoID + "_Art90": {"a", "b", "c", "d", "e", "f", "g"},
			},
		},
	})
	return &countingStore{MemoryStore: mem, gets: map[string]int{}, fails: map[string]bool{}}
}

func TestGetReferences(t *testing.T) {
	store := newStore(t)
	acc := NewAccessor(store, Config{}, nil)
	keys := []models.ArticleKey{
		{LawID: minpoID, ArticleTitle: "第九十条"},
		{LawID: minpoID, ArticleTitle: "第三条の二"},
		{LawID: "132AC0000000048", ArticleTitle: "第一条"},
	}
	got := acc.GetReferences(context.Background(), keys)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if len(got[0].Refs) != 1 || got[0].Refs[0].Target != minpoID+"_Art91" {
		t.Errorf("refs = %+v", got[0].Refs)
	}
	if len(got[0].ReverseRefs) != 7 {
		t.Errorf("accessor should return reverse refs uncapped, got %d", len(got[0].ReverseRefs))
	}
	got[0].CapReverse()
	if len(got[0].ReverseRefs) != MaxReverseRefs {
		t.Errorf("CapReverse left %d", len(got[0].ReverseRefs))
	}
	if len(got[1].Refs) != 1 || got[1].ArticleTitle != "第三条の二" {
		t.Errorf("branch article refs = %+v", got[1])
	}
	if store.gets["refs/refs_chunk_003.json"] != 1 {
		t.Errorf("shard should be fetched once, got %d", store.gets["refs/refs_chunk_003.json"])
	}
}

func TestGetReferences_MissesAreEmpty(t *testing.T) {
	store := newStore(t)
	store.fails["refs/refs_chunk_009.json"] = true
	acc := NewAccessor(store, Config{}, nil)
	keys := []models.ArticleKey{
		{LawID: minpoID, ArticleTitle: "第千条"},
		{LawID: "999AC0000000001", ArticleTitle: "第一条"},
		{LawID: "140AC0000000045", ArticleTitle: "第百九十九条"},
		{LawID: minpoID, ArticleTitle: "附則"},
	}
	got := acc.GetReferences(context.Background(), keys)
	for _, r := range got {
		if r.Refs == nil || r.ReverseRefs == nil || len(r.Refs) != 0 || len(r.ReverseRefs) != 0 {
			t.Errorf("%s %s: expected empty lists, got %+v", r.LawID, r.ArticleTitle, r)
		}
	}
	var fetched []string
	for k := range store.gets {
		fetched = append(fetched, k)
	}
	sort.Strings(fetched)
	want := []string{DefaultIndexKey, "refs/refs_chunk_003.json", "refs/refs_chunk_009.json"}
	if len(fetched) != len(want) {
		t.Errorf("fetched %v, want %v", fetched, want)
	}
}

func TestGetReferences_NoIndex(t *testing.T) {
	acc := NewAccessor(storage.NewMemoryStore(), Config{}, nil)
	got := acc.GetReferences(context.Background(), []models.ArticleKey{{LawID: minpoID, ArticleTitle: "第一条"}})
	if len(got) != 1 || got[0].Refs == nil || got[0].ReverseRefs == nil {
		t.Errorf("got %+v", got)
	}

	store := newStore(t)
	store.fails[DefaultIndexKey] = true
	got = NewAccessor(store, Config{}, nil).GetReferences(context.Background(),
		[]models.ArticleKey{{LawID: minpoID, ArticleTitle: "第九十条"}})
	if len(got[0].Refs) != 0 {
		t.Errorf("index failure should degrade to empty, got %+v", got[0])
	}
}
