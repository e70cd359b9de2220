package shard

import (
	"fmt"
	"sort"

	"github.com/hyperjump/joubun/internal/kanji"
)

// ObjectKind tells the fetcher how to decode a storage object.
type ObjectKind int

const (
	// ShardObject holds {"laws": {lawId: law}} for one or more laws.
	ShardObject ObjectKind = iota
	// ArticleObject holds a single article of one law.
	ArticleObject
)

// Object is one storage object to fetch.
type Object struct {
	Key  string
	Kind ObjectKind
	// LawID and Title identify the article held by an ArticleObject.
	LawID string
	Title string
}

// Strategy maps the requested article titles of one law to storage objects.
// Titles that cannot be placed are returned as unplaced.
type Strategy interface {
	Objects(lawID string, titles []string) (objects []Object, unplaced []string)
}

// Range maps an inclusive article-number range to a shard.
type Range struct {
	From  int `yaml:"from" json:"from"`
	To    int `yaml:"to" json:"to"`
	Shard int `yaml:"shard" json:"shard"`
}

// RangeSharded splits one law across shards by leading article number.
// Branch suffixes are ignored for ranging: 第七十条の二 lives with 第七十条.
type RangeSharded struct {
	Ranges    []Range `yaml:"ranges" json:"ranges"`
	KeyFormat string  `yaml:"key_format" json:"key_format"`
}

// ShardFor returns the shard containing article number num.
func (s RangeSharded) ShardFor(num int) (int, bool) {
	for _, r := range s.Ranges {
		if num >= r.From && num <= r.To {
			return r.Shard, true
		}
	}
	return 0, false
}

// Objects returns the distinct shards covering titles, sorted by key.
func (s RangeSharded) Objects(lawID string, titles []string) ([]Object, []string) {
	seen := make(map[int]struct{})
	var unplaced []string
	for _, title := range titles {
		num, ok := kanji.LeadingNumber(title)
		if !ok {
			unplaced = append(unplaced, title)
			continue
		}
		shard, ok := s.ShardFor(num)
		if !ok {
			unplaced = append(unplaced, title)
			continue
		}
		seen[shard] = struct{}{}
	}
	shards := make([]int, 0, len(seen))
	for n := range seen {
		shards = append(shards, n)
	}
	sort.Ints(shards)
	objects := make([]Object, 0, len(shards))
	for _, n := range shards {
		objects = append(objects, Object{Key: fmt.Sprintf(s.KeyFormat, n), Kind: ShardObject})
	}
	return objects, unplaced
}

// Keys returns the storage keys of every shard of the law, sorted.
func (s RangeSharded) Keys() []string {
	seen := make(map[string]struct{}, len(s.Ranges))
	keys := make([]string, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		key := fmt.Sprintf(s.KeyFormat, r.Shard)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PerArticle stores each article of a law as its own object, keyed by law id
// and exact article title.
type PerArticle struct {
	KeyFormat string
}

// Objects returns one object per distinct title.
func (s PerArticle) Objects(lawID string, titles []string) ([]Object, []string) {
	seen := make(map[string]struct{}, len(titles))
	objects := make([]Object, 0, len(titles))
	for _, title := range titles {
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		objects = append(objects, Object{
			Key:   fmt.Sprintf(s.KeyFormat, lawID, title),
			Kind:  ArticleObject,
			LawID: lawID,
			Title: title,
		})
	}
	return objects, nil
}

// SingleShard keeps the whole law in one ordinary shard.
type SingleShard struct {
	Shard     int
	KeyFormat string
}

// Objects returns the law's shard.
func (s SingleShard) Objects(string, []string) ([]Object, []string) {
	return []Object{{Key: fmt.Sprintf(s.KeyFormat, s.Shard), Kind: ShardObject}}, nil
}
