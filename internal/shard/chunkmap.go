// Package shard locates statute articles in the sharded corpus and fetches
// them from object storage.
//
// Most laws live in an ordinary shard that multiplexes many laws. Laws too large
// for one shard are either range-sharded by article number (configured per law
// id) or stored one article per object (chunk-map sentinel "LARGE").
package shard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RefKind distinguishes chunk-map values.
type RefKind int

const (
	// RefShard is an ordinary shard number (or list of numbers).
	RefShard RefKind = iota
	// RefLarge marks a law stored one article per object.
	RefLarge
)

// ChunkRef is one chunk-map value: a shard number, an array of shard numbers,
// "LARGE" or "LARGE_<n>".
type ChunkRef struct {
	Kind   RefKind
	Shards []int
	// LargeIndex is n for "LARGE_<n>", 0 for bare "LARGE".
	LargeIndex int
}

// Primary returns the authoritative shard number of an ordinary law: the
// value itself, or the first element of an array.
func (r ChunkRef) Primary() (int, bool) {
	if r.Kind != RefShard || len(r.Shards) == 0 {
		return 0, false
	}
	return r.Shards[0], true
}

// UnmarshalJSON decodes the three chunk-map encodings.
func (r *ChunkRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty chunk reference")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return r.parseSentinel(s)
	case '[':
		var shards []int
		if err := json.Unmarshal(data, &shards); err != nil {
			return fmt.Errorf("invalid shard list: %w", err)
		}
		*r = ChunkRef{Kind: RefShard, Shards: shards}
		return nil
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid shard number: %w", err)
		}
		*r = ChunkRef{Kind: RefShard, Shards: []int{n}}
		return nil
	}
}

func (r *ChunkRef) parseSentinel(s string) error {
	if s == "LARGE" {
		*r = ChunkRef{Kind: RefLarge}
		return nil
	}
	if rest, ok := strings.CutPrefix(s, "LARGE_"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("invalid large sentinel %q", s)
		}
		*r = ChunkRef{Kind: RefLarge, LargeIndex: n}
		return nil
	}
	// Some ingestion runs wrote shard numbers as strings.
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid chunk reference %q", s)
	}
	*r = ChunkRef{Kind: RefShard, Shards: []int{n}}
	return nil
}

// ChunkMap maps law id to its chunk reference.
type ChunkMap map[string]ChunkRef

// ParseChunkMap decodes a chunk-map object.
func ParseChunkMap(data []byte) (ChunkMap, error) {
	var cm ChunkMap
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("failed to parse chunk map: %w", err)
	}
	return cm, nil
}
