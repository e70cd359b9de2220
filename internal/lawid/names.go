package lawid

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
)

// Names holds the full law-name → id table. The table is swapped atomically
// when the backing file is reloaded, so lookups never see a partial table.
type Names struct {
	table atomic.Pointer[Table]
}

// NewNames wraps an initial table. A nil table behaves as empty.
func NewNames(t *Table) *Names {
	n := &Names{}
	if t == nil {
		t = NewTable(nil, nil)
	}
	n.table.Store(t)
	return n
}

// Lookup returns the law id for name from the current snapshot.
func (n *Names) Lookup(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	return n.table.Load().Lookup(name)
}

// Len returns the size of the current snapshot.
func (n *Names) Len() int {
	if n == nil {
		return 0
	}
	return n.table.Load().Len()
}

// Replace swaps in a new snapshot.
func (n *Names) Replace(t *Table) {
	n.table.Store(t)
}

// Reload reads path and swaps in its contents. On error the current snapshot
// is kept.
func (n *Names) Reload(path string) error {
	t, err := LoadTable(path)
	if err != nil {
		return err
	}
	n.Replace(t)
	return nil
}

// lawEntry is the list form of the names file.
type lawEntry struct {
	LawID    string `json:"law_id"`
	LawTitle string `json:"law_title"`
}

// LoadTable reads a names file. Two layouts are accepted: an object mapping
// law title to law id, or an array of {"law_id", "law_title"} records.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read law names: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes names-file contents.
func ParseTable(data []byte) (*Table, error) {
	var byName map[string]string
	if err := json.Unmarshal(data, &byName); err == nil {
		return NewTable(byName, nil), nil
	}
	var entries []lawEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse law names: %w", err)
	}
	ids := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.LawTitle == "" || e.LawID == "" {
			continue
		}
		ids[e.LawTitle] = e.LawID
	}
	return NewTable(ids, nil), nil
}
