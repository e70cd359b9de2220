package vector

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/joubun/pkg/utils"
)

// indexMagic starts every saved index file.
var indexMagic = [4]byte{'J', 'B', 'V', '1'}

// MemoryIndex is an in-memory vector index using brute-force inner product search.
// The statute corpus is a few hundred thousand articles at most, which a linear
// scan serves well within request latency. Vectors are stored back to back in
// one slice; slot i occupies data[i*dimensions:(i+1)*dimensions].
type MemoryIndex struct {
	dimensions int
	ids        []string
	data       []float32
	// pos maps id to its slot so re-indexing a law replaces its vectors.
	pos map[string]int
	mu  sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		pos:        make(map[string]int),
	}, nil
}

func (m *MemoryIndex) slot(i int) []float32 {
	return m.data[i*m.dimensions : (i+1)*m.dimensions]
}

// Add stores vectors under the given IDs, replacing existing vectors with the same ID.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for i := range vectors {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if p, ok := m.pos[id]; ok {
			copy(m.slot(p), vectors[i])
			continue
		}
		m.pos[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.data = append(m.data, vectors[i]...)
	}
	return nil
}

// resultHeap is a min-heap on (score, reversed id) holding the best k results.
type resultHeap []*VectorResult

func (h resultHeap) Len() int { return len(h) }

func (h resultHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(*VectorResult)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// worse reports whether a ranks below b: lower score, or equal score and larger id.
func worse(a, b *VectorResult) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// Search returns the top-k vectors by inner product. Equal scores are ordered by id.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	h := make(resultHeap, 0, k+1)
	for i, id := range m.ids {
		r := &VectorResult{ID: id, Score: utils.Dot(query, m.slot(i))}
		if len(h) < k {
			heap.Push(&h, r)
			continue
		}
		if worse(h[0], r) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}
	out := make([]*VectorResult, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(*VectorResult)
	}
	return out, nil
}

// Remove removes vectors by ID. Unknown ids are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		p, ok := m.pos[id]
		if !ok {
			continue
		}
		last := len(m.ids) - 1
		if p != last {
			m.ids[p] = m.ids[last]
			copy(m.slot(p), m.slot(last))
			m.pos[m.ids[p]] = p
		}
		m.ids = m.ids[:last]
		m.data = m.data[:last*m.dimensions]
		delete(m.pos, id)
	}
	return nil
}

// Save persists the index to path, replacing the file atomically. The
// directory is created if needed. Format: magic (4), dimension (4), n (4),
// then per vector: idLen (4), id bytes, vector (dimension*4 bytes), all little endian.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := m.writeTo(w); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (m *MemoryIndex) writeTo(w io.Writer) error {
	header := []uint32{uint32(m.dimensions), uint32(len(m.ids))}
	if _, err := w.Write(indexMagic[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]byte, m.dimensions*4)
	for i, id := range m.ids {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := io.WriteString(w, id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		for j, v := range m.slot(i) {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != indexMagic {
		return fmt.Errorf("not a vector index file: %s", path)
	}
	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	dim, n := int(header[0]), int(header[1])
	if dim != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	ids := make([]string, 0, n)
	data := make([]float32, 0, n*dim)
	pos := make(map[string]int, n)
	buf := make([]byte, dim*4)
	for i := 0; i < n; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		for j := 0; j < dim; j++ {
			data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:])))
		}
		pos[string(idBytes)] = len(ids)
		ids = append(ids, string(idBytes))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = ids
	m.data = data
	m.pos = pos
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
