package store

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FlatIndex is an exact flat L2 index over float32 vectors. Row i of the
// index corresponds to snippet id i of the corpus that produced it. The
// index is immutable after construction and safe for concurrent readers;
// ingestion replaces the whole index.
type FlatIndex struct {
	dims    int
	vectors [][]float32
}

// flatIndexFile is the on-disk representation.
type flatIndexFile struct {
	Dims    int
	Vectors [][]float32
}

// NewFlatIndex creates an index from snippet embeddings. All vectors must
// share the declared dimension; dims is authoritative even when the embedding
// set is empty.
func NewFlatIndex(embeddings [][]float32, dims int) (*FlatIndex, error) {
	for i, v := range embeddings {
		if len(v) != dims {
			return nil, ErrDimensionMismatch{Expected: dims, Got: len(v), Row: i}
		}
	}
	return &FlatIndex{dims: dims, vectors: embeddings}, nil
}

// Dimensions returns the vector dimension.
func (ix *FlatIndex) Dimensions() int {
	return ix.dims
}

// Count returns the number of indexed vectors.
func (ix *FlatIndex) Count() int {
	return len(ix.vectors)
}

// Search returns the ids of the n nearest vectors to the query, sorted by
// ascending L2 distance (ties by lower id). Returns fewer than n ids when
// the index holds fewer vectors.
func (ix *FlatIndex) Search(query []float32, n int) ([]int, error) {
	if len(query) != ix.dims {
		return nil, ErrDimensionMismatch{Expected: ix.dims, Got: len(query)}
	}
	if n <= 0 || len(ix.vectors) == 0 {
		return []int{}, nil
	}

	type hit struct {
		id   int
		dist float64
	}
	hits := make([]hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = hit{id: i, dist: l2Squared(query, v)}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].dist < hits[b].dist
	})

	if n > len(hits) {
		n = len(hits)
	}
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = hits[i].id
	}
	return ids, nil
}

// Save persists the index at path. The write is atomic: the full file is
// produced under a temporary name and renamed into place, so readers see
// either the previous complete index or the new one. The parent directory
// is created if needed.
func (ix *FlatIndex) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	enc := gob.NewEncoder(file)
	if err := enc.Encode(flatIndexFile{Dims: ix.dims, Vectors: ix.vectors}); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode index: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish index file: %w", err)
	}

	return nil
}

// LoadFlatIndex loads the index at path. An absent or unreadable file is
// not an error: the index is simply reported as missing, and retrieval
// proceeds without vector-index candidates.
func LoadFlatIndex(path string) *FlatIndex {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("vector_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	}
	defer func() { _ = file.Close() }()

	var data flatIndexFile
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		slog.Warn("vector_index_decode_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}

	return &FlatIndex{dims: data.Dims, vectors: data.Vectors}
}

// l2Squared computes squared Euclidean distance. Squared distance preserves
// the L2 ordering and avoids the sqrt per vector.
func l2Squared(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
	Row      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
