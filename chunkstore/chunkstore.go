// Package chunkstore hands out the bytes of a file as an ordered sequence of
// independently addressable chunks.
package chunkstore

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
)

// Store gives read-only access to the chunks of one file. Implementations
// must be safe for concurrent use.
type Store interface {
	// Chunk returns the bytes of chunk idx. Past the last chunk it returns a
	// nil slice and a nil error.
	Chunk(ctx context.Context, idx int) ([]byte, error)
	// ChunkStartOffset is the offset within chunk idx at which the range
	// assigned to that chunk begins.
	ChunkStartOffset(idx int) int64
	// NumChunks returns the number of chunks.
	NumChunks() int
}

// ErrInvalidChunkSize is returned for a non-positive chunk size
var ErrInvalidChunkSize = errors.New("chunkstore: chunk size must be positive")

// Memory is a Store over chunks held in memory.
type Memory struct {
	chunks [][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory splits data into chunks of chunkSize bytes; the last chunk may
// be shorter.
func NewMemory(data []byte, chunkSize int) (*Memory, error) {
	if chunkSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidChunkSize, "got %d", chunkSize)
	}
	return &Memory{chunks: Split(data, chunkSize)}, nil
}

// NewMemoryFromChunks wraps already split chunks.
func NewMemoryFromChunks(chunks [][]byte) *Memory {
	return &Memory{chunks: chunks}
}

// Split cuts data into chunkSize pieces. Every piece is clipped so that
// appending to it never writes into its neighbour.
func Split(data []byte, chunkSize int) [][]byte {
	var chunks [][]byte
	for off := 0; off < len(data); off += chunkSize {
		end := min(off+chunkSize, len(data))
		chunks = append(chunks, slices.Clip(data[off:end]))
	}
	return chunks
}

// Chunk implements Store.
func (m *Memory) Chunk(_ context.Context, idx int) ([]byte, error) {
	if idx < 0 || idx >= len(m.chunks) {
		return nil, nil
	}
	return m.chunks[idx], nil
}

// ChunkStartOffset implements Store. Every in-memory chunk starts a new range.
func (m *Memory) ChunkStartOffset(int) int64 {
	return 0
}

// NumChunks implements Store.
func (m *Memory) NumChunks() int {
	return len(m.chunks)
}
