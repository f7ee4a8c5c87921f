// Package vectorstore keeps chunk embeddings per analysis and document type for the process lifetime.
package vectorstore

import (
	"slices"
	"sync"

	"github.com/spigell/resume-rag/internal/domain"
)

type key struct {
	analysisID string
	docType    domain.DocType
}

// Memory is a process-wide keyed store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[key][]domain.Chunk
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[key][]domain.Chunk)}
}

// Put stores the chunks for the key, replacing whatever was there.
func (m *Memory) Put(analysisID string, docType domain.DocType, chunks []domain.Chunk) {
	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = slices.Clone(c.Embedding)
		c.DocType = docType
		stored[i] = c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key{analysisID, docType}] = stored
}

// Get returns the chunks stored for the key in document order. An unknown key gives an empty slice.
func (m *Memory) Get(analysisID string, docType domain.DocType) []domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries[key{analysisID, docType}])
}

// All returns the chunks of every document type of the analysis, resume first.
func (m *Memory) All(analysisID string) []domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Chunk
	for _, dt := range domain.DocTypes {
		out = append(out, m.entries[key{analysisID, dt}]...)
	}
	return out
}

// Delete drops every entry of the analysis.
func (m *Memory) Delete(analysisID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dt := range domain.DocTypes {
		delete(m.entries, key{analysisID, dt})
	}
}

// Len returns the number of stored chunks across all keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, chunks := range m.entries {
		n += len(chunks)
	}
	return n
}
