package vectorstore

import (
	"sync"
	"testing"

	"github.com/spigell/resume-rag/internal/domain"
)

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.Chunk{Index: i, Text: text, Embedding: domain.Vector{float64(i), 1}}
	}
	return out
}

func TestGetUnknownKeyIsEmpty(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	if got := m.Get("missing", domain.DocResume); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
	if all := m.All("missing"); len(all) != 0 {
		t.Fatalf("expected empty result, got %v", all)
	}
}

func TestPutGetKeepsOrderAndNamespaces(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Put("a1", domain.DocResume, chunks("r0", "r1"))
	m.Put("a1", domain.DocJob, chunks("j0"))
	m.Put("a2", domain.DocResume, chunks("other"))

	resume := m.Get("a1", domain.DocResume)
	if len(resume) != 2 || resume[0].Text != "r0" || resume[1].Text != "r1" {
		t.Fatalf("unexpected resume chunks: %+v", resume)
	}
	if resume[0].DocType != domain.DocResume {
		t.Fatalf("expected doc type to be stamped, got %q", resume[0].DocType)
	}

	all := m.All("a1")
	if len(all) != 3 || all[0].Text != "r0" || all[2].Text != "j0" {
		t.Fatalf("expected resume chunks before job chunks, got %+v", all)
	}

	if m.Len() != 4 {
		t.Fatalf("expected 4 chunks in total, got %d", m.Len())
	}
}

func TestPutOverwritesAndIsolatesCallers(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	input := chunks("first")
	m.Put("a1", domain.DocJob, input)
	input[0].Embedding[0] = 42

	if got := m.Get("a1", domain.DocJob)[0].Embedding[0]; got != 0 {
		t.Fatalf("expected stored embedding to be isolated from caller, got %v", got)
	}

	m.Put("a1", domain.DocJob, chunks("second", "third"))
	got := m.Get("a1", domain.DocJob)
	if len(got) != 2 || got[0].Text != "second" {
		t.Fatalf("expected last write to win, got %+v", got)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Put("a1", domain.DocResume, chunks("r0"))
	m.Put("a1", domain.DocJob, chunks("j0"))
	m.Delete("a1")

	if got := m.All("a1"); len(got) != 0 {
		t.Fatalf("expected no chunks after delete, got %+v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			m.Put(id, domain.DocResume, chunks("x", "y"))
		}()
		go func() {
			defer wg.Done()
			_ = m.All(id)
		}()
	}
	wg.Wait()

	if m.Len() != 40 {
		t.Fatalf("expected 40 chunks, got %d", m.Len())
	}
}
