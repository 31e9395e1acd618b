package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestCreateAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()

	first, err := store.Create(Document{Format: "json", Content: "{}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Create(Document{Format: "provn", Content: "document\nendDocument"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected creation time to be set")
	}
	if store.Count() != 2 {
		t.Fatalf("expected 2 documents, got %d", store.Count())
	}
}

func TestGetAndDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	doc, err := store.Create(Document{Format: "ttl", Content: "@prefix ex: <http://example.org/> ."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content != doc.Content || got.Format != "ttl" {
		t.Fatalf("unexpected document %+v", got)
	}

	if err := store.Delete(doc.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	testCases := []Document{
		{},
		{Format: "json", Content: "   "},
		{Format: "rdf", Content: "x"},
		{Format: "json", Content: strings.Repeat("a", maxDocumentBytes+1)},
	}

	for idx, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			store := NewMemoryStorage()
			if _, err := store.Create(tc); !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			if _, err := store.Create(Document{Format: "json", Content: "{}"}); err != nil {
				t.Errorf("Create failed: %v", err)
			}
		}()

		go func(id int64) {
			defer wg.Done()
			_, _ = store.Get(id)
		}(int64(i))
	}

	wg.Wait()

	if store.Count() != 32 {
		t.Fatalf("expected 32 documents, got %d", store.Count())
	}
}
