package storage

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/eugenenazirov/provstore-interop/internal/formats"
)

const maxDocumentBytes = 10 << 20

var (
	// ErrNotFound indicates no document exists with the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidDocument indicates the document violates validation rules.
	ErrInvalidDocument = errors.New("document must have content, a known format and be at most 10 MiB")
)

// Document is a stored provenance document.
type Document struct {
	ID        int64
	RecID     string
	Format    string
	Content   string
	Public    bool
	Owner     string
	CreatedAt time.Time
}

// Storage persists documents for the ProvStore emulator.
type Storage interface {
	Create(doc Document) (Document, error)
	Get(id int64) (Document, error)
	Delete(id int64) error
	Count() int
}

// MemoryStorage keeps documents in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[int64]Document
	clock  func() time.Time
}

// NewMemoryStorage returns an empty store whose ids start at 1.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nextID: 1,
		docs:   make(map[int64]Document),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Create validates doc, assigns it an id and stores a copy.
func (s *MemoryStorage) Create(doc Document) (Document, error) {
	if err := validateDocument(doc); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc.ID = s.nextID
	doc.CreatedAt = s.clock()
	s.nextID++
	s.docs[doc.ID] = doc

	return doc, nil
}

// Get returns the document with the given id.
func (s *MemoryStorage) Get(id int64) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Delete removes the document with the given id.
func (s *MemoryStorage) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// Count returns the number of stored documents.
func (s *MemoryStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func validateDocument(doc Document) error {
	if strings.TrimSpace(doc.Content) == "" || len(doc.Content) > maxDocumentBytes {
		return ErrInvalidDocument
	}
	if !formats.Known(doc.Format) {
		return ErrInvalidDocument
	}
	return nil
}
