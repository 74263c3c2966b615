package oem

import (
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current trajectory document.
// Documents stored here are treated as read-only by all readers.
type Store struct {
	doc atomic.Pointer[Document]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current document, or nil if none has been loaded.
func (s *Store) Get() *Document {
	return s.doc.Load()
}

// Set atomically replaces the current document.
func (s *Store) Set(doc *Document) {
	s.doc.Store(doc)
}

// AgeSeconds returns the age of the current document in seconds.
// Returns -1 if no document is loaded.
func (s *Store) AgeSeconds() float64 {
	doc := s.doc.Load()
	if doc == nil {
		return -1
	}
	return time.Since(doc.FetchedAt).Seconds()
}
