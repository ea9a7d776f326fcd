// Package contact defines the name-to-email directory the engine consults
// during guest resolution. The in-memory store lives here; a SQLite-backed
// store lives in the sqlite subpackage.
package contact

import (
	"context"
	"strings"
	"sync"
)

// Contact is one directory entry.
type Contact struct {
	Name  string
	Email string
}

// Store is the directory capability. FindByName returns nil (not an error)
// for unknown names; Save overwrites an existing mapping.
type Store interface {
	FindByName(ctx context.Context, name string) (*Contact, error)
	Save(ctx context.Context, name, email string) error
}

// InMemoryStore keeps contacts in a process-local map keyed by lowercased
// name. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty directory.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{contacts: make(map[string]Contact)}
}

// FindByName implements Store. Lookup is case-insensitive.
func (s *InMemoryStore) FindByName(_ context.Context, name string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

// Save implements Store, overwriting any existing mapping for the name.
func (s *InMemoryStore) Save(_ context.Context, name, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contacts[strings.ToLower(strings.TrimSpace(name))] = Contact{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
	}
	return nil
}
