// Package memory implements a process-local session store.
// Used in tests and when no database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/estoquel/restocker/internal/session"
)

type Store struct {
	mu      sync.Mutex
	current session.Session
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Load(_ context.Context) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *Store) Save(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = session.Session{}
	return nil
}
