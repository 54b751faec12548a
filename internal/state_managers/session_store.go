package state_managers

import (
	"errors"
	"sort"

	"github.com/benmeehan/geo-attendance/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// ErrSessionNotFound is returned when a session id is unknown to the store.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore provides SessionDescriptors by id.
type SessionStore interface {
	Save(session models.SessionDescriptor) error
	Get(sessionID string) (models.SessionDescriptor, error)
	Delete(sessionID string) error
	List() []models.SessionDescriptor
	Count() int
}

// MemorySessionStore keeps sessions in a concurrent map for the process lifetime.
type MemorySessionStore struct {
	sessions cmap.ConcurrentMap[string, models.SessionDescriptor]
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: cmap.New[models.SessionDescriptor]()}
}

func (s *MemorySessionStore) Save(session models.SessionDescriptor) error {
	if session.SessionID == "" {
		return errors.New("session id is required")
	}
	s.sessions.Set(session.SessionID, session)
	return nil
}

func (s *MemorySessionStore) Get(sessionID string) (models.SessionDescriptor, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return models.SessionDescriptor{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Delete(sessionID string) error {
	if !s.sessions.Has(sessionID) {
		return ErrSessionNotFound
	}
	s.sessions.Remove(sessionID)
	return nil
}

// List returns all sessions ordered by creation time.
func (s *MemorySessionStore) List() []models.SessionDescriptor {
	items := s.sessions.Items()
	out := make([]models.SessionDescriptor, 0, len(items))
	for _, session := range items {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemorySessionStore) Count() int {
	return s.sessions.Count()
}
