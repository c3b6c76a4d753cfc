package repositories

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabledesk/internal/models"
)

var ErrSessionNotFound = errors.New("edit session not found")

// SessionRepository holds the open edit sessions of this process.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.EditSession
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]*models.EditSession)}
}

func (r *SessionRepository) Create(session *models.EditSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
}

// Find returns the session when it exists and belongs to owner.
func (r *SessionRepository) Find(id uuid.UUID, owner string) (*models.EditSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.Owner != owner {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *SessionRepository) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// DeleteExpired discards sessions opened before now minus ttl.
func (r *SessionRepository) DeleteExpired(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	n := 0
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}
