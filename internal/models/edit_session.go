package models

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tabledesk/internal/editor"
	"tabledesk/internal/reconciler"
)

// EditSession owns the EditState of one table editor. Requests touching
// the same session are serialized through Do.
type EditSession struct {
	ID        uuid.UUID
	Owner     string
	Table     reconciler.TableRef
	CreatedAt time.Time

	mu    sync.Mutex
	state *editor.State
}

func NewEditSession(owner string, table reconciler.TableRef, state *editor.State) *EditSession {
	return &EditSession{
		ID:        uuid.New(),
		Owner:     owner,
		Table:     table,
		CreatedAt: time.Now(),
		state:     state,
	}
}

// Do runs fn with exclusive access to the session state.
func (s *EditSession) Do(fn func(state *editor.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// SessionView is the JSON form of a session.
type SessionView struct {
	ID              uuid.UUID                   `json:"id"`
	Mode            editor.Mode                 `json:"mode"`
	Table           reconciler.Input            `json:"table"`
	ConstraintKinds []reconciler.ConstraintKind `json:"constraint_kinds"`
	CreatedAt       time.Time                   `json:"created_at"`
}

// View must be called from inside Do.
func (s *EditSession) View(state *editor.State) SessionView {
	in := state.Input()
	in.Previous = nil
	return SessionView{
		ID:              s.ID,
		Mode:            state.Mode(),
		Table:           in,
		ConstraintKinds: state.ConstraintKinds(),
		CreatedAt:       s.CreatedAt,
	}
}
