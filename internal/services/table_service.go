package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tabledesk/internal/editor"
	"tabledesk/internal/models"
	"tabledesk/internal/reconciler"
	"tabledesk/internal/repositories"
)

type TableCatalog interface {
	LoadTable(ctx context.Context, schema, name string) (*reconciler.Snapshot, error)
	TableExists(ctx context.Context, oid uint32) (bool, error)
	ParentColumns(ctx context.Context, parent reconciler.TableRef) ([]reconciler.ColumnSpec, error)
}

type Applier interface {
	Apply(ctx context.Context, ops []reconciler.Operation) (int, error)
}

type HistoryStore interface {
	Record(ctx context.Context, batch *models.ChangeBatch) error
	List(ctx context.Context, target string, limit int) ([]models.ChangeBatch, error)
}

// Plan is the operation list of a session together with its script.
type Plan struct {
	Operations []reconciler.Operation `json:"operations"`
	Script     string                 `json:"script"`
}

type CommitResult struct {
	Plan
	Applied int `json:"applied"`
}

type TableService struct {
	catalog  TableCatalog
	applier  Applier
	history  HistoryStore
	sessions *repositories.SessionRepository
	logger   *slog.Logger
}

func NewTableService(
	catalog TableCatalog,
	applier Applier,
	history HistoryStore,
	sessions *repositories.SessionRepository,
	logger *slog.Logger,
) *TableService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TableService{
		catalog:  catalog,
		applier:  applier,
		history:  history,
		sessions: sessions,
		logger:   logger,
	}
}

// OpenEdit captures the snapshot of an existing table and opens a session on it.
func (s *TableService) OpenEdit(ctx context.Context, owner string, table reconciler.TableRef) (models.SessionView, error) {
	snap, err := s.catalog.LoadTable(ctx, table.Schema, table.Name)
	if err != nil {
		if errors.Is(err, repositories.ErrObjectNotFound) {
			return models.SessionView{}, &ConfigurationError{Object: table.String(), Err: err}
		}
		return models.SessionView{}, err
	}

	session := models.NewEditSession(owner, reconciler.TableRef{Schema: snap.Schema, Name: snap.Name}, editor.NewEditState(snap))
	s.sessions.Create(session)
	s.logger.Info("edit session opened", "session", session.ID, "table", session.Table.String(), "owner", owner)
	return s.view(session)
}

// OpenCreate opens a session for a table that does not exist yet.
func (s *TableService) OpenCreate(owner string, table reconciler.TableRef) (models.SessionView, error) {
	state := editor.NewCreateState(table.Schema, table.Name)
	session := models.NewEditSession(owner, reconciler.TableRef{Schema: state.Schema(), Name: state.Name()}, state)
	s.sessions.Create(session)
	s.logger.Info("create session opened", "session", session.ID, "table", session.Table.String(), "owner", owner)
	return s.view(session)
}

func (s *TableService) view(session *models.EditSession) (models.SessionView, error) {
	var v models.SessionView
	err := session.Do(func(state *editor.State) error {
		v = session.View(state)
		return nil
	})
	return v, err
}

func (s *TableService) Get(owner string, id uuid.UUID) (models.SessionView, error) {
	session, err := s.sessions.Find(id, owner)
	if err != nil {
		return models.SessionView{}, err
	}
	return s.view(session)
}

// Update applies fn to the session state and returns the new view. The
// state is left as fn left it when fn fails.
func (s *TableService) Update(owner string, id uuid.UUID, fn func(state *editor.State) error) (models.SessionView, error) {
	session, err := s.sessions.Find(id, owner)
	if err != nil {
		return models.SessionView{}, err
	}

	var v models.SessionView
	err = session.Do(func(state *editor.State) error {
		if err := fn(state); err != nil {
			return err
		}
		v = session.View(state)
		return nil
	})
	return v, err
}

// AddInheritance reads the columns of parent and appends them as inherited
// columns of the session's table.
func (s *TableService) AddInheritance(ctx context.Context, owner string, id uuid.UUID, parent reconciler.TableRef) (models.SessionView, error) {
	if _, err := s.sessions.Find(id, owner); err != nil {
		return models.SessionView{}, err
	}

	columns, err := s.catalog.ParentColumns(ctx, parent)
	if err != nil {
		if errors.Is(err, repositories.ErrObjectNotFound) {
			return models.SessionView{}, &ConfigurationError{Object: parent.String(), Err: err}
		}
		return models.SessionView{}, err
	}

	return s.Update(owner, id, func(state *editor.State) error {
		return state.AddInheritance(parent, columns)
	})
}

// Preview reconciles the session without touching the server.
func (s *TableService) Preview(owner string, id uuid.UUID) (*Plan, error) {
	session, err := s.sessions.Find(id, owner)
	if err != nil {
		return nil, err
	}

	var plan *Plan
	err = session.Do(func(state *editor.State) error {
		ops, err := state.Plan()
		if err != nil {
			return err
		}
		plan = &Plan{Operations: ops, Script: reconciler.Script(ops)}
		return nil
	})
	return plan, err
}

// Commit reconciles the session, applies the operations and closes the
// session. A validation failure keeps the session open; once the batch
// reached the server the session is closed whatever the outcome.
func (s *TableService) Commit(ctx context.Context, owner string, id uuid.UUID) (*CommitResult, error) {
	session, err := s.sessions.Find(id, owner)
	if err != nil {
		return nil, err
	}

	var result *CommitResult
	err = session.Do(func(state *editor.State) error {
		ops, err := state.Plan()
		if err != nil {
			return err
		}

		if prev := state.Previous(); prev != nil && prev.OID != 0 {
			exists, err := s.catalog.TableExists(ctx, prev.OID)
			if err != nil {
				return err
			}
			if !exists {
				s.sessions.Delete(id)
				return &ConfigurationError{Object: session.Table.String(), Err: repositories.ErrObjectNotFound}
			}
		}

		result = &CommitResult{Plan: Plan{Operations: ops, Script: reconciler.Script(ops)}}
		defer s.sessions.Delete(id)
		if len(ops) == 0 {
			return nil
		}

		started := time.Now()
		applied, applyErr := s.applier.Apply(ctx, ops)
		result.Applied = applied

		s.record(ctx, session, state, result, applyErr)
		if applyErr != nil {
			return applyErr
		}
		s.logger.Info("changes committed",
			"session", id,
			"table", session.Table.String(),
			"operations", len(ops),
			"duration", time.Since(started))
		return nil
	})
	return result, err
}

func (s *TableService) record(ctx context.Context, session *models.EditSession, state *editor.State, result *CommitResult, applyErr error) {
	batch := &models.ChangeBatch{
		SessionID:  session.ID,
		Actor:      session.Owner,
		Target:     reconciler.TableRef{Schema: state.Schema(), Name: state.Name()}.String(),
		Mode:       string(state.Mode()),
		Script:     result.Script,
		Operations: len(result.Operations),
		Applied:    result.Applied,
		Success:    applyErr == nil,
	}
	if applyErr != nil {
		batch.Error = applyErr.Error()
	}
	if err := s.history.Record(ctx, batch); err != nil {
		s.logger.Warn("failed to record change history", "session", session.ID, "error", err)
	}
}

// Cancel discards the session and its edit state.
func (s *TableService) Cancel(owner string, id uuid.UUID) error {
	if _, err := s.sessions.Find(id, owner); err != nil {
		return err
	}
	s.sessions.Delete(id)
	return nil
}

// ExpireSessions drops sessions older than ttl.
func (s *TableService) ExpireSessions(ttl time.Duration) int {
	n := s.sessions.DeleteExpired(ttl)
	if n > 0 {
		s.logger.Info("expired edit sessions", "count", n)
	}
	return n
}

func (s *TableService) History(ctx context.Context, target string, limit int) ([]models.ChangeBatch, error) {
	batches, err := s.history.List(ctx, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list change history: %w", err)
	}
	return batches, nil
}
