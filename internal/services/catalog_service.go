package services

import (
	"context"
	"errors"
	"log/slog"

	"tabledesk/internal/models"
	"tabledesk/internal/repositories"
)

type ObjectCatalog interface {
	ListTables(ctx context.Context, schema string, showSystem bool) ([]models.TableSummary, error)
	ListRoles(ctx context.Context) ([]string, error)
	ListFunctions(ctx context.Context, schema string, triggers bool) ([]models.Function, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, name string) (*models.User, error)
	DropUser(ctx context.Context, name string) error
}

// CatalogService exposes the browsable server objects.
type CatalogService struct {
	catalog ObjectCatalog
	logger  *slog.Logger
}

func NewCatalogService(catalog ObjectCatalog, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogService{catalog: catalog, logger: logger}
}

func (s *CatalogService) Tables(ctx context.Context, schema string, showSystem bool) ([]models.TableSummary, error) {
	return s.catalog.ListTables(ctx, schema, showSystem)
}

func (s *CatalogService) Roles(ctx context.Context) ([]string, error) {
	return s.catalog.ListRoles(ctx)
}

func (s *CatalogService) Functions(ctx context.Context, schema string, triggers bool) ([]models.Function, error) {
	return s.catalog.ListFunctions(ctx, schema, triggers)
}

func (s *CatalogService) Users(ctx context.Context) ([]models.User, error) {
	return s.catalog.ListUsers(ctx)
}

func (s *CatalogService) User(ctx context.Context, name string) (*models.User, error) {
	u, err := s.catalog.GetUser(ctx, name)
	if errors.Is(err, repositories.ErrObjectNotFound) {
		return nil, &ConfigurationError{Object: "user " + name, Err: err}
	}
	return u, err
}

// DropUser drops a login role. Superusers are only dropped when confirm is set.
func (s *CatalogService) DropUser(ctx context.Context, name string, confirm bool) error {
	u, err := s.User(ctx, name)
	if err != nil {
		return err
	}
	if u.Superuser && !confirm {
		return ErrConfirmationRequired
	}
	if err := s.catalog.DropUser(ctx, name); err != nil {
		return err
	}
	s.logger.Info("user dropped", "user", name, "superuser", u.Superuser)
	return nil
}
