package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabledesk/internal/config"
	"tabledesk/internal/database"
	"tabledesk/internal/handlers"
	"tabledesk/internal/middlewares"
	"tabledesk/internal/repositories"
	"tabledesk/internal/routes"
	"tabledesk/internal/services"
)

type Server struct {
	HTTP *http.Server

	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	tables *services.TableService
}

// NewServer connects to the administered server and the history store and
// wires the HTTP API.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	pool, err := database.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.OpenSQL(cfg.Database.DSN())
	if err != nil {
		pool.Close()
		return nil, err
	}

	historyDB, err := database.OpenHistory(cfg.History.DSN)
	if err != nil {
		pool.Close()
		_ = sqlDB.Close()
		return nil, err
	}
	if err := database.RunMigrations(historyDB, logger); err != nil {
		pool.Close()
		_ = sqlDB.Close()
		return nil, err
	}
	if historyDB == nil {
		logger.Info("change history disabled")
	}

	// Dependency injection
	catalogRepo := repositories.NewCatalogRepository(pool)
	applyRepo := repositories.NewApplyRepository(sqlDB, logger)
	historyRepo := repositories.NewHistoryRepository(historyDB)
	sessionRepo := repositories.NewSessionRepository()

	tableService := services.NewTableService(catalogRepo, applyRepo, historyRepo, sessionRepo, logger)
	catalogService := services.NewCatalogService(catalogRepo, logger)

	router := NewRouter(cfg, tableService, catalogService, logger)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		sqlDB:  sqlDB,
		tables: tableService,
		HTTP: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
	return s, nil
}

// NewRouter builds the gin engine serving /api/v1.
func NewRouter(cfg *config.Config, tableService *services.TableService, catalogService *services.CatalogService, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(logger), cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	routes.RegisterRoutes(router,
		middlewares.Authenticate([]byte(cfg.Auth.JWTSecret)),
		handlers.NewTableHandler(tableService),
		handlers.NewCatalogHandler(catalogService),
		handlers.NewUserHandler(catalogService),
	)
	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	go s.expireSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.HTTP.Addr)
		if err := s.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.HTTP.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server exiting")
	return nil
}

func (s *Server) expireSessions(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Session.TTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tables.ExpireSessions(s.cfg.Session.TTL)
		}
	}
}

func (s *Server) close() {
	s.pool.Close()
	if err := s.sqlDB.Close(); err != nil {
		s.logger.Warn("failed to close database handle", "error", err)
	}
	s.logger.Info("database connections closed")
}
