package database

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"tabledesk/internal/models"
)

// RunMigrations creates or updates the change history schema. It is a
// no-op when history is disabled.
func RunMigrations(db *gorm.DB, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	migrations := []interface{}{
		&models.ChangeBatch{},
	}

	for i, m := range migrations {
		logger.Debug("running migration", "step", i+1, "total", len(migrations))
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logger.Info("history migrations completed")
	return nil
}
