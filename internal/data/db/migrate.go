package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// EnsureLifecycleIndexes adds the composite and partial indexes gorm tags cannot express.
// Statements are portable between postgres and sqlite.
func EnsureLifecycleIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_product_embedded_model
			ON product(embedding_model, id) WHERE name_embedding IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_step_scope_visible_seq
			ON lifecycle_step(product_id, user_id, is_visible, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_summary_scope_range
			ON lifecycle_summary(scope_key, step_count_start, step_count_end)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
