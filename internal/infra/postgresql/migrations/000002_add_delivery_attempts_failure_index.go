package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addDeliveryAttemptsFailureIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_delivery_attempts_failure_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_failed ON delivery_attempts (run_id, pass) WHERE delivered = false`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_delivery_attempts_failed`).Error
		},
	}
}
