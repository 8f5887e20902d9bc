package models

import (
	"bitbucket.org/mmdatafocus/parts_backend/config"
)

// MigrateTable runs gorm auto-migration for all models.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Part{},
		&InventoryItem{},
		&InventoryTransaction{},
		&TeamMember{},
	)
}
