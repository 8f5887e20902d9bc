package models_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB wires an in-memory sqlite database into the config layer.
// A single connection keeps the :memory: database alive and serializes
// writers the way a row lock would.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	config.UseDatabase(db)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test Operator")
	ctx = utils.SetUsernameInContext(ctx, "operator@test.local")
	return ctx
}
