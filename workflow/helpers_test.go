package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"bitbucket.org/mmdatafocus/parts_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type fakeDirectory struct {
	names map[string]string
}

func (f fakeDirectory) Resolve(ctx context.Context, email string) (string, error) {
	if name, ok := f.names[email]; ok {
		return name, nil
	}
	return "", utils.ErrorRecordNotFound
}

type fakeTasks struct {
	mu      sync.Mutex
	nextId  int
	failAll bool
	created []string
}

func (f *fakeTasks) CreateTask(ctx context.Context, title string, description string, projectId int, assignee string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return 0, errors.New("task service unavailable")
	}
	f.nextId++
	f.created = append(f.created, title)
	return f.nextId, nil
}

type fakeNotifier struct {
	mu           sync.Mutex
	statusEvents []models.PartStatus
	stockAlerts  int
}

func (f *fakeNotifier) PartStatusChanged(ctx context.Context, part *models.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusEvents = append(f.statusEvents, part.Status)
	return nil
}

func (f *fakeNotifier) StockAlert(ctx context.Context, item *models.InventoryItem, transaction *models.InventoryTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stockAlerts++
	return nil
}

func newTestService(t *testing.T, directory workflow.DirectoryLookup, tasks workflow.TaskCreator, notifier workflow.Notifier) *workflow.FulfillmentService {
	t.Helper()
	return workflow.NewFulfillmentService(quietLogger(), directory, tasks, notifier)
}
