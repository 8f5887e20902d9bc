package workflow_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/workflow"
	"github.com/shopspring/decimal"
)

func createOrderedPart(t *testing.T, svc *workflow.FulfillmentService) *models.Part {
	t.Helper()
	ctx := testContext()
	part, err := models.CreatePart(ctx, &models.NewPart{ProjectId: 5, Name: "Air filter"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := svc.OrderPart(ctx, part.ID, nil); err != nil {
		t.Fatalf("OrderPart: %v", err)
	}
	return part
}

func TestAssignInstaller_ResolvesDisplayName(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	directory := fakeDirectory{names: map[string]string{"mya@crew.local": "Mya Thwe"}}
	svc := newTestService(t, directory, nil, nil)
	part := createOrderedPart(t, svc)

	result, err := svc.ReceiveAndAssignInstaller(ctx, part.ID, &workflow.InstallerRequest{
		InstallerEmail: "mya@crew.local",
	})
	if err != nil {
		t.Fatalf("ReceiveAndAssignInstaller: %v", err)
	}
	if result.Part.InstallerName != "Mya Thwe" {
		t.Fatalf("InstallerName = %q, want directory name", result.Part.InstallerName)
	}
}

func TestAssignInstaller_DirectoryMissFallsBackToEmail(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	svc := newTestService(t, fakeDirectory{}, nil, nil)
	part := createOrderedPart(t, svc)

	result, err := svc.ReceiveAndAssignInstaller(ctx, part.ID, &workflow.InstallerRequest{
		InstallerEmail: "ghost@crew.local",
	})
	if err != nil {
		t.Fatalf("ReceiveAndAssignInstaller: %v", err)
	}
	if result.Part.InstallerName != "ghost@crew.local" {
		t.Fatalf("InstallerName = %q, want email fallback", result.Part.InstallerName)
	}
}

func TestAssignInstaller_TaskFailureDoesNotRollBack(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	tasks := &fakeTasks{failAll: true}
	svc := newTestService(t, fakeDirectory{}, tasks, nil)
	part := createOrderedPart(t, svc)

	result, err := svc.ReceiveAndAssignInstaller(ctx, part.ID, &workflow.InstallerRequest{
		InstallerEmail: "mya@crew.local",
		CreateTask:     true,
	})
	if err != nil {
		t.Fatalf("ReceiveAndAssignInstaller: %v", err)
	}
	if result.TaskError == "" {
		t.Fatal("expected TaskError to surface the collaborator failure")
	}
	if result.TaskId != 0 {
		t.Fatalf("TaskId = %d, want 0", result.TaskId)
	}

	// The transition committed before task creation ran.
	stored, err := models.GetPart(ctx, part.ID)
	if err != nil {
		t.Fatalf("GetPart: %v", err)
	}
	if stored.Status != models.PartStatusReadyToInstall {
		t.Fatalf("status = %q, want ready_to_install despite task failure", stored.Status)
	}
}

func TestAssignInstaller_CreatesTaskOnRequest(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	tasks := &fakeTasks{}
	svc := newTestService(t, fakeDirectory{}, tasks, nil)
	part := createOrderedPart(t, svc)

	result, err := svc.ReceiveAndAssignInstaller(ctx, part.ID, &workflow.InstallerRequest{
		InstallerEmail: "mya@crew.local",
		CreateTask:     true,
	})
	if err != nil {
		t.Fatalf("ReceiveAndAssignInstaller: %v", err)
	}
	if result.TaskId == 0 || result.TaskError != "" {
		t.Fatalf("result = %+v, want task id and no error", result)
	}
	if len(tasks.created) != 1 {
		t.Fatalf("created %d tasks, want 1", len(tasks.created))
	}
}

func TestGuidedOperations_NotifyStatusChanges(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	notifier := &fakeNotifier{}
	svc := newTestService(t, fakeDirectory{}, nil, notifier)

	part, err := models.CreatePart(ctx, &models.NewPart{ProjectId: 5, Name: "Relay"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := svc.OrderPart(ctx, part.ID, nil); err != nil {
		t.Fatalf("OrderPart: %v", err)
	}
	if _, err := svc.ReceivePart(ctx, part.ID, nil); err != nil {
		t.Fatalf("ReceivePart: %v", err)
	}

	want := []models.PartStatus{models.PartStatusOrdered, models.PartStatusReceived}
	if len(notifier.statusEvents) != len(want) {
		t.Fatalf("got %d events, want %d", len(notifier.statusEvents), len(want))
	}
	for i, status := range want {
		if notifier.statusEvents[i] != status {
			t.Fatalf("event %d = %q, want %q", i, notifier.statusEvents[i], status)
		}
	}
}

func TestFulfillment_EndToEnd(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	directory := fakeDirectory{names: map[string]string{"alice@x.com": "Alice"}}
	notifier := &fakeNotifier{}
	svc := newTestService(t, directory, &fakeTasks{}, notifier)

	part, err := models.CreatePart(ctx, &models.NewPart{
		ProjectId: 1,
		Name:      "Pump seal",
		Quantity:  3,
		UnitCost:  decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}

	ordered, err := svc.OrderPart(ctx, part.ID, nil)
	if err != nil {
		t.Fatalf("OrderPart: %v", err)
	}
	if ordered.OrderDate == nil {
		t.Fatal("OrderDate not stamped")
	}

	result, err := svc.ReceiveAndAssignInstaller(ctx, part.ID, &workflow.InstallerRequest{
		InstallerEmail: "alice@x.com",
		CreateTask:     true,
	})
	if err != nil {
		t.Fatalf("ReceiveAndAssignInstaller: %v", err)
	}
	if result.Part.Status != models.PartStatusReadyToInstall || result.Part.ReceivedDate == nil {
		t.Fatalf("after shortcut: %+v", result.Part)
	}
	if result.Part.InstallerName != "Alice" {
		t.Fatalf("InstallerName = %q", result.Part.InstallerName)
	}
	if result.TaskId == 0 {
		t.Fatal("task not created")
	}

	installed, err := svc.MarkInstalled(ctx, part.ID)
	if err != nil {
		t.Fatalf("MarkInstalled: %v", err)
	}
	if installed.Status != models.PartStatusInstalled || installed.InstalledDate == nil {
		t.Fatalf("after install: %+v", installed)
	}
	if got := installed.Valuation(); !got.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("Valuation = %s, want 30", got)
	}
	if len(notifier.statusEvents) != 3 {
		t.Fatalf("got %d status events, want one per transition", len(notifier.statusEvents))
	}
}

func TestCheckout_AlertsOnLowStock(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	notifier := &fakeNotifier{}
	svc := newTestService(t, fakeDirectory{}, nil, notifier)

	item, err := models.CreateInventoryItem(ctx, &models.NewInventoryItem{Name: "Gasket", MinimumStock: 2})
	if err != nil {
		t.Fatalf("CreateInventoryItem: %v", err)
	}
	if _, _, err := svc.Restock(ctx, item.ID, &models.RestockInput{Quantity: 5}); err != nil {
		t.Fatalf("Restock: %v", err)
	}

	// 5 -> 3 stays above the minimum: no alert.
	if _, _, err := svc.Checkout(ctx, item.ID, &models.CheckoutInput{Quantity: 2}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if notifier.stockAlerts != 0 {
		t.Fatalf("alerts = %d, want 0 while above minimum", notifier.stockAlerts)
	}

	// 3 -> 1 crosses the minimum.
	if _, _, err := svc.Checkout(ctx, item.ID, &models.CheckoutInput{Quantity: 2}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if notifier.stockAlerts != 1 {
		t.Fatalf("alerts = %d, want 1 after crossing minimum", notifier.stockAlerts)
	}
}
