package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/models"
	"github.com/sirupsen/logrus"
)

// FulfillmentService is the composition root for the parts pipeline: it
// drives the lifecycle engine and the stock ledger, and talks to the
// external collaborators. Collaborator failures are logged and surfaced to
// the caller where relevant, but never roll back a committed transition.
type FulfillmentService struct {
	logger    *logrus.Logger
	directory DirectoryLookup
	tasks     TaskCreator
	notifier  Notifier

	Bulk *BulkCoordinator
}

func NewFulfillmentService(logger *logrus.Logger, directory DirectoryLookup, tasks TaskCreator, notifier Notifier) *FulfillmentService {
	if logger == nil {
		logger = config.GetLogger()
	}
	s := &FulfillmentService{
		logger:    logger,
		directory: directory,
		tasks:     tasks,
		notifier:  notifier,
	}
	s.Bulk = NewBulkCoordinator(s)
	return s
}

func (s *FulfillmentService) notifyStatus(ctx context.Context, part *models.Part) {
	if s.notifier == nil || part == nil {
		return
	}
	if err := s.notifier.PartStatusChanged(ctx, part); err != nil {
		config.LogError(s.logger, "fulfillment.go", "notifyStatus", "PartStatusChanged", part.ID, err)
	}
}

// resolveName falls back to the raw email when the directory has no entry;
// assignment must not fail because a member is missing from the directory.
func (s *FulfillmentService) resolveName(ctx context.Context, email string) string {
	if s.directory == nil || email == "" {
		return ""
	}
	name, err := s.directory.Resolve(ctx, email)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"module": "fulfillment.go",
			"email":  email,
		}).Debug("directory lookup missed; using email as display name")
		return email
	}
	return name
}

func (s *FulfillmentService) OrderPart(ctx context.Context, id int, input *models.OrderPartInput) (*models.Part, error) {
	part, err := models.OrderPart(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, part)
	return part, nil
}

func (s *FulfillmentService) ReceivePart(ctx context.Context, id int, input *models.ReceivePartInput) (*models.Part, error) {
	part, err := models.ReceivePart(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, part)
	return part, nil
}

// InstallerRequest is the use-case input for the two installer-assignment
// operations.
type InstallerRequest struct {
	InstallerEmail string `json:"installer_email" binding:"required,email"`
	LocationNote   string `json:"location_note"`
	CreateTask     bool   `json:"create_task"`
}

// AssignmentResult carries the updated part plus the outcome of the optional
// task creation. TaskError is informational: the transition has already
// committed when task creation runs.
type AssignmentResult struct {
	Part      *models.Part `json:"part"`
	TaskId    int          `json:"task_id,omitempty"`
	TaskError string       `json:"task_error,omitempty"`
}

func (s *FulfillmentService) ReceiveAndAssignInstaller(ctx context.Context, id int, req *InstallerRequest) (*AssignmentResult, error) {
	return s.assignInstaller(ctx, id, req, models.ReceiveAndAssignInstaller)
}

func (s *FulfillmentService) AssignInstaller(ctx context.Context, id int, req *InstallerRequest) (*AssignmentResult, error) {
	return s.assignInstaller(ctx, id, req, models.AssignInstaller)
}

func (s *FulfillmentService) assignInstaller(
	ctx context.Context,
	id int,
	req *InstallerRequest,
	transition func(context.Context, int, *models.AssignInstallerInput) (*models.Part, error),
) (*AssignmentResult, error) {
	if req == nil {
		req = &InstallerRequest{}
	}

	part, err := transition(ctx, id, &models.AssignInstallerInput{
		InstallerEmail: req.InstallerEmail,
		InstallerName:  s.resolveName(ctx, req.InstallerEmail),
		LocationNote:   req.LocationNote,
	})
	if err != nil {
		return nil, err
	}

	result := &AssignmentResult{Part: part}
	if req.CreateTask && s.tasks != nil {
		title := fmt.Sprintf("Install %s", part.Name)
		description := fmt.Sprintf("Part %s (qty %d) is ready to install.", part.Name, part.Quantity)
		if part.PartNumber != "" {
			description = fmt.Sprintf("Part %s / %s (qty %d) is ready to install.", part.Name, part.PartNumber, part.Quantity)
		}
		taskId, taskErr := s.tasks.CreateTask(ctx, title, description, part.ProjectId, part.InstallerEmail)
		if taskErr != nil {
			config.LogError(s.logger, "fulfillment.go", "assignInstaller", "CreateTask", part.ID, taskErr)
			result.TaskError = taskErr.Error()
		} else {
			result.TaskId = taskId
		}
	}

	s.notifyStatus(ctx, part)
	return result, nil
}

func (s *FulfillmentService) MarkInstalled(ctx context.Context, id int) (*models.Part, error) {
	part, err := models.MarkPartInstalled(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, part)
	return part, nil
}

// SetStatus is the unconditional override; kept as a distinct operation from
// the guided ones, never merged into them.
func (s *FulfillmentService) SetStatus(ctx context.Context, id int, status models.PartStatus) (*models.Part, error) {
	part, err := models.SetPartStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, part)
	return part, nil
}

// AssignOwner sets the procurement owner, resolving the display name through
// the directory.
func (s *FulfillmentService) AssignOwner(ctx context.Context, id int, email string) (*models.Part, error) {
	return models.AssignPart(ctx, id, email, s.resolveName(ctx, email))
}

func (s *FulfillmentService) Checkout(ctx context.Context, itemId int, input *models.CheckoutInput) (*models.InventoryItem, *models.InventoryTransaction, error) {
	item, transaction, err := models.CheckoutInventory(ctx, itemId, input)
	if err != nil {
		return nil, nil, err
	}
	if s.notifier != nil && (item.OutOfStock() || item.LowStock()) {
		if alertErr := s.notifier.StockAlert(ctx, item, transaction); alertErr != nil {
			config.LogError(s.logger, "fulfillment.go", "Checkout", "StockAlert", item.ID, alertErr)
		}
	}
	return item, transaction, nil
}

func (s *FulfillmentService) Restock(ctx context.Context, itemId int, input *models.RestockInput) (*models.InventoryItem, *models.InventoryTransaction, error) {
	return models.RestockInventory(ctx, itemId, input)
}

func (s *FulfillmentService) Reconcile(ctx context.Context, itemId int) (int, bool, error) {
	onHand, repaired, err := models.ReconcileInventoryItem(ctx, itemId)
	if err != nil {
		return 0, false, err
	}
	if repaired {
		s.logger.WithFields(logrus.Fields{
			"module":  "fulfillment.go",
			"itemId":  itemId,
			"on_hand": onHand,
		}).Warn("inventory cache drift repaired")
	}
	return onHand, repaired, nil
}
