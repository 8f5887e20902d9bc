package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
)

// External collaborators. All three are fire-and-forget from the engine's
// perspective: a failure never rolls back the lifecycle transition or ledger
// write that triggered it.

// DirectoryLookup resolves an assignee email to a display name.
type DirectoryLookup interface {
	Resolve(ctx context.Context, email string) (string, error)
}

// TaskCreator creates a follow-up task in the dashboard's task system and
// returns its identifier.
type TaskCreator interface {
	CreateTask(ctx context.Context, title string, description string, projectId int, assignee string) (int, error)
}

// Notifier is informed of state changes for downstream alerting.
type Notifier interface {
	PartStatusChanged(ctx context.Context, part *models.Part) error
	StockAlert(ctx context.Context, item *models.InventoryItem, transaction *models.InventoryTransaction) error
}

// ModelDirectory is the production DirectoryLookup, backed by the
// team_members table with a redis cache in front.
type ModelDirectory struct{}

func (ModelDirectory) Resolve(ctx context.Context, email string) (string, error) {
	return models.ResolveMemberName(ctx, email)
}

type partStatusEvent struct {
	Event         string            `json:"event"`
	PartId        int               `json:"part_id"`
	ProjectId     int               `json:"project_id"`
	Status        models.PartStatus `json:"status"`
	CorrelationId string            `json:"correlation_id"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

type stockAlertEvent struct {
	Event           string `json:"event"`
	InventoryItemId int    `json:"inventory_item_id"`
	Sku             string `json:"sku"`
	QuantityInStock int    `json:"quantity_in_stock"`
	MinimumStock    int    `json:"minimum_stock"`
	OutOfStock      bool   `json:"out_of_stock"`
	TransactionId   int    `json:"transaction_id"`
	CorrelationId   string `json:"correlation_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// PubSubNotifier publishes JSON events to a Pub/Sub topic
// (PARTS_EVENTS_TOPIC, default "parts-events").
type PubSubNotifier struct {
	Topic string
}

func NewPubSubNotifier() *PubSubNotifier {
	topic := strings.TrimSpace(os.Getenv("PARTS_EVENTS_TOPIC"))
	if topic == "" {
		topic = "parts-events"
	}
	return &PubSubNotifier{Topic: topic}
}

func (n *PubSubNotifier) PartStatusChanged(ctx context.Context, part *models.Part) error {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	_, err := config.PublishJSON(ctx, n.Topic, partStatusEvent{
		Event:         "part.status_changed",
		PartId:        part.ID,
		ProjectId:     part.ProjectId,
		Status:        part.Status,
		CorrelationId: correlationId,
		OccurredAt:    time.Now().UTC(),
	})
	return err
}

func (n *PubSubNotifier) StockAlert(ctx context.Context, item *models.InventoryItem, transaction *models.InventoryTransaction) error {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	event := stockAlertEvent{
		Event:           "inventory.stock_alert",
		InventoryItemId: item.ID,
		Sku:             item.Sku,
		QuantityInStock: item.QuantityInStock,
		MinimumStock:    item.MinimumStock,
		OutOfStock:      item.OutOfStock(),
		CorrelationId:   correlationId,
		OccurredAt:      time.Now().UTC(),
	}
	if transaction != nil {
		event.TransactionId = transaction.ID
	}
	_, err := config.PublishJSON(ctx, n.Topic, event)
	return err
}

// HTTPTaskCreator posts to the dashboard's task endpoint (TASK_SERVICE_URL).
type HTTPTaskCreator struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPTaskCreator() *HTTPTaskCreator {
	return &HTTPTaskCreator{
		BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("TASK_SERVICE_URL")), "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type newTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectId   int    `json:"project_id"`
	Assignee    string `json:"assignee"`
}

type newTaskResponse struct {
	Id int `json:"id"`
}

func (t *HTTPTaskCreator) CreateTask(ctx context.Context, title string, description string, projectId int, assignee string) (int, error) {
	if t.BaseURL == "" {
		return 0, errors.New("TASK_SERVICE_URL not set")
	}

	body, err := json.Marshal(newTaskRequest{
		Title:       title,
		Description: description,
		ProjectId:   projectId,
		Assignee:    assignee,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		req.Header.Set("X-Correlation-Id", correlationId)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("task service returned %d", resp.StatusCode)
	}

	var created newTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, err
	}
	return created.Id, nil
}
