package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
)

// The bulk coordinator applies one operation to a caller-selected set of
// parts. Items are independent units of work: a failure on one never aborts
// the rest, and no cross-item ordering is guaranteed. Deletes are paced by a
// configurable inter-item delay to respect downstream rate limits; the delay
// is a throttling concern only.

const defaultBulkConcurrency = 4

// BulkOperation is a tagged variant: the raw-override and delete commands
// are distinct types, never folded into the guided lifecycle API.
type BulkOperation interface {
	bulkOpName() string
}

type BulkAssign struct {
	Email string
}

func (BulkAssign) bulkOpName() string { return "assign" }

type BulkSetStatus struct {
	Status models.PartStatus
}

func (BulkSetStatus) bulkOpName() string { return "set status" }

type BulkDelete struct{}

func (BulkDelete) bulkOpName() string { return "delete" }

type BulkFailure struct {
	Id      int    `json:"id"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

type BulkResult struct {
	Succeeded     []int         `json:"succeeded"`
	AlreadyAbsent []int         `json:"already_absent"`
	Failed        []BulkFailure `json:"failed"`
}

// PartialBulkFailure is a structured carrier for per-item failures, produced
// on demand by BulkResult.Err. It is not raised by ApplyBulk itself.
type PartialBulkFailure struct {
	Failures []BulkFailure
}

func (e *PartialBulkFailure) Error() string {
	return fmt.Sprintf("%d of the requested items failed", len(e.Failures))
}

// Err converts the failure list into an error for callers that want one.
func (r *BulkResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialBulkFailure{Failures: r.Failed}
}

type BulkCoordinator struct {
	svc *FulfillmentService

	// Concurrency bounds the worker pool.
	Concurrency int
	// DeleteDelay paces delete dispatches.
	DeleteDelay time.Duration
}

func NewBulkCoordinator(svc *FulfillmentService) *BulkCoordinator {
	return &BulkCoordinator{
		svc:         svc,
		Concurrency: defaultBulkConcurrency,
	}
}

// ApplyBulk applies op to every id, continue-on-error. Cancellation is
// cooperative: the context is checked before each item is dispatched, and
// items already started run to completion. The returned error is non-nil
// only when the batch was cut short by cancellation; per-item failures live
// in the result.
func (c *BulkCoordinator) ApplyBulk(ctx context.Context, ids []int, op BulkOperation) (*BulkResult, error) {
	result := &BulkResult{
		Succeeded:     []int{},
		AlreadyAbsent: []int{},
		Failed:        []BulkFailure{},
	}
	// A duplicated id is one unit of work, not two.
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return result, nil
	}

	workers := c.Concurrency
	if workers <= 0 {
		workers = defaultBulkConcurrency
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	_, isDelete := op.(BulkDelete)

	jobs := make(chan int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				err := c.applyOne(ctx, id, op)
				mu.Lock()
				switch {
				case err == nil:
					result.Succeeded = append(result.Succeeded, id)
				case isDelete && errors.Is(err, utils.ErrorRecordNotFound):
					// Re-running a delete against an already-deleted id is
					// not a hard failure.
					result.AlreadyAbsent = append(result.AlreadyAbsent, id)
				default:
					result.Failed = append(result.Failed, BulkFailure{Id: id, Message: err.Error(), Err: err})
				}
				mu.Unlock()
			}
		}()
	}

	var cancelled error
dispatch:
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break dispatch
		}
		if isDelete && c.DeleteDelay > 0 && i > 0 {
			select {
			case <-time.After(c.DeleteDelay):
			case <-ctx.Done():
				cancelled = ctx.Err()
				break dispatch
			}
		}
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	return result, cancelled
}

// applyOne runs a single item, retrying once on opaque persistence errors.
// Caller-input errors (validation, guard rejections, not-found) are never
// retried.
func (c *BulkCoordinator) applyOne(ctx context.Context, id int, op BulkOperation) error {
	// A started item runs to completion even if the batch is cancelled
	// mid-flight; cancellation is only honored between items.
	ctx = context.WithoutCancel(ctx)

	err := c.applyOp(ctx, id, op)
	if err == nil || isCallerError(err) {
		return err
	}
	return c.applyOp(ctx, id, op)
}

func (c *BulkCoordinator) applyOp(ctx context.Context, id int, op BulkOperation) error {
	switch op := op.(type) {
	case BulkAssign:
		_, err := c.svc.AssignOwner(ctx, id, op.Email)
		return err
	case BulkSetStatus:
		_, err := c.svc.SetStatus(ctx, id, op.Status)
		return err
	case BulkDelete:
		_, err := models.DeletePart(ctx, id)
		return err
	default:
		return fmt.Errorf("unsupported bulk operation %q", op.bulkOpName())
	}
}

func isCallerError(err error) bool {
	var validationErr *models.ValidationError
	var transitionErr *models.InvalidTransitionError
	var stockErr *models.InsufficientStockError
	return errors.Is(err, utils.ErrorRecordNotFound) ||
		errors.As(err, &validationErr) ||
		errors.As(err, &transitionErr) ||
		errors.As(err, &stockErr)
}
