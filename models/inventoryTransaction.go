package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"gorm.io/gorm"
)

// InventoryTransaction is one entry in the append-only stock ledger. A row
// is never edited or deleted. The authoritative on-hand quantity for an item
// is the fold of its transactions (restock adds, checkout subtracts),
// clamped at zero; InventoryItem.QuantityInStock is the materialized fold
// and is recomputed in the same DB transaction as every append.
type InventoryTransaction struct {
	ID              int  `gorm:"primary_key" json:"id"`
	InventoryItemId int  `gorm:"index;not null" json:"inventory_item_id"`
	ProjectId       *int `gorm:"index" json:"project_id"`
	Type            InventoryTransactionType `gorm:"size:20;index;not null" json:"type"`
	Quantity        int                      `gorm:"not null" json:"quantity"`
	User            string                   `gorm:"size:100" json:"user"`
	Notes           string                   `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

type CheckoutInput struct {
	Quantity  int    `json:"quantity" binding:"required"`
	ProjectId *int   `json:"project_id"`
	Notes     string `json:"notes"`
}

type RestockInput struct {
	Quantity int    `json:"quantity" binding:"required"`
	Notes    string `json:"notes"`
}

func ledgerUser(ctx context.Context) string {
	if name, ok := utils.GetUserNameFromContext(ctx); ok && name != "" {
		return name
	}
	if username, ok := utils.GetUsernameFromContext(ctx); ok {
		return username
	}
	return ""
}

// lockInventoryItem reads the item row under a write lock inside tx.
func lockInventoryItem(tx *gorm.DB, itemId int) (*InventoryItem, error) {
	var item InventoryItem
	if err := lockForUpdate(tx).First(&item, itemId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &item, nil
}

// CheckoutInventory consumes stock against an optional project. Fails with
// InsufficientStockError when the request exceeds the on-hand quantity; on
// failure stock is unchanged and nothing is appended.
func CheckoutInventory(ctx context.Context, itemId int, input *CheckoutInput) (*InventoryItem, *InventoryTransaction, error) {
	if input == nil || input.Quantity < 1 {
		return nil, nil, &ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, nil, tx.Error
	}

	item, err := lockInventoryItem(tx, itemId)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if input.Quantity > item.QuantityInStock {
		tx.Rollback()
		return nil, nil, &InsufficientStockError{
			InventoryItemId: item.ID,
			Requested:       input.Quantity,
			Available:       item.QuantityInStock,
		}
	}

	transaction := InventoryTransaction{
		InventoryItemId: item.ID,
		ProjectId:       input.ProjectId,
		Type:            InventoryTransactionTypeCheckout,
		Quantity:        input.Quantity,
		User:            ledgerUser(ctx),
		Notes:           input.Notes,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	newQty := item.QuantityInStock - input.Quantity
	// The precondition above makes this floor unreachable; it exists as a
	// defensive invariant, not a normal code path.
	if newQty < 0 {
		newQty = 0
	}
	item.QuantityInStock = newQty
	if err := tx.Save(item).Error; err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}
	return item, &transaction, nil
}

// RestockInventory adds stock. No upper bound.
func RestockInventory(ctx context.Context, itemId int, input *RestockInput) (*InventoryItem, *InventoryTransaction, error) {
	if input == nil || input.Quantity < 1 {
		return nil, nil, &ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, nil, tx.Error
	}

	item, err := lockInventoryItem(tx, itemId)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	transaction := InventoryTransaction{
		InventoryItemId: item.ID,
		Type:            InventoryTransactionTypeRestock,
		Quantity:        input.Quantity,
		User:            ledgerUser(ctx),
		Notes:           input.Notes,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	item.QuantityInStock += input.Quantity
	if err := tx.Save(item).Error; err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}
	return item, &transaction, nil
}

// foldOnHand computes the ledger truth for an item inside tx.
func foldOnHand(tx *gorm.DB, itemId int) (int, error) {
	var onHand int
	err := tx.Model(&InventoryTransaction{}).
		Where("inventory_item_id = ?", itemId).
		Select("COALESCE(SUM(CASE WHEN type = 'restock' THEN quantity ELSE -quantity END), 0)").
		Scan(&onHand).Error
	if err != nil {
		return 0, err
	}
	if onHand < 0 {
		onHand = 0
	}
	return onHand, nil
}

// FoldOnHand recomputes the on-hand quantity for an item from its full
// ledger, without touching the cached value.
func FoldOnHand(ctx context.Context, itemId int) (int, error) {
	db := config.GetDB()
	return foldOnHand(db.WithContext(ctx), itemId)
}

// ReconcileInventoryItem recomputes QuantityInStock from the full ledger and
// repairs the cached value if it has drifted. A correctness check, not a
// normal-path operation. Returns the folded quantity and whether a repair
// was applied.
func ReconcileInventoryItem(ctx context.Context, itemId int) (int, bool, error) {
	// Redis lock is a best-effort optimization so two operators don't race
	// repairs. Correctness must not depend on Redis: the DB row lock below
	// is what actually serializes the write.
	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("reconcileInventory:%d", itemId)
		if lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil); err == nil {
			defer lock.Release(ctx)
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, false, tx.Error
	}

	item, err := lockInventoryItem(tx, itemId)
	if err != nil {
		tx.Rollback()
		return 0, false, err
	}

	onHand, err := foldOnHand(tx, itemId)
	if err != nil {
		tx.Rollback()
		return 0, false, err
	}

	if onHand == item.QuantityInStock {
		tx.Rollback()
		return onHand, false, nil
	}

	item.QuantityInStock = onHand
	if err := tx.Save(item).Error; err != nil {
		tx.Rollback()
		return 0, false, err
	}
	if err := tx.Commit().Error; err != nil {
		return 0, false, err
	}
	return onHand, true, nil
}

// GetInventoryTransactions lists an item's ledger, newest first. The item
// must exist; an unknown id is not-found, not an empty history.
func GetInventoryTransactions(ctx context.Context, itemId int) ([]*InventoryTransaction, error) {
	if err := utils.ValidateResourceId[InventoryItem](ctx, itemId); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var transactions []*InventoryTransaction
	err := db.WithContext(ctx).
		Where("inventory_item_id = ?", itemId).
		Order("id DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
