package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is a stocked component. QuantityInStock is a materialized
// view of the item's transaction ledger: it is only ever mutated through the
// ledger path (CheckoutInventory / RestockInventory / ReconcileInventoryItem),
// never by direct field edits.
type InventoryItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	Sku             string          `gorm:"index;size:100" json:"sku"`
	Barcode         string          `gorm:"index;size:100" json:"barcode"`
	QuantityInStock int             `gorm:"not null;default:0" json:"quantity_in_stock"`
	MinimumStock    int             `gorm:"not null;default:0" json:"minimum_stock"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	SellPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sell_price"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *InventoryItem) OutOfStock() bool {
	return i.QuantityInStock == 0
}

func (i *InventoryItem) LowStock() bool {
	return i.QuantityInStock > 0 && i.QuantityInStock <= i.MinimumStock
}

type NewInventoryItem struct {
	Name         string          `json:"name" binding:"required"`
	Sku          string          `json:"sku"`
	Barcode      string          `json:"barcode"`
	MinimumStock int             `json:"minimum_stock"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SellPrice    decimal.Decimal `json:"sell_price"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewInventoryItem) validate(ctx context.Context, id int) error {
	if input.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if input.MinimumStock < 0 {
		return &ValidationError{Field: "minimum_stock", Message: "minimum stock cannot be negative"}
	}
	if input.UnitCost.IsNegative() {
		return &ValidationError{Field: "unit_cost", Message: "unit cost cannot be negative"}
	}
	if input.SellPrice.IsNegative() {
		return &ValidationError{Field: "sell_price", Message: "sell price cannot be negative"}
	}
	// sku & barcode are unique when present
	if input.Sku != "" {
		if err := utils.ValidateUnique[InventoryItem](ctx, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	if input.Barcode != "" {
		if err := utils.ValidateUnique[InventoryItem](ctx, "barcode", input.Barcode, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateInventoryItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	item := InventoryItem{
		Name:         input.Name,
		Sku:          input.Sku,
		Barcode:      input.Barcode,
		MinimumStock: input.MinimumStock,
		UnitCost:     input.UnitCost,
		SellPrice:    input.SellPrice,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateInventoryItem edits descriptive and commercial fields. There is
// deliberately no way to set QuantityInStock here.
func UpdateInventoryItem(ctx context.Context, id int, input *NewInventoryItem) (*InventoryItem, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var item InventoryItem
	if err := lockForUpdate(tx).First(&item, id).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	item.Name = input.Name
	item.Sku = input.Sku
	item.Barcode = input.Barcode
	item.MinimumStock = input.MinimumStock
	item.UnitCost = input.UnitCost
	item.SellPrice = input.SellPrice

	if err := tx.Save(&item).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteInventoryItem removes the item. Its ledger rows are kept: the
// transaction history is never destroyed.
func DeleteInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	db := config.GetDB()

	var item InventoryItem
	err := db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if err := db.WithContext(ctx).Delete(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func GetInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	db := config.GetDB()

	var item InventoryItem
	err := db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &item, nil
}

func GetInventoryItems(ctx context.Context) ([]*InventoryItem, error) {
	db := config.GetDB()

	var items []*InventoryItem
	if err := db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
