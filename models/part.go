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

// Part is a physical component tracked against a project from procurement
// through installation. Stock on hand is a separate concern (InventoryItem);
// a Part carries its own purchased quantity.
type Part struct {
	ID         int    `gorm:"primary_key" json:"id"`
	ProjectId  int    `gorm:"index;not null" json:"project_id"`
	Name       string `gorm:"size:100;not null" json:"name"`
	PartNumber string `gorm:"size:100" json:"part_number"`
	Supplier   string `gorm:"size:100" json:"supplier"`
	// Notes is append-only by convention: operations concatenate, never replace.
	Notes     string          `gorm:"type:text" json:"notes"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	SellPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sell_price"`
	Status    PartStatus      `gorm:"size:20;index;not null;default:needed" json:"status"`
	// Lifecycle dates: set once when the status is first reached, never
	// cleared or overwritten by a later transition.
	OrderDate       *time.Time `json:"order_date"`
	EstDeliveryDate *time.Time `json:"est_delivery_date"`
	ReceivedDate    *time.Time `json:"received_date"`
	InstalledDate   *time.Time `json:"installed_date"`
	// OrderProof is an opaque blob-store reference; resolved to a URL at the edge.
	OrderProof     string    `gorm:"size:500" json:"order_proof"`
	AssignedTo     string    `gorm:"index;size:100" json:"assigned_to"`
	AssignedName   string    `gorm:"size:100" json:"assigned_name"`
	InstallerEmail string    `gorm:"index;size:100" json:"installer_email"`
	InstallerName  string    `gorm:"size:100" json:"installer_name"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValuationPrice is the sell price, falling back to unit cost when no sell
// price has been set.
func (p *Part) ValuationPrice() decimal.Decimal {
	if p.SellPrice.IsZero() {
		return p.UnitCost
	}
	return p.SellPrice
}

func (p *Part) Valuation() decimal.Decimal {
	return p.ValuationPrice().Mul(decimal.NewFromInt(int64(p.Quantity)))
}

type NewPart struct {
	ProjectId  int             `json:"project_id" binding:"required"`
	Name       string          `json:"name" binding:"required"`
	PartNumber string          `json:"part_number"`
	Supplier   string          `json:"supplier"`
	Notes      string          `json:"notes"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	SellPrice  decimal.Decimal `json:"sell_price"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewPart) validate(ctx context.Context, id int) error {
	if input.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if id == 0 && input.ProjectId <= 0 {
		return &ValidationError{Field: "project_id", Message: "project is required"}
	}
	if input.Quantity < 1 {
		return &ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	if input.UnitCost.IsNegative() {
		return &ValidationError{Field: "unit_cost", Message: "unit cost cannot be negative"}
	}
	if input.SellPrice.IsNegative() {
		return &ValidationError{Field: "sell_price", Message: "sell price cannot be negative"}
	}
	return nil
}

func CreatePart(ctx context.Context, input *NewPart) (*Part, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	part := Part{
		ProjectId:  input.ProjectId,
		Name:       input.Name,
		PartNumber: input.PartNumber,
		Supplier:   input.Supplier,
		Notes:      input.Notes,
		Quantity:   input.Quantity,
		UnitCost:   input.UnitCost,
		SellPrice:  input.SellPrice,
		Status:     PartStatusNeeded,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// UpdatePart edits descriptive and commercial fields. ProjectId is immutable
// after creation; status and lifecycle dates only change through the
// lifecycle operations.
func UpdatePart(ctx context.Context, id int, input *NewPart) (*Part, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		part.Name = input.Name
		part.PartNumber = input.PartNumber
		part.Supplier = input.Supplier
		part.Quantity = input.Quantity
		part.UnitCost = input.UnitCost
		part.SellPrice = input.SellPrice
		part.Notes = utils.AppendNote(part.Notes, input.Notes)
		return nil
	})
}

func DeletePart(ctx context.Context, id int) (*Part, error) {
	db := config.GetDB()

	var part Part
	err := db.WithContext(ctx).First(&part, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if err := db.WithContext(ctx).Delete(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

func GetPart(ctx context.Context, id int) (*Part, error) {
	db := config.GetDB()

	var part Part
	err := db.WithContext(ctx).First(&part, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &part, nil
}

// GetParts lists parts, optionally filtered by owning project.
func GetParts(ctx context.Context, projectId *int) ([]*Part, error) {
	db := config.GetDB()

	var parts []*Part
	dbCtx := db.WithContext(ctx).Model(&Part{})
	if projectId != nil {
		dbCtx = dbCtx.Where("project_id = ?", *projectId)
	}
	if err := dbCtx.Order("id").Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}
