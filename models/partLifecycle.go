package models

import (
	"context"
	"errors"
	"slices"
	"time"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The guided lifecycle: needed -> ordered -> received -> ready_to_install ->
// installed, with a shortcut ordered -> ready_to_install when the installer
// is assigned at receipt time. Guided operations synthesize metadata (dates,
// assignees) and are idempotent: re-entering the status a part already holds
// must not clobber fields set by the first invocation. SetPartStatus is the
// unconditional override for manual correction and synthesizes nothing.

// lockForUpdate adds a pessimistic row lock on dialects that support it.
// sqlite (unit tests) has no SELECT ... FOR UPDATE; its engine serializes
// writers at the connection level instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// updatePartLocked runs apply on the part under a per-entity atomic
// read-modify-write: the row is locked for the duration of the transaction
// so two concurrent operations on the same part never interleave their
// metadata merge.
func updatePartLocked(ctx context.Context, id int, apply func(tx *gorm.DB, part *Part) error) (*Part, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var part Part
	if err := lockForUpdate(tx).First(&part, id).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if err := apply(tx, &part); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Save(&part).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// guardTransition admits a guided operation when the part is in a listed
// source state, or already at the target (idempotent re-entry).
func guardTransition(op string, part *Part, sources []PartStatus, target PartStatus) error {
	if part.Status == target {
		return nil
	}
	if slices.Contains(sources, part.Status) {
		return nil
	}
	return &InvalidTransitionError{Op: op, From: part.Status}
}

func setDateOnce(field **time.Time) {
	if *field == nil {
		today := utils.Today()
		*field = &today
	}
}

type OrderPartInput struct {
	OrderProof      string     `json:"order_proof"`
	EstDeliveryDate *time.Time `json:"est_delivery_date"`
	Notes           string     `json:"notes"`
}

// OrderPart marks a needed part as ordered, stamping the order date and
// merging the optional proof reference, ETA and notes.
func OrderPart(ctx context.Context, id int, input *OrderPartInput) (*Part, error) {
	if input == nil {
		input = &OrderPartInput{}
	}
	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		if err := guardTransition("order", part, []PartStatus{PartStatusNeeded}, PartStatusOrdered); err != nil {
			return err
		}
		part.Status = PartStatusOrdered
		setDateOnce(&part.OrderDate)
		if part.OrderProof == "" && input.OrderProof != "" {
			part.OrderProof = input.OrderProof
		}
		if part.EstDeliveryDate == nil && input.EstDeliveryDate != nil {
			eta := utils.ToDate(*input.EstDeliveryDate)
			part.EstDeliveryDate = &eta
		}
		part.Notes = utils.AppendNote(part.Notes, input.Notes)
		return nil
	})
}

type ReceivePartInput struct {
	LocationNote string `json:"location_note"`
}

// ReceivePart marks an ordered part as received, stamping the received date.
func ReceivePart(ctx context.Context, id int, input *ReceivePartInput) (*Part, error) {
	if input == nil {
		input = &ReceivePartInput{}
	}
	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		if err := guardTransition("receive", part, []PartStatus{PartStatusOrdered}, PartStatusReceived); err != nil {
			return err
		}
		part.Status = PartStatusReceived
		setDateOnce(&part.ReceivedDate)
		part.Notes = utils.AppendNote(part.Notes, input.LocationNote)
		return nil
	})
}

type AssignInstallerInput struct {
	InstallerEmail string `json:"installer_email"`
	InstallerName  string `json:"installer_name"`
	LocationNote   string `json:"location_note"`
}

func (input *AssignInstallerInput) validate() error {
	if input == nil || input.InstallerEmail == "" {
		return &ValidationError{Field: "installer_email", Message: "installer is required"}
	}
	return nil
}

func applyInstaller(part *Part, input *AssignInstallerInput) {
	part.Status = PartStatusReadyToInstall
	// Back-fill the received date even when `received` was never the resting
	// state, so historical reporting is consistent regardless of path taken.
	setDateOnce(&part.ReceivedDate)
	part.InstallerEmail = input.InstallerEmail
	if input.InstallerName != "" {
		part.InstallerName = input.InstallerName
	}
	part.Notes = utils.AppendNote(part.Notes, input.LocationNote)
}

// ReceiveAndAssignInstaller receives an ordered part and assigns its
// installer in one action, skipping the intermediate `received` state.
func ReceiveAndAssignInstaller(ctx context.Context, id int, input *AssignInstallerInput) (*Part, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		if err := guardTransition("receive and assign installer", part, []PartStatus{PartStatusOrdered}, PartStatusReadyToInstall); err != nil {
			return err
		}
		applyInstaller(part, input)
		return nil
	})
}

// AssignInstaller moves a received part to ready_to_install.
func AssignInstaller(ctx context.Context, id int, input *AssignInstallerInput) (*Part, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		if err := guardTransition("assign installer", part, []PartStatus{PartStatusReceived}, PartStatusReadyToInstall); err != nil {
			return err
		}
		applyInstaller(part, input)
		return nil
	})
}

// MarkPartInstalled completes the lifecycle, stamping the installed date.
func MarkPartInstalled(ctx context.Context, id int) (*Part, error) {
	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		if err := guardTransition("mark installed", part, []PartStatus{PartStatusReceived, PartStatusReadyToInstall}, PartStatusInstalled); err != nil {
			return err
		}
		part.Status = PartStatusInstalled
		setDateOnce(&part.InstalledDate)
		return nil
	})
}

// SetPartStatus is the unconditional override for manual correction. It
// bypasses the transition guards and synthesizes no metadata; lifecycle
// dates already set are left untouched.
func SetPartStatus(ctx context.Context, id int, status PartStatus) (*Part, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "invalid part status"}
	}
	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		part.Status = status
		return nil
	})
}

// AssignPart sets the procurement owner. Independent of the lifecycle:
// settable at any stage.
func AssignPart(ctx context.Context, id int, email string, name string) (*Part, error) {
	if email == "" {
		return nil, &ValidationError{Field: "assigned_to", Message: "assignee is required"}
	}
	return updatePartLocked(ctx, id, func(tx *gorm.DB, part *Part) error {
		part.AssignedTo = email
		if name != "" {
			part.AssignedName = name
		}
		return nil
	})
}
