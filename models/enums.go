package models

import "errors"

type PartStatus string

const (
	PartStatusNeeded         PartStatus = "needed"
	PartStatusOrdered        PartStatus = "ordered"
	PartStatusReceived       PartStatus = "received"
	PartStatusReadyToInstall PartStatus = "ready_to_install"
	PartStatusInstalled      PartStatus = "installed"
)

var AllPartStatuses = []PartStatus{
	PartStatusNeeded,
	PartStatusOrdered,
	PartStatusReceived,
	PartStatusReadyToInstall,
	PartStatusInstalled,
}

func (s PartStatus) Valid() bool {
	switch s {
	case PartStatusNeeded, PartStatusOrdered, PartStatusReceived, PartStatusReadyToInstall, PartStatusInstalled:
		return true
	}
	return false
}

// convert input to enum type
func (s *PartStatus) UnmarshalJSON(data []byte) error {
	str := unquote(data)
	switch str {
	case "needed":
		*s = PartStatusNeeded
	case "ordered":
		*s = PartStatusOrdered
	case "received":
		*s = PartStatusReceived
	case "ready_to_install":
		*s = PartStatusReadyToInstall
	case "installed":
		*s = PartStatusInstalled
	default:
		return errors.New("invalid part status")
	}
	return nil
}

type InventoryTransactionType string

const (
	InventoryTransactionTypeCheckout InventoryTransactionType = "checkout"
	InventoryTransactionTypeRestock  InventoryTransactionType = "restock"
)

func (t InventoryTransactionType) Valid() bool {
	return t == InventoryTransactionTypeCheckout || t == InventoryTransactionTypeRestock
}

// convert input to enum type
func (t *InventoryTransactionType) UnmarshalJSON(data []byte) error {
	str := unquote(data)
	switch str {
	case "checkout":
		*t = InventoryTransactionTypeCheckout
	case "restock":
		*t = InventoryTransactionTypeRestock
	default:
		return errors.New("invalid inventory transaction type")
	}
	return nil
}

func unquote(data []byte) string {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
