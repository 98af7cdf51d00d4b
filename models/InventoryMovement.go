package models

import (
	"fmt"
	"strings"
	"time"
)

// MovementType is the direction of an inventory movement.
type MovementType string

const (
	MovementEntrada MovementType = "entrada"
	MovementSaida   MovementType = "saida"
)

func (t MovementType) Valid() bool {
	return t == MovementEntrada || t == MovementSaida
}

func (t *MovementType) UnmarshalText(text []byte) error {
	kind := MovementType(strings.ToLower(strings.TrimSpace(string(text))))
	if !kind.Valid() {
		return fmt.Errorf("unknown movement type %q", string(text))
	}
	*t = kind
	return nil
}

// Reason codes attached to movements written by the service itself.
const (
	ReasonOpening     = "abertura"
	ReasonProduction  = "producao"
	ReasonAdjustment  = "ajuste"
	ReasonPurchase    = "compra"
	ReasonExpiry      = "vencimento"
	defaultReasonCode = ReasonAdjustment
)

// NormalizeReason lowercases a reason code and falls back to the adjustment
// code when blank.
func NormalizeReason(reason string) string {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		return defaultReasonCode
	}
	return reason
}

// InventoryMovement is an append-only audit row. Quantity and UnitCode are the
// values the caller asked for, before conversion into the lot unit.
type InventoryMovement struct {
	ID               uint         `gorm:"primaryKey" json:"id" db:"id"`
	LotID            uint         `gorm:"not null;index" json:"lot_id" db:"lot_id"`
	AtivoID          uint         `gorm:"not null;index" json:"ativo_id" db:"ativo_id"`
	Type             MovementType `gorm:"not null;size:16;index" json:"type" db:"type"`
	Quantity         float64      `gorm:"not null" json:"quantity" db:"quantity"`
	UnitCode         string       `gorm:"not null;size:16" json:"unit_code" db:"unit_code"`
	LotQuantityAfter float64      `gorm:"not null" json:"lot_quantity_after" db:"lot_quantity_after"`
	Reason           string       `gorm:"not null;size:32" json:"reason" db:"reason"`
	Reference        string       `gorm:"not null;size:36;index" json:"reference" db:"reference"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}
