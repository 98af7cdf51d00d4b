package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemKind discriminates formula line items. Only ItemKindActive constrains
// how many finished units a formula can yield.
type ItemKind string

const (
	ItemKindActive    ItemKind = "ativo"
	ItemKindExcipient ItemKind = "excipiente"
	ItemKindPackaging ItemKind = "embalagem"
)

// Valid reports whether k is one of the known kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindActive, ItemKindExcipient, ItemKindPackaging:
		return true
	}
	return false
}

// ConstrainsProduction reports whether items of this kind bound the
// producible quantity of a formula.
func (k ItemKind) ConstrainsProduction() bool {
	return k == ItemKindActive
}

// UnmarshalText rejects unknown kinds so request payloads cannot smuggle in
// free-text discriminators.
func (k *ItemKind) UnmarshalText(text []byte) error {
	kind := ItemKind(strings.ToLower(strings.TrimSpace(string(text))))
	if !kind.Valid() {
		return fmt.Errorf("unknown item kind %q", string(text))
	}
	*k = kind
	return nil
}

type FormulaItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FormulaID  uint      `gorm:"not null;index" json:"formula_id"`
	Tipo       ItemKind  `gorm:"not null;size:16" json:"tipo"`
	AtivoID    *uint     `gorm:"index" json:"ativo_id,omitempty"`
	Ativo      *Ativo    `gorm:"foreignKey:AtivoID" json:"ativo,omitempty"`
	InsumoNome string    `json:"insumo_nome,omitempty"`
	Quantity   float64   `gorm:"not null" json:"quantity"`
	UnitCode   string    `gorm:"not null;size:16" json:"unit_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
