package models

import (
	"gorm.io/gorm"
)

// Ativo is an active ingredient tracked through its own inventory lots.
type Ativo struct {
	gorm.Model
	Nome        string         `gorm:"uniqueIndex;not null" json:"nome"`
	CASNumber   string         `gorm:"index" json:"cas_number"`
	Description string         `gorm:"type:text" json:"description"`
	Supplier    string         `json:"supplier"`
	Lots        []InventoryLot `gorm:"foreignKey:AtivoID" json:"lots,omitempty"`
}
