package models

import "time"

// InventoryLot is a discrete quantity of one ingredient on hand. Quantity only
// changes through InventoryMovement records written in the same transaction.
type InventoryLot struct {
	ID              uint       `gorm:"primaryKey" json:"id" msgpack:"id"`
	AtivoID         uint       `gorm:"not null;index" json:"ativo_id" msgpack:"ativo_id"`
	Quantity        float64    `gorm:"not null" json:"quantity" msgpack:"quantity"`
	UnitCode        string     `gorm:"not null;size:16" json:"unit_code" msgpack:"unit_code"`
	LotNumber       string     `gorm:"index" json:"lot_number" msgpack:"lot_number,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty" msgpack:"expires_at,omitempty"`
	Location        string     `json:"location" msgpack:"location,omitempty"`
	Active          bool       `gorm:"not null;default:true" json:"active" msgpack:"active"`
	CertificateText string     `gorm:"type:text" json:"certificate_text,omitempty" msgpack:"-"`
	CreatedAt       time.Time  `json:"created_at" msgpack:"-"`
	UpdatedAt       time.Time  `json:"updated_at" msgpack:"-"`
}
