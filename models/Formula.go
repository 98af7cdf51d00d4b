package models

import (
	"gorm.io/gorm"
)

type Formula struct {
	gorm.Model
	Name                   string              `gorm:"not null" json:"name"`
	FormID                 *uint               `json:"form_id"`
	Form                   *PharmaceuticalForm `gorm:"foreignKey:FormID" json:"form,omitempty"`
	DoseAmount             float64             `json:"dose_amount"`
	DoseUnitCode           string              `gorm:"size:16" json:"dose_unit_code"`
	DoseFrequency          string              `json:"dose_frequency"`
	OutputUnitCode         string              `gorm:"size:16" json:"output_unit_code"`
	OutputQuantityPerBatch float64             `json:"output_quantity_per_batch"`
	Price                  float64             `json:"price"`
	Notes                  string              `gorm:"type:text" json:"notes"`
	Active                 bool                `gorm:"not null;default:true" json:"active"`
	Items                  []FormulaItem       `gorm:"foreignKey:FormulaID" json:"items"`
}
