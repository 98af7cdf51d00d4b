package models

import "time"

// Unit kinds shipped with the default seed. Any other non-empty kind is
// accepted; two units convert only when their kinds match.
const (
	UnitKindMass   = "mass"
	UnitKindVolume = "volume"
	UnitKindCount  = "count"
)

// Unit is a measurement unit. Multiplying a quantity expressed in this unit by
// FactorToBase yields the same quantity in the base unit of Kind.
type Unit struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"uniqueIndex;not null;size:16" json:"code"`
	Name         string    `gorm:"not null" json:"name"`
	Kind         string    `gorm:"not null;index;size:32" json:"kind"`
	FactorToBase float64   `gorm:"not null" json:"factor_to_base"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UnitsByCode indexes units by their code.
func UnitsByCode(units []Unit) map[string]Unit {
	indexed := make(map[string]Unit, len(units))
	for _, unit := range units {
		indexed[unit.Code] = unit
	}
	return indexed
}
