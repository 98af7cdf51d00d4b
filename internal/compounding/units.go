package compounding

import (
	"strings"

	"compounder/models"
)

// Epsilon absorbs floating-point accumulation error when comparing stock
// quantities and flooring unit counts. It is not a business allowance.
const Epsilon = 1e-9

// ConvertToBase expresses quantity in the base unit of unit's kind.
func ConvertToBase(quantity float64, unit models.Unit) float64 {
	return quantity * unit.FactorToBase
}

// ConvertBetween converts quantity from one unit to another of the same kind.
func ConvertBetween(quantity float64, from, to models.Unit) (float64, error) {
	if !SameKind(from, to) {
		return 0, &IncompatibleUnitsError{FromCode: from.Code, FromKind: from.Kind, ToCode: to.Code, ToKind: to.Kind}
	}
	return ConvertToBase(quantity, from) / to.FactorToBase, nil
}

// SameKind reports whether two units can be converted into each other.
func SameKind(a, b models.Unit) bool {
	return strings.EqualFold(a.Kind, b.Kind)
}

// ResolveUnit looks code up in units.
func ResolveUnit(units map[string]models.Unit, code string) (models.Unit, error) {
	unit, ok := units[strings.TrimSpace(code)]
	if !ok {
		return models.Unit{}, Invalid("unit_code", "unknown unit %q", code)
	}
	return unit, nil
}

// ValidateUnit checks the fields a unit needs before it can take part in
// conversions.
func ValidateUnit(unit models.Unit) error {
	switch {
	case strings.TrimSpace(unit.Code) == "":
		return Invalid("code", "is required")
	case strings.TrimSpace(unit.Name) == "":
		return Invalid("name", "is required")
	case strings.TrimSpace(unit.Kind) == "":
		return Invalid("kind", "is required")
	case unit.FactorToBase <= 0:
		return Invalid("factor_to_base", "must be greater than zero")
	}
	return nil
}
