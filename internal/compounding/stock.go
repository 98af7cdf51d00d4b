package compounding

import (
	"compounder/models"
)

// Consume debits quantity (expressed in unit) from lot. The returned lot
// carries the new quantity; lot itself is not modified. The second return
// value is the debited amount in the lot's own unit.
func Consume(lot models.InventoryLot, lotUnit models.Unit, quantity float64, unit models.Unit) (models.InventoryLot, float64, error) {
	converted, err := movementAmount(lot, lotUnit, quantity, unit)
	if err != nil {
		return lot, 0, err
	}

	remaining := lot.Quantity - converted
	if remaining < -Epsilon {
		return lot, 0, &InsufficientStockError{
			LotID:     lot.ID,
			Available: lot.Quantity,
			UnitCode:  lot.UnitCode,
			Requested: converted,
		}
	}
	if remaining < 0 {
		remaining = 0
	}

	lot.Quantity = remaining
	return lot, converted, nil
}

// Receive credits quantity (expressed in unit) to lot.
func Receive(lot models.InventoryLot, lotUnit models.Unit, quantity float64, unit models.Unit) (models.InventoryLot, float64, error) {
	converted, err := movementAmount(lot, lotUnit, quantity, unit)
	if err != nil {
		return lot, 0, err
	}
	lot.Quantity += converted
	return lot, converted, nil
}

func movementAmount(lot models.InventoryLot, lotUnit models.Unit, quantity float64, unit models.Unit) (float64, error) {
	if quantity <= 0 {
		return 0, Invalid("quantity", "must be greater than zero")
	}
	if !lot.Active {
		return 0, Invalid("lot", "lot %d is inactive", lot.ID)
	}
	if lotUnit.Code != lot.UnitCode {
		return 0, Invalid("unit_code", "lot %d unit %q does not match %q", lot.ID, lot.UnitCode, lotUnit.Code)
	}
	return ConvertBetween(quantity, unit, lotUnit)
}
