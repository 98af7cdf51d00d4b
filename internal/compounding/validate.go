package compounding

import (
	"fmt"
	"strings"

	"compounder/models"
)

// ValidateItems checks the shape of a formula item batch. A single bad item
// fails the whole batch.
func ValidateItems(items []models.FormulaItem) error {
	for i, item := range items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

		if !item.Tipo.Valid() {
			return Invalid(field("tipo"), "unknown item kind %q", item.Tipo)
		}
		hasIngredient := item.AtivoID != nil && *item.AtivoID != 0
		if item.Tipo == models.ItemKindActive && !hasIngredient {
			return Invalid(field("ativo_id"), "is required for %s items", models.ItemKindActive)
		}
		if item.Tipo != models.ItemKindActive && hasIngredient {
			return Invalid(field("ativo_id"), "is only allowed on %s items", models.ItemKindActive)
		}
		if !hasIngredient && strings.TrimSpace(item.InsumoNome) == "" {
			return Invalid(field("insumo_nome"), "is required when ativo_id is not set")
		}
		if item.Quantity <= 0 {
			return Invalid(field("quantity"), "must be greater than zero")
		}
		if strings.TrimSpace(item.UnitCode) == "" {
			return Invalid(field("unit_code"), "is required")
		}
	}
	return nil
}

// ValidateFormula checks the formula header fields. Items are validated
// separately by ValidateItems.
func ValidateFormula(formula models.Formula) error {
	switch {
	case strings.TrimSpace(formula.Name) == "":
		return Invalid("name", "is required")
	case formula.Price < 0:
		return Invalid("price", "must not be negative")
	case formula.OutputQuantityPerBatch < 0:
		return Invalid("output_quantity_per_batch", "must not be negative")
	case formula.DoseAmount < 0:
		return Invalid("dose_amount", "must not be negative")
	}
	return nil
}

// ValidateLot checks a lot before it is first stored.
func ValidateLot(lot models.InventoryLot) error {
	switch {
	case lot.AtivoID == 0:
		return Invalid("ativo_id", "is required")
	case strings.TrimSpace(lot.UnitCode) == "":
		return Invalid("unit_code", "is required")
	case lot.Quantity < 0:
		return Invalid("quantity", "must not be negative")
	}
	return nil
}
