package store

import (
	"context"

	"gorm.io/gorm"

	"compounder/internal/compounding"
	"compounder/models"
)

// LoadAvailability reads a formula, the active lots of every ingredient it
// references, and the unit table in one read transaction, then runs the
// estimate over that snapshot. No rows are locked.
func (s *Store) LoadAvailability(ctx context.Context, formulaID uint) (compounding.AvailabilityReport, error) {
	if err := s.ready(); err != nil {
		return compounding.AvailabilityReport{}, err
	}

	var (
		formula models.Formula
		lots    []models.InventoryLot
		units   map[string]models.Unit
	)
	err := s.transaction(ctx, "load availability", func(tx *gorm.DB) error {
		if err := tx.Preload("Items", orderedItems).Preload("Items.Ativo").First(&formula, formulaID).Error; err != nil {
			return notFound(err, "formula", formulaID)
		}

		ingredientIDs := referencedIngredients(formula.Items)
		if len(ingredientIDs) > 0 {
			if err := tx.Where("ativo_id IN ? AND active = ?", ingredientIDs, true).Order("id ASC").Find(&lots).Error; err != nil {
				return compounding.Storage("load lots", err)
			}
		}

		var err error
		units, err = loadUnits(tx)
		return err
	}, s.readOptions()...)
	if err != nil {
		return compounding.AvailabilityReport{}, err
	}

	lotsByIngredient := make(map[uint][]models.InventoryLot)
	for _, lot := range lots {
		lotsByIngredient[lot.AtivoID] = append(lotsByIngredient[lot.AtivoID], lot)
	}

	return compounding.EstimateProducible(formula, formula.Items, lotsByIngredient, units)
}

func referencedIngredients(items []models.FormulaItem) []uint {
	seen := make(map[uint]bool)
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if !item.Tipo.ConstrainsProduction() || item.AtivoID == nil || seen[*item.AtivoID] {
			continue
		}
		seen[*item.AtivoID] = true
		ids = append(ids, *item.AtivoID)
	}
	return ids
}
