package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"compounder/internal/compounding"
	"compounder/models"
)

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("formula_items.id ASC")
}

func preloadFormula(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Form").Preload("Items", orderedItems).Preload("Items.Ativo")
}

// ListFormulas returns every formula with its items, newest first.
func (s *Store) ListFormulas(ctx context.Context) ([]models.Formula, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var formulas []models.Formula
	if err := preloadFormula(s.db.WithContext(ctx)).Order("created_at DESC").Find(&formulas).Error; err != nil {
		return nil, compounding.Storage("list formulas", err)
	}
	return formulas, nil
}

// GetFormula loads one formula with its form and items in ascending item id.
func (s *Store) GetFormula(ctx context.Context, id uint) (models.Formula, error) {
	if err := s.ready(); err != nil {
		return models.Formula{}, err
	}
	var formula models.Formula
	if err := preloadFormula(s.db.WithContext(ctx)).First(&formula, id).Error; err != nil {
		return models.Formula{}, notFound(err, "formula", id)
	}
	return formula, nil
}

// CreateFormula stores a formula together with its item collection.
func (s *Store) CreateFormula(ctx context.Context, formula models.Formula) (models.Formula, error) {
	formula.Name = strings.TrimSpace(formula.Name)
	if err := compounding.ValidateFormula(formula); err != nil {
		return models.Formula{}, err
	}
	items := formula.Items
	if err := compounding.ValidateItems(items); err != nil {
		return models.Formula{}, err
	}
	formula.ID = 0
	formula.Items = nil
	formula.Form = nil

	err := s.transaction(ctx, "create formula", func(tx *gorm.DB) error {
		if err := checkFormulaReferences(tx, formula); err != nil {
			return err
		}
		if err := checkItemReferences(tx, items); err != nil {
			return err
		}
		if err := tx.Create(&formula).Error; err != nil {
			return compounding.Storage("insert formula", err)
		}
		return insertItems(tx, formula.ID, items)
	})
	if err != nil {
		return models.Formula{}, err
	}
	return s.GetFormula(ctx, formula.ID)
}

// UpdateFormula overwrites the header fields of formula id. When replaceItems
// is true the item collection is replaced in the same transaction.
func (s *Store) UpdateFormula(ctx context.Context, id uint, formula models.Formula, replaceItems bool) (models.Formula, error) {
	formula.Name = strings.TrimSpace(formula.Name)
	if err := compounding.ValidateFormula(formula); err != nil {
		return models.Formula{}, err
	}
	items := formula.Items
	if replaceItems {
		if err := compounding.ValidateItems(items); err != nil {
			return models.Formula{}, err
		}
	}

	err := s.transaction(ctx, "update formula", func(tx *gorm.DB) error {
		var existing models.Formula
		if err := tx.First(&existing, id).Error; err != nil {
			return notFound(err, "formula", id)
		}
		if err := checkFormulaReferences(tx, formula); err != nil {
			return err
		}

		updates := map[string]any{
			"name":                      formula.Name,
			"form_id":                   formula.FormID,
			"dose_amount":               formula.DoseAmount,
			"dose_unit_code":            strings.TrimSpace(formula.DoseUnitCode),
			"dose_frequency":            strings.TrimSpace(formula.DoseFrequency),
			"output_unit_code":          strings.TrimSpace(formula.OutputUnitCode),
			"output_quantity_per_batch": formula.OutputQuantityPerBatch,
			"price":                     formula.Price,
			"notes":                     formula.Notes,
			"active":                    formula.Active,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return compounding.Storage("update formula", err)
		}

		if !replaceItems {
			return nil
		}
		return replaceItemsTx(tx, id, items)
	})
	if err != nil {
		return models.Formula{}, err
	}
	return s.GetFormula(ctx, id)
}

// ReplaceFormulaItems swaps the whole item collection of a formula. The batch
// is validated before anything is written; a failure leaves the previous
// collection in place.
func (s *Store) ReplaceFormulaItems(ctx context.Context, formulaID uint, items []models.FormulaItem) ([]models.FormulaItem, error) {
	if err := compounding.ValidateItems(items); err != nil {
		return nil, err
	}

	var stored []models.FormulaItem
	err := s.transaction(ctx, "replace formula items", func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Formula{}).Where("id = ?", formulaID).Count(&count).Error; err != nil {
			return compounding.Storage("load formula", err)
		}
		if count == 0 {
			return &compounding.NotFoundError{Resource: "formula", ID: formulaID}
		}
		if err := replaceItemsTx(tx, formulaID, items); err != nil {
			return err
		}
		return orderedItems(tx.Preload("Ativo")).Where("formula_id = ?", formulaID).Find(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListFormulaItems returns the items of a formula in ascending id.
func (s *Store) ListFormulaItems(ctx context.Context, formulaID uint) ([]models.FormulaItem, error) {
	formula, err := s.GetFormula(ctx, formulaID)
	if err != nil {
		return nil, err
	}
	return formula.Items, nil
}

// DeleteFormula archives a formula (soft delete through gorm.Model) and
// removes its items, which are a replaceable collection with no history.
func (s *Store) DeleteFormula(ctx context.Context, id uint) error {
	return s.transaction(ctx, "delete formula", func(tx *gorm.DB) error {
		var formula models.Formula
		if err := tx.First(&formula, id).Error; err != nil {
			return notFound(err, "formula", id)
		}
		if err := tx.Where("formula_id = ?", id).Delete(&models.FormulaItem{}).Error; err != nil {
			return compounding.Storage("delete formula items", err)
		}
		if err := tx.Delete(&formula).Error; err != nil {
			return compounding.Storage("delete formula", err)
		}
		return nil
	})
}

func replaceItemsTx(tx *gorm.DB, formulaID uint, items []models.FormulaItem) error {
	if err := checkItemReferences(tx, items); err != nil {
		return err
	}
	if err := tx.Where("formula_id = ?", formulaID).Delete(&models.FormulaItem{}).Error; err != nil {
		return compounding.Storage("delete formula items", err)
	}
	return insertItems(tx, formulaID, items)
}

func insertItems(tx *gorm.DB, formulaID uint, items []models.FormulaItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.FormulaItem, len(items))
	for i, item := range items {
		rows[i] = models.FormulaItem{
			FormulaID:  formulaID,
			Tipo:       item.Tipo,
			AtivoID:    item.AtivoID,
			InsumoNome: strings.TrimSpace(item.InsumoNome),
			Quantity:   item.Quantity,
			UnitCode:   strings.TrimSpace(item.UnitCode),
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return compounding.Storage("insert formula items", err)
	}
	return nil
}

// checkItemReferences confirms every unit code and ingredient id in the batch
// exists. It runs after the shape checks of compounding.ValidateItems.
func checkItemReferences(tx *gorm.DB, items []models.FormulaItem) error {
	if len(items) == 0 {
		return nil
	}
	units, err := loadUnits(tx)
	if err != nil {
		return err
	}

	ingredientIDs := make([]uint, 0, len(items))
	for i, item := range items {
		if _, err := compounding.ResolveUnit(units, item.UnitCode); err != nil {
			return compounding.Invalid(fmt.Sprintf("items[%d].unit_code", i), "unknown unit %q", item.UnitCode)
		}
		if item.AtivoID != nil {
			ingredientIDs = append(ingredientIDs, *item.AtivoID)
		}
	}
	if len(ingredientIDs) == 0 {
		return nil
	}

	var found []uint
	if err := tx.Model(&models.Ativo{}).Where("id IN ?", ingredientIDs).Pluck("id", &found).Error; err != nil {
		return compounding.Storage("load ativos", err)
	}
	known := make(map[uint]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for i, item := range items {
		if item.AtivoID != nil && !known[*item.AtivoID] {
			return compounding.Invalid(fmt.Sprintf("items[%d].ativo_id", i), "unknown ativo %d", *item.AtivoID)
		}
	}
	return nil
}

func checkFormulaReferences(tx *gorm.DB, formula models.Formula) error {
	if formula.FormID != nil {
		var count int64
		if err := tx.Model(&models.PharmaceuticalForm{}).Where("id = ?", *formula.FormID).Count(&count).Error; err != nil {
			return compounding.Storage("load form", err)
		}
		if count == 0 {
			return compounding.Invalid("form_id", "unknown pharmaceutical form %d", *formula.FormID)
		}
	}

	codes := map[string]string{
		"dose_unit_code":   strings.TrimSpace(formula.DoseUnitCode),
		"output_unit_code": strings.TrimSpace(formula.OutputUnitCode),
	}
	var units map[string]models.Unit
	for _, field := range []string{"dose_unit_code", "output_unit_code"} {
		code := codes[field]
		if code == "" {
			continue
		}
		if units == nil {
			var err error
			if units, err = loadUnits(tx); err != nil {
				return err
			}
		}
		if _, ok := units[code]; !ok {
			return compounding.Invalid(field, "unknown unit %q", code)
		}
	}
	return nil
}
