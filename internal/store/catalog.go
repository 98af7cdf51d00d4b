package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"compounder/internal/compounding"
	"compounder/models"
)

// CreateUnit stores a new measurement unit.
func (s *Store) CreateUnit(ctx context.Context, unit models.Unit) (models.Unit, error) {
	unit = normalizeUnit(unit)
	if err := compounding.ValidateUnit(unit); err != nil {
		return models.Unit{}, err
	}
	unit.ID = 0

	err := s.transaction(ctx, "create unit", func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Unit{}).Where("code = ?", unit.Code).Count(&count).Error; err != nil {
			return compounding.Storage("load unit", err)
		}
		if count > 0 {
			return &compounding.ConflictError{Message: fmt.Sprintf("unit %q already exists", unit.Code)}
		}
		return tx.Create(&unit).Error
	})
	if err != nil {
		return models.Unit{}, err
	}
	return unit, nil
}

// UpdateUnit changes the name, kind, or factor of an existing unit. The code
// is the unit's identity and cannot change.
func (s *Store) UpdateUnit(ctx context.Context, code string, unit models.Unit) (models.Unit, error) {
	code = strings.TrimSpace(code)
	unit = normalizeUnit(unit)
	unit.Code = code
	if err := compounding.ValidateUnit(unit); err != nil {
		return models.Unit{}, err
	}

	var stored models.Unit
	err := s.transaction(ctx, "update unit", func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&stored).Error; err != nil {
			return notFound(err, "unit", code)
		}
		updates := map[string]any{"name": unit.Name, "kind": unit.Kind, "factor_to_base": unit.FactorToBase}
		if err := tx.Model(&stored).Updates(updates).Error; err != nil {
			return compounding.Storage("update unit", err)
		}
		return tx.First(&stored, stored.ID).Error
	})
	if err != nil {
		return models.Unit{}, err
	}
	return stored, nil
}

// DeleteUnit removes a unit nothing refers to.
func (s *Store) DeleteUnit(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	return s.transaction(ctx, "delete unit", func(tx *gorm.DB) error {
		var unit models.Unit
		if err := tx.Where("code = ?", code).First(&unit).Error; err != nil {
			return notFound(err, "unit", code)
		}

		references := []struct {
			model any
			query string
			args  []any
			label string
		}{
			{&models.FormulaItem{}, "unit_code = ?", []any{code}, "formula items"},
			{&models.InventoryLot{}, "unit_code = ?", []any{code}, "lots"},
			{&models.Formula{}, "dose_unit_code = ? OR output_unit_code = ?", []any{code, code}, "formulas"},
		}
		for _, ref := range references {
			var count int64
			if err := tx.Model(ref.model).Where(ref.query, ref.args...).Count(&count).Error; err != nil {
				return compounding.Storage("count unit references", err)
			}
			if count > 0 {
				return &compounding.ConflictError{Message: fmt.Sprintf("unit %q is used by %d %s", code, count, ref.label)}
			}
		}

		return tx.Delete(&unit).Error
	})
}

// CreateAtivo stores a new ingredient.
func (s *Store) CreateAtivo(ctx context.Context, ativo models.Ativo) (models.Ativo, error) {
	ativo = normalizeAtivo(ativo)
	if ativo.Nome == "" {
		return models.Ativo{}, compounding.Invalid("nome", "is required")
	}
	ativo.ID = 0
	ativo.Lots = nil

	err := s.transaction(ctx, "create ativo", func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Ativo{}).Where("LOWER(nome) = ?", strings.ToLower(ativo.Nome)).Count(&count).Error; err != nil {
			return compounding.Storage("load ativo", err)
		}
		if count > 0 {
			return &compounding.ConflictError{Message: fmt.Sprintf("ativo %q already exists", ativo.Nome)}
		}
		return tx.Create(&ativo).Error
	})
	if err != nil {
		return models.Ativo{}, err
	}
	return ativo, nil
}

// UpdateAtivo overwrites the descriptive fields of an ingredient.
func (s *Store) UpdateAtivo(ctx context.Context, id uint, ativo models.Ativo) (models.Ativo, error) {
	ativo = normalizeAtivo(ativo)
	if ativo.Nome == "" {
		return models.Ativo{}, compounding.Invalid("nome", "is required")
	}

	var stored models.Ativo
	err := s.transaction(ctx, "update ativo", func(tx *gorm.DB) error {
		if err := tx.First(&stored, id).Error; err != nil {
			return notFound(err, "ativo", id)
		}
		updates := map[string]any{
			"nome":        ativo.Nome,
			"cas_number":  ativo.CASNumber,
			"description": ativo.Description,
			"supplier":    ativo.Supplier,
		}
		if err := tx.Model(&stored).Updates(updates).Error; err != nil {
			return compounding.Storage("update ativo", err)
		}
		return tx.First(&stored, id).Error
	})
	if err != nil {
		return models.Ativo{}, err
	}
	return stored, nil
}

// DeleteAtivo removes an ingredient that has no lots and is not used by any
// formula item.
func (s *Store) DeleteAtivo(ctx context.Context, id uint) error {
	return s.transaction(ctx, "delete ativo", func(tx *gorm.DB) error {
		var ativo models.Ativo
		if err := tx.First(&ativo, id).Error; err != nil {
			return notFound(err, "ativo", id)
		}

		var lots int64
		if err := tx.Model(&models.InventoryLot{}).Where("ativo_id = ?", id).Count(&lots).Error; err != nil {
			return compounding.Storage("count lots", err)
		}
		if lots > 0 {
			return &compounding.ConflictError{Message: fmt.Sprintf("ativo %d still has %d lots", id, lots)}
		}

		var items int64
		if err := tx.Model(&models.FormulaItem{}).Where("ativo_id = ?", id).Count(&items).Error; err != nil {
			return compounding.Storage("count formula items", err)
		}
		if items > 0 {
			return &compounding.ConflictError{Message: fmt.Sprintf("ativo %d is used by %d formula items", id, items)}
		}

		return tx.Unscoped().Delete(&ativo).Error
	})
}

func normalizeUnit(unit models.Unit) models.Unit {
	unit.Code = strings.TrimSpace(unit.Code)
	unit.Name = strings.TrimSpace(unit.Name)
	unit.Kind = strings.ToLower(strings.TrimSpace(unit.Kind))
	return unit
}

func normalizeAtivo(ativo models.Ativo) models.Ativo {
	ativo.Nome = strings.TrimSpace(ativo.Nome)
	ativo.CASNumber = strings.TrimSpace(ativo.CASNumber)
	ativo.Supplier = strings.TrimSpace(ativo.Supplier)
	return ativo
}
