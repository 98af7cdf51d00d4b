package mock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"compounder/internal/db"
	applog "compounder/internal/log"
	"compounder/internal/store"
	"compounder/models"
)

// New returns an in-memory sqlite database seeded with a small pharmacy
// catalog. Every call gets its own database.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	dsn := fmt.Sprintf("file:compounder-mock-%s?mode=memory&cache=shared", uuid.NewString())
	database, err := gorm.Open(sqlite.Open(dsn), db.Options(logger.Silent))
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	// A single connection keeps the in-memory database alive and serialises
	// writers the way SQLite expects.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}

	if err := seed(ctx, database); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

// Units lists the measurement units every fresh database starts with.
func Units() []models.Unit {
	return []models.Unit{
		{Code: "mcg", Name: "micrograma", Kind: models.UnitKindMass, FactorToBase: 0.000001},
		{Code: "mg", Name: "miligrama", Kind: models.UnitKindMass, FactorToBase: 0.001},
		{Code: "g", Name: "grama", Kind: models.UnitKindMass, FactorToBase: 1},
		{Code: "kg", Name: "quilograma", Kind: models.UnitKindMass, FactorToBase: 1000},
		{Code: "mL", Name: "mililitro", Kind: models.UnitKindVolume, FactorToBase: 1},
		{Code: "L", Name: "litro", Kind: models.UnitKindVolume, FactorToBase: 1000},
		{Code: "un", Name: "unidade", Kind: models.UnitKindCount, FactorToBase: 1},
	}
}

func seed(ctx context.Context, database *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	units := Units()
	if err := database.WithContext(ctx).Create(&units).Error; err != nil {
		return err
	}

	forms := []models.PharmaceuticalForm{
		{Name: "Cápsula"},
		{Name: "Pasta oral"},
		{Name: "Suspensão oral"},
		{Name: "Biscoito palatável"},
	}
	if err := database.WithContext(ctx).Create(&forms).Error; err != nil {
		return err
	}

	s := store.New(database)

	ativos := map[string]models.Ativo{}
	for _, candidate := range []models.Ativo{
		{Nome: "Gabapentina", CASNumber: "60142-96-3", Supplier: "Fagron"},
		{Nome: "Omeprazol", CASNumber: "73590-58-6", Supplier: "Galena"},
		{Nome: "Fluoxetina", CASNumber: "56296-78-7", Supplier: "Fagron"},
		{Nome: "Metronidazol", CASNumber: "443-48-1", Supplier: "Purifarma"},
	} {
		ativo, err := s.CreateAtivo(ctx, candidate)
		if err != nil {
			return err
		}
		ativos[ativo.Nome] = ativo
	}

	lots := []models.InventoryLot{
		{AtivoID: ativos["Gabapentina"].ID, Quantity: 1, UnitCode: "kg", LotNumber: "GB-2401", Location: "Armário A"},
		{AtivoID: ativos["Omeprazol"].ID, Quantity: 100, UnitCode: "g", LotNumber: "OM-118", Location: "Armário A"},
		{AtivoID: ativos["Fluoxetina"].ID, Quantity: 20, UnitCode: "g", LotNumber: "FX-77", Location: "Armário B"},
		// Solution stock; mass requirements cannot draw on it.
		{AtivoID: ativos["Fluoxetina"].ID, Quantity: 500, UnitCode: "mL", LotNumber: "FX-S-3", Location: "Geladeira"},
	}
	for _, lot := range lots {
		if _, err := s.CreateLot(ctx, lot); err != nil {
			return err
		}
	}

	capsule := forms[0].ID
	paste := forms[1].ID
	treat := forms[3].ID
	ativo := func(name string, quantity float64, unit string) models.FormulaItem {
		id := ativos[name].ID
		return models.FormulaItem{Tipo: models.ItemKindActive, AtivoID: &id, Quantity: quantity, UnitCode: unit}
	}

	formulas := []models.Formula{
		{
			Name: "Gabapentina 5 g", FormID: &paste, OutputUnitCode: "un", Price: 48.5, Active: true,
			Items: []models.FormulaItem{ativo("Gabapentina", 5, "g")},
		},
		{
			Name: "Gabapentina + Omeprazol", FormID: &capsule, OutputUnitCode: "un", Price: 62, Active: true,
			Items: []models.FormulaItem{
				ativo("Gabapentina", 5, "g"),
				ativo("Omeprazol", 2, "g"),
				{Tipo: models.ItemKindPackaging, InsumoNome: "Pote 30 cápsulas", Quantity: 1, UnitCode: "un"},
			},
		},
		{
			Name: "Fluoxetina 10 mg", FormID: &capsule, DoseAmount: 10, DoseUnitCode: "mg", DoseFrequency: "1x ao dia", OutputUnitCode: "un", Price: 39.9, Active: true,
			Items: []models.FormulaItem{
				ativo("Fluoxetina", 10, "mg"),
				{Tipo: models.ItemKindExcipient, InsumoNome: "Amido", Quantity: 90, UnitCode: "mg"},
				{Tipo: models.ItemKindPackaging, InsumoNome: "Cápsula 3", Quantity: 1, UnitCode: "un"},
			},
		},
		{
			Name: "Metronidazol pasta 250 mg", FormID: &paste, OutputUnitCode: "un", Price: 55, Active: true,
			Items: []models.FormulaItem{ativo("Metronidazol", 250, "mg")},
		},
		{
			Name: "Base palatável", FormID: &treat, OutputUnitCode: "g", OutputQuantityPerBatch: 500, Active: true,
			Items: []models.FormulaItem{{Tipo: models.ItemKindExcipient, InsumoNome: "Sabor carne", Quantity: 2, UnitCode: "g"}},
		},
	}
	for _, formula := range formulas {
		if _, err := s.CreateFormula(ctx, formula); err != nil {
			return fmt.Errorf("seed formula %q: %w", formula.Name, err)
		}
	}

	applog.Debug(ctx, "mock database seeded")
	return nil
}
