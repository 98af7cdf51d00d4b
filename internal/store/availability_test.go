package store

import (
	"context"
	"errors"
	"testing"

	"compounder/internal/compounding"
	"compounder/models"
)

func TestLoadAvailabilityReportsLimitingIngredient(t *testing.T) {
	s := newTestStore(t)
	a := createAtivo(t, s, "Gabapentina")
	b := createAtivo(t, s, "Omeprazol")
	createLot(t, s, a.ID, 1, "kg")
	createLot(t, s, b.ID, 100, "g")
	createLot(t, s, b.ID, 5, "L")

	formula := createFormula(t, s, "Gabapentina + Omeprazol",
		ativoItem(a.ID, 5, "g"),
		ativoItem(b.ID, 2, "g"),
		models.FormulaItem{Tipo: models.ItemKindExcipient, InsumoNome: "Amido", Quantity: 50, UnitCode: "g"},
	)

	report, err := s.LoadAvailability(context.Background(), formula.ID)
	if err != nil {
		t.Fatalf("LoadAvailability error = %v", err)
	}
	if report.FormulaID != formula.ID || report.ProducibleUnits != 50 {
		t.Fatalf("report = %+v, want 50 units", report)
	}
	if report.Limiting == nil || report.Limiting.IngredientID != b.ID || report.Limiting.AvailableConverted != 100 {
		t.Fatalf("Limiting = %+v, want ingredient %d with 100 g", report.Limiting, b.ID)
	}
	if len(report.Items) != 2 || report.Items[0].Name != "Gabapentina" || report.Items[0].ProducibleUnits != 200 {
		t.Fatalf("Items = %+v", report.Items)
	}
	if len(report.LotsByIngredient[b.ID]) != 2 {
		t.Fatalf("LotsByIngredient[%d] = %+v, want both lots", b.ID, report.LotsByIngredient[b.ID])
	}
}

func TestLoadAvailabilityIgnoresInactiveLots(t *testing.T) {
	s := newTestStore(t)
	a := createAtivo(t, s, "Gabapentina")
	lot := createLot(t, s, a.ID, 1, "kg")
	formula := createFormula(t, s, "Gabapentina 5g", ativoItem(a.ID, 5, "g"))
	ctx := context.Background()

	if err := s.DeactivateLot(ctx, lot.ID); err != nil {
		t.Fatalf("DeactivateLot error = %v", err)
	}

	report, err := s.LoadAvailability(ctx, formula.ID)
	if err != nil {
		t.Fatalf("LoadAvailability error = %v", err)
	}
	if report.ProducibleUnits != 0 {
		t.Fatalf("ProducibleUnits = %d, want 0", report.ProducibleUnits)
	}
	if len(report.Missing) != 1 || report.Missing[0].IngredientID != a.ID {
		t.Fatalf("Missing = %+v, want ingredient %d", report.Missing, a.ID)
	}
}

func TestLoadAvailabilityTracksConsumption(t *testing.T) {
	s := newTestStore(t)
	a := createAtivo(t, s, "Gabapentina")
	lot := createLot(t, s, a.ID, 100, "g")
	formula := createFormula(t, s, "Gabapentina 10g", ativoItem(a.ID, 10, "g"))
	ctx := context.Background()

	if _, err := s.ConsumeLot(ctx, MovementRequest{LotID: lot.ID, Quantity: 35, UnitCode: "g"}); err != nil {
		t.Fatalf("ConsumeLot error = %v", err)
	}
	report, err := s.LoadAvailability(ctx, formula.ID)
	if err != nil {
		t.Fatalf("LoadAvailability error = %v", err)
	}
	if report.ProducibleUnits != 6 {
		t.Fatalf("ProducibleUnits = %d, want 6", report.ProducibleUnits)
	}
}

func TestLoadAvailabilityWithoutActiveItems(t *testing.T) {
	s := newTestStore(t)
	formula := createFormula(t, s, "Base neutra", models.FormulaItem{Tipo: models.ItemKindExcipient, InsumoNome: "Vaselina", Quantity: 10, UnitCode: "g"})

	report, err := s.LoadAvailability(context.Background(), formula.ID)
	if err != nil {
		t.Fatalf("LoadAvailability error = %v", err)
	}
	if report.ProducibleUnits != 0 || report.Limiting != nil {
		t.Fatalf("report = %+v, want zero units and no limiting", report)
	}
}

func TestLoadAvailabilityUnknownFormula(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.LoadAvailability(context.Background(), 404); !errors.Is(err, compounding.ErrNotFound) {
		t.Fatalf("LoadAvailability error = %v, want ErrNotFound", err)
	}
}
