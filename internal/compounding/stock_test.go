package compounding

import (
	"errors"
	"testing"

	"compounder/models"
)

func TestConsumeRejectsOverdraw(t *testing.T) {
	t.Parallel()

	original := lot(1, 10, 10, "g")
	updated, _, err := Consume(original, gram, 15, gram)

	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Consume error = %v, want InsufficientStockError", err)
	}
	if insufficient.Available != 10 || insufficient.UnitCode != "g" {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
	if updated.Quantity != 10 || original.Quantity != 10 {
		t.Fatalf("lot changed on rejected consumption: %+v", updated)
	}
}

func TestConsumeDebitsLot(t *testing.T) {
	t.Parallel()

	updated, debited, err := Consume(lot(1, 10, 10, "g"), gram, 4, gram)
	if err != nil {
		t.Fatalf("Consume error = %v", err)
	}
	if updated.Quantity != 6 || debited != 4 {
		t.Fatalf("Consume = (%g, %g), want (6, 4)", updated.Quantity, debited)
	}
}

func TestConsumeConvertsIntoLotUnit(t *testing.T) {
	t.Parallel()

	updated, debited, err := Consume(lot(1, 10, 1, "kg"), kilogram, 250, gram)
	if err != nil {
		t.Fatalf("Consume error = %v", err)
	}
	if updated.Quantity != 0.75 || debited != 0.25 {
		t.Fatalf("Consume = (%g, %g), want (0.75, 0.25)", updated.Quantity, debited)
	}
}

func TestConsumeAllowsFloatNoiseAtZero(t *testing.T) {
	t.Parallel()

	updated, _, err := Consume(lot(1, 10, 0.3, "g"), gram, 0.1+0.2, gram)
	if err != nil {
		t.Fatalf("Consume error = %v", err)
	}
	if updated.Quantity != 0 {
		t.Fatalf("Quantity = %g, want 0", updated.Quantity)
	}
}

func TestConsumeRejectsIncompatibleUnit(t *testing.T) {
	t.Parallel()

	_, _, err := Consume(lot(1, 10, 10, "g"), gram, 1, milliliter)
	if !errors.Is(err, ErrIncompatibleUnits) {
		t.Fatalf("Consume error = %v, want ErrIncompatibleUnits", err)
	}
}

func TestConsumeValidatesInput(t *testing.T) {
	t.Parallel()

	inactive := lot(1, 10, 10, "g")
	inactive.Active = false

	cases := []struct {
		name     string
		lot      models.InventoryLot
		lotUnit  models.Unit
		quantity float64
	}{
		{"zero quantity", lot(1, 10, 10, "g"), gram, 0},
		{"negative quantity", lot(1, 10, 10, "g"), gram, -1},
		{"inactive lot", inactive, gram, 1},
		{"mismatched lot unit", lot(1, 10, 10, "g"), kilogram, 1},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := Consume(tt.lot, tt.lotUnit, tt.quantity, gram); !errors.Is(err, ErrValidation) {
				t.Fatalf("Consume error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestReceiveCreditsLot(t *testing.T) {
	t.Parallel()

	updated, credited, err := Receive(lot(1, 10, 0.5, "kg"), kilogram, 500, gram)
	if err != nil {
		t.Fatalf("Receive error = %v", err)
	}
	if updated.Quantity != 1 || credited != 0.5 {
		t.Fatalf("Receive = (%g, %g), want (1, 0.5)", updated.Quantity, credited)
	}
}
