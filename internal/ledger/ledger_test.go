package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"compounder/internal/compounding"
	"compounder/internal/db"
	"compounder/models"
)

func newTestLedger(t *testing.T, name string) (*Ledger, *gorm.DB) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), db.Options(logger.Silent))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	movements := []models.InventoryMovement{
		{LotID: 1, AtivoID: 10, Type: models.MovementEntrada, Quantity: 1, UnitCode: "kg", LotQuantityAfter: 1, Reason: models.ReasonOpening, Reference: "a", CreatedAt: base},
		{LotID: 1, AtivoID: 10, Type: models.MovementSaida, Quantity: 250, UnitCode: "g", LotQuantityAfter: 0.75, Reason: models.ReasonProduction, Reference: "b", CreatedAt: base.Add(time.Hour)},
		{LotID: 1, AtivoID: 10, Type: models.MovementSaida, Quantity: 150, UnitCode: "g", LotQuantityAfter: 0.6, Reason: models.ReasonProduction, Reference: "c", CreatedAt: base.Add(2 * time.Hour)},
		{LotID: 2, AtivoID: 20, Type: models.MovementEntrada, Quantity: 100, UnitCode: "g", LotQuantityAfter: 100, Reason: models.ReasonOpening, Reference: "d", CreatedAt: base.Add(3 * time.Hour)},
	}
	if err := database.Create(&movements).Error; err != nil {
		t.Fatalf("seed movements: %v", err)
	}

	ledger, err := New(database)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return ledger, database
}

func TestNewRejectsNilDatabase(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func TestMovementsNewestFirst(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t, "ledger-newest")

	movements, err := ledger.Movements(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Movements error = %v", err)
	}
	if len(movements) != 4 {
		t.Fatalf("len(movements) = %d, want 4", len(movements))
	}
	if movements[0].Reference != "d" || movements[3].Reference != "a" {
		t.Fatalf("unexpected order: %+v", movements)
	}
	if movements[1].Type != models.MovementSaida || movements[1].LotQuantityAfter != 0.6 {
		t.Fatalf("unexpected movement scan: %+v", movements[1])
	}
}

func TestMovementsFilters(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t, "ledger-filters")
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by lot", Filter{LotID: 1}, 3},
		{"by ativo list", Filter{AtivoIDs: []uint{10, 20}}, 4},
		{"by ativo and type", Filter{AtivoIDs: []uint{10}, Type: models.MovementSaida}, 2},
		{"limit", Filter{Limit: 1}, 1},
		{"unknown ativo", Filter{AtivoIDs: []uint{99}}, 0},
	}
	for _, tt := range tests {
		movements, err := ledger.Movements(ctx, tt.filter)
		if err != nil {
			t.Fatalf("%s: Movements error = %v", tt.name, err)
		}
		if len(movements) != tt.want {
			t.Fatalf("%s: len(movements) = %d, want %d", tt.name, len(movements), tt.want)
		}
	}

	if _, err := ledger.Movements(ctx, Filter{Type: "transfer"}); !errors.Is(err, compounding.ErrValidation) {
		t.Fatalf("unknown type error = %v, want ErrValidation", err)
	}
}

func TestForLot(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t, "ledger-for-lot")

	movements, err := ledger.ForLot(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("ForLot error = %v", err)
	}
	if len(movements) != 1 || movements[0].Reference != "d" {
		t.Fatalf("unexpected movements: %+v", movements)
	}
	if _, err := ledger.ForLot(context.Background(), 0, 0); !errors.Is(err, compounding.ErrValidation) {
		t.Fatalf("ForLot(0) error = %v, want ErrValidation", err)
	}
}

func TestTotals(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t, "ledger-totals")

	totals, err := ledger.Totals(context.Background(), Filter{AtivoIDs: []uint{10}, Type: models.MovementSaida})
	if err != nil {
		t.Fatalf("Totals error = %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("len(totals) = %d, want 1", len(totals))
	}
	if totals[0].Quantity != 400 || totals[0].Count != 2 || totals[0].UnitCode != "g" {
		t.Fatalf("unexpected total: %+v", totals[0])
	}

	all, err := ledger.Totals(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Totals error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{0: DefaultLimit, -3: DefaultLimit, 5: 5, MaxLimit + 1: MaxLimit} {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
