// Package ledger answers read-only questions about the inventory movement
// history. It shares the gorm connection pool but queries through sqlx.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"compounder/internal/compounding"
	"compounder/models"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Ledger reads inventory_movements.
type Ledger struct {
	db *sqlx.DB
}

// New wraps the pool behind database.
func New(database *gorm.DB) (*Ledger, error) {
	if database == nil {
		return nil, fmt.Errorf("database handle is nil")
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	return &Ledger{db: sqlx.NewDb(sqlDB, driverName(database))}, nil
}

// driverName maps the gorm dialector onto the name sqlx uses to pick a bind
// variable style.
func driverName(database *gorm.DB) string {
	if database.Dialector != nil && database.Dialector.Name() == "postgres" {
		return "pgx"
	}
	return "sqlite3"
}

// Filter narrows a movement query. Zero values mean "any".
type Filter struct {
	LotID    uint
	AtivoIDs []uint
	Type     models.MovementType
	Since    *time.Time
	Limit    int
}

const movementColumns = `id, lot_id, ativo_id, type, quantity, unit_code, lot_quantity_after, reason, reference, created_at`

// Movements lists movements newest first.
func (l *Ledger) Movements(ctx context.Context, filter Filter) ([]models.InventoryMovement, error) {
	where, args, err := filter.clauses()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + movementColumns + ` FROM inventory_movements` + where + ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, clampLimit(filter.Limit))

	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return nil, compounding.Storage("expand movement query", err)
	}

	movements := []models.InventoryMovement{}
	if err := l.db.SelectContext(ctx, &movements, l.db.Rebind(query), args...); err != nil {
		return nil, compounding.Storage("select movements", err)
	}
	return movements, nil
}

// ForLot lists the movements of one lot, newest first.
func (l *Ledger) ForLot(ctx context.Context, lotID uint, limit int) ([]models.InventoryMovement, error) {
	if lotID == 0 {
		return nil, compounding.Invalid("lot_id", "is required")
	}
	return l.Movements(ctx, Filter{LotID: lotID, Limit: limit})
}

// Total is the summed quantity moved for one ingredient in one direction and
// requested unit.
type Total struct {
	AtivoID  uint                `db:"ativo_id" json:"ativo_id"`
	Type     models.MovementType `db:"type" json:"type"`
	UnitCode string              `db:"unit_code" json:"unit_code"`
	Quantity float64             `db:"quantity" json:"quantity"`
	Count    int64               `db:"movements" json:"movements"`
}

// Totals aggregates the movements matching filter. The limit is ignored.
func (l *Ledger) Totals(ctx context.Context, filter Filter) ([]Total, error) {
	where, args, err := filter.clauses()
	if err != nil {
		return nil, err
	}

	query := `SELECT ativo_id, type, unit_code, SUM(quantity) AS quantity, COUNT(*) AS movements
		FROM inventory_movements` + where + `
		GROUP BY ativo_id, type, unit_code
		ORDER BY ativo_id, type, unit_code`

	if len(args) > 0 {
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, compounding.Storage("expand totals query", err)
		}
	}

	totals := []Total{}
	if err := l.db.SelectContext(ctx, &totals, l.db.Rebind(query), args...); err != nil {
		return nil, compounding.Storage("select movement totals", err)
	}
	return totals, nil
}

func (f Filter) clauses() (string, []any, error) {
	var (
		conditions []string
		args       []any
	)
	if f.LotID != 0 {
		conditions = append(conditions, "lot_id = ?")
		args = append(args, f.LotID)
	}
	if len(f.AtivoIDs) > 0 {
		conditions = append(conditions, "ativo_id IN (?)")
		args = append(args, f.AtivoIDs)
	}
	if f.Type != "" {
		if !f.Type.Valid() {
			return "", nil, compounding.Invalid("type", "unknown movement type %q", f.Type)
		}
		conditions = append(conditions, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(conditions) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
