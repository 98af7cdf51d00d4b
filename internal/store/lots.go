package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compounder/internal/compounding"
	"compounder/models"
)

// MovementRequest asks for a quantity change on one lot.
type MovementRequest struct {
	LotID     uint
	Quantity  float64
	UnitCode  string
	Reason    string
	Reference string
}

// MovementResult is the lot after the change plus the movement row written
// alongside it.
type MovementResult struct {
	Lot      models.InventoryLot      `json:"lot"`
	Movement models.InventoryMovement `json:"movement"`
}

type stockFunc func(lot models.InventoryLot, lotUnit models.Unit, quantity float64, unit models.Unit) (models.InventoryLot, float64, error)

// ConsumeLot debits a lot (saida). The lot row is locked for the whole
// read-check-write sequence, so concurrent consumers of the same lot are
// serialised and cannot jointly overdraw it.
func (s *Store) ConsumeLot(ctx context.Context, req MovementRequest) (MovementResult, error) {
	return s.move(ctx, "consume lot", models.MovementSaida, compounding.Consume, req)
}

// ReceiveLot credits a lot (entrada).
func (s *Store) ReceiveLot(ctx context.Context, req MovementRequest) (MovementResult, error) {
	return s.move(ctx, "receive lot", models.MovementEntrada, compounding.Receive, req)
}

func (s *Store) move(ctx context.Context, op string, kind models.MovementType, apply stockFunc, req MovementRequest) (MovementResult, error) {
	if req.LotID == 0 {
		return MovementResult{}, compounding.Invalid("lot_id", "is required")
	}
	if req.Quantity <= 0 {
		return MovementResult{}, compounding.Invalid("quantity", "must be greater than zero")
	}
	if strings.TrimSpace(req.UnitCode) == "" {
		return MovementResult{}, compounding.Invalid("unit_code", "is required")
	}

	var result MovementResult
	err := s.transaction(ctx, op, func(tx *gorm.DB) error {
		var lot models.InventoryLot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lot, req.LotID).Error; err != nil {
			return notFound(err, "lot", req.LotID)
		}

		units, err := loadUnits(tx)
		if err != nil {
			return err
		}
		requested, err := compounding.ResolveUnit(units, req.UnitCode)
		if err != nil {
			return err
		}
		lotUnit, err := compounding.ResolveUnit(units, lot.UnitCode)
		if err != nil {
			return err
		}

		updated, _, err := apply(lot, lotUnit, req.Quantity, requested)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.InventoryLot{}).
			Where("id = ?", lot.ID).
			Updates(map[string]any{"quantity": updated.Quantity, "updated_at": s.now()}).Error; err != nil {
			return compounding.Storage("update lot quantity", err)
		}

		movement, err := s.appendMovement(tx, updated, kind, req.Quantity, requested.Code, req.Reason, req.Reference)
		if err != nil {
			return err
		}

		result = MovementResult{Lot: updated, Movement: movement}
		return nil
	})
	if err != nil {
		return MovementResult{}, err
	}
	return result, nil
}

func (s *Store) appendMovement(tx *gorm.DB, lot models.InventoryLot, kind models.MovementType, quantity float64, unitCode, reason, reference string) (models.InventoryMovement, error) {
	if strings.TrimSpace(reference) == "" {
		reference = s.newReference()
	}
	movement := models.InventoryMovement{
		LotID:            lot.ID,
		AtivoID:          lot.AtivoID,
		Type:             kind,
		Quantity:         quantity,
		UnitCode:         unitCode,
		LotQuantityAfter: lot.Quantity,
		Reason:           models.NormalizeReason(reason),
		Reference:        reference,
		CreatedAt:        s.now(),
	}
	if err := tx.Create(&movement).Error; err != nil {
		return models.InventoryMovement{}, compounding.Storage("append movement", err)
	}
	return movement, nil
}

// CreateLot stores a new lot. A positive opening quantity is logged as an
// entrada movement in the same transaction.
func (s *Store) CreateLot(ctx context.Context, lot models.InventoryLot) (models.InventoryLot, error) {
	lot.UnitCode = strings.TrimSpace(lot.UnitCode)
	lot.LotNumber = strings.TrimSpace(lot.LotNumber)
	if err := compounding.ValidateLot(lot); err != nil {
		return models.InventoryLot{}, err
	}
	lot.ID = 0
	lot.Active = true

	err := s.transaction(ctx, "create lot", func(tx *gorm.DB) error {
		if err := requireAtivo(tx, lot.AtivoID); err != nil {
			return err
		}
		units, err := loadUnits(tx)
		if err != nil {
			return err
		}
		if _, err := compounding.ResolveUnit(units, lot.UnitCode); err != nil {
			return err
		}

		if err := tx.Create(&lot).Error; err != nil {
			return compounding.Storage("insert lot", err)
		}
		if lot.Quantity > 0 {
			if _, err := s.appendMovement(tx, lot, models.MovementEntrada, lot.Quantity, lot.UnitCode, models.ReasonOpening, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.InventoryLot{}, err
	}
	return lot, nil
}

// LotDetails are the lot fields editable outside of movements.
type LotDetails struct {
	LotNumber *string
	ExpiresAt *time.Time
	Location  *string
	Active    *bool
}

// UpdateLotDetails edits lot metadata. Quantity and unit are never touched.
func (s *Store) UpdateLotDetails(ctx context.Context, lotID uint, details LotDetails) (models.InventoryLot, error) {
	updates := map[string]any{"updated_at": s.now()}
	if details.LotNumber != nil {
		updates["lot_number"] = strings.TrimSpace(*details.LotNumber)
	}
	if details.ExpiresAt != nil {
		updates["expires_at"] = details.ExpiresAt
	}
	if details.Location != nil {
		updates["location"] = strings.TrimSpace(*details.Location)
	}
	if details.Active != nil {
		updates["active"] = *details.Active
	}

	var lot models.InventoryLot
	err := s.transaction(ctx, "update lot", func(tx *gorm.DB) error {
		if err := tx.First(&lot, lotID).Error; err != nil {
			return notFound(err, "lot", lotID)
		}
		if err := tx.Model(&lot).Updates(updates).Error; err != nil {
			return compounding.Storage("update lot", err)
		}
		return notFound(tx.First(&lot, lotID).Error, "lot", lotID)
	})
	if err != nil {
		return models.InventoryLot{}, err
	}
	return lot, nil
}

// DeactivateLot takes a lot out of availability. Lots are never deleted so
// their movement history keeps a parent row.
func (s *Store) DeactivateLot(ctx context.Context, lotID uint) error {
	inactive := false
	_, err := s.UpdateLotDetails(ctx, lotID, LotDetails{Active: &inactive})
	return err
}

// AttachCertificate stores certificate text on a lot and fills the lot number
// and expiry when the lot does not have them yet.
func (s *Store) AttachCertificate(ctx context.Context, lotID uint, text, lotNumber string, expiresAt *time.Time) (models.InventoryLot, error) {
	var lot models.InventoryLot
	err := s.transaction(ctx, "attach certificate", func(tx *gorm.DB) error {
		if err := tx.First(&lot, lotID).Error; err != nil {
			return notFound(err, "lot", lotID)
		}
		updates := map[string]any{"certificate_text": text, "updated_at": s.now()}
		if strings.TrimSpace(lot.LotNumber) == "" && strings.TrimSpace(lotNumber) != "" {
			updates["lot_number"] = strings.TrimSpace(lotNumber)
		}
		if lot.ExpiresAt == nil && expiresAt != nil {
			updates["expires_at"] = expiresAt
		}
		if err := tx.Model(&lot).Updates(updates).Error; err != nil {
			return compounding.Storage("update lot certificate", err)
		}
		return notFound(tx.First(&lot, lotID).Error, "lot", lotID)
	})
	if err != nil {
		return models.InventoryLot{}, err
	}
	return lot, nil
}

func requireAtivo(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Ativo{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return compounding.Storage("load ativo", err)
	}
	if count == 0 {
		return &compounding.NotFoundError{Resource: "ativo", ID: id}
	}
	return nil
}
