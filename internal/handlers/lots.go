package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"compounder/internal/certificate"
	"compounder/internal/compounding"
	"compounder/internal/ledger"
	applog "compounder/internal/log"
	"compounder/internal/store"
	"compounder/models"
)

type lotRequest struct {
	AtivoID   uint       `json:"ativo_id"`
	Quantity  float64    `json:"quantity"`
	UnitCode  string     `json:"unit_code"`
	LotNumber string     `json:"lot_number"`
	ExpiresAt *time.Time `json:"expires_at"`
	Location  string     `json:"location"`
}

type lotUpdateRequest struct {
	LotNumber *string    `json:"lot_number"`
	ExpiresAt *time.Time `json:"expires_at"`
	Location  *string    `json:"location"`
	Active    *bool      `json:"active"`
}

type movementRequest struct {
	Quantity  float64 `json:"quantity"`
	UnitCode  string  `json:"unit_code"`
	Reason    string  `json:"reason"`
	Reference string  `json:"reference"`
}

type certificateResponse struct {
	Lot      models.InventoryLot  `json:"lot"`
	Document certificate.Document `json:"document"`
}

// ListLots returns lots, optionally filtered by ativo_id and active.
func ListLots(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	query := database.WithContext(r.Context()).Order("ativo_id asc, id asc")

	params := r.URL.Query()
	if raw := strings.TrimSpace(params.Get("ativo_id")); raw != "" {
		ids, err := uintList(raw)
		if err != nil {
			writeError(w, r, compounding.Invalid("ativo_id", "%v", err))
			return
		}
		query = query.Where("ativo_id IN ?", ids)
	}
	if raw := strings.TrimSpace(params.Get("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, compounding.Invalid("active", "must be a boolean"))
			return
		}
		query = query.Where("active = ?", active)
	}

	lots := []models.InventoryLot{}
	if err := query.Find(&lots).Error; err != nil {
		writeError(w, r, compounding.Storage("list lots", err))
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

func ShowLot(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var lot models.InventoryLot
	if err := database.WithContext(r.Context()).First(&lot, id).Error; err != nil {
		writeError(w, r, notFoundOr(err, "lot", id))
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// CreateLot registers a lot; its opening quantity is logged as an entrada.
func CreateLot(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	var payload lotRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	lot, err := inventory.CreateLot(r.Context(), models.InventoryLot{
		AtivoID:   payload.AtivoID,
		Quantity:  payload.Quantity,
		UnitCode:  payload.UnitCode,
		LotNumber: payload.LotNumber,
		ExpiresAt: payload.ExpiresAt,
		Location:  strings.TrimSpace(payload.Location),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "lot created", "id", lot.ID, "ativo_id", lot.AtivoID, "quantity", lot.Quantity, "unit", lot.UnitCode)
	writeJSON(w, http.StatusCreated, lot)
}

// UpdateLot edits lot metadata. Quantities only change through consume and
// receive.
func UpdateLot(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payload lotUpdateRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	lot, err := inventory.UpdateLotDetails(r.Context(), id, store.LotDetails{
		LotNumber: payload.LotNumber,
		ExpiresAt: payload.ExpiresAt,
		Location:  payload.Location,
		Active:    payload.Active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// DeleteLot deactivates the lot; its history stays.
func DeleteLot(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := inventory.DeactivateLot(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "lot deactivated", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func ConsumeLot(w http.ResponseWriter, r *http.Request) {
	moveLot(w, r, models.MovementSaida)
}

func ReceiveLot(w http.ResponseWriter, r *http.Request) {
	moveLot(w, r, models.MovementEntrada)
}

func moveLot(w http.ResponseWriter, r *http.Request, kind models.MovementType) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payload movementRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	req := store.MovementRequest{
		LotID:     id,
		Quantity:  payload.Quantity,
		UnitCode:  payload.UnitCode,
		Reason:    payload.Reason,
		Reference: payload.Reference,
	}
	ctx := r.Context()
	start := time.Now()

	var result store.MovementResult
	if kind == models.MovementSaida {
		result, err = inventory.ConsumeLot(ctx, req)
	} else {
		result, err = inventory.ReceiveLot(ctx, req)
	}
	collectors.TrackDBOperation(string(kind))(start)
	collectors.ObserveMovement(string(kind), err)
	if err != nil {
		if errors.Is(err, compounding.ErrInsufficientStock) {
			applog.Warn(ctx, "consumption rejected", "lot_id", id, "quantity", payload.Quantity, "unit", payload.UnitCode, "error", err)
		}
		writeError(w, r, err)
		return
	}

	applog.Info(ctx, "lot movement recorded",
		"type", kind,
		"lot_id", id,
		"quantity", payload.Quantity,
		"unit", result.Movement.UnitCode,
		"remaining", result.Lot.Quantity,
		"reference", result.Movement.Reference,
	)
	writeJSON(w, http.StatusOK, result)
}

// UploadCertificate accepts a multipart "file" holding a certificate of
// analysis and stores its text on the lot.
func UploadCertificate(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, certificateLimit+(1<<20))
	if err := r.ParseMultipartForm(certificateLimit); err != nil {
		applog.Debug(r.Context(), "failed to parse certificate upload", "error", err)
		writeError(w, r, compounding.Invalid("file", "upload is too large or not multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, compounding.Invalid("file", "is required"))
		return
	}
	defer file.Close()

	doc, err := certificate.FromUpload(file, header, certificateLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	lot, err := inventory.AttachCertificate(r.Context(), id, doc.Text, doc.LotNumber, doc.ExpiresAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "certificate attached", "lot_id", id, "file", doc.FileName, "lot_number", doc.LotNumber)
	writeJSON(w, http.StatusOK, certificateResponse{Lot: lot, Document: doc})
}

// LotMovements returns the movement history of one lot, newest first.
func LotMovements(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	movements, err := movementLedger.ForLot(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

// ListMovements returns ledger entries filtered by ativo_id (comma separated),
// type and since (RFC 3339).
func ListMovements(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	filter, err := movementFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	movements, err := movementLedger.Movements(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

// MovementTotals sums movements per ingredient, direction and unit.
func MovementTotals(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	filter, err := movementFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := movementLedger.Totals(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func movementFilter(r *http.Request) (ledger.Filter, error) {
	params := r.URL.Query()
	filter := ledger.Filter{Type: models.MovementType(strings.ToLower(strings.TrimSpace(params.Get("type"))))}

	if raw := strings.TrimSpace(params.Get("ativo_id")); raw != "" {
		ids, err := uintList(raw)
		if err != nil {
			return ledger.Filter{}, compounding.Invalid("ativo_id", "%v", err)
		}
		filter.AtivoIDs = ids
	}
	if raw := strings.TrimSpace(params.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ledger.Filter{}, compounding.Invalid("since", "must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}
	limit, err := limitParam(r)
	if err != nil {
		return ledger.Filter{}, err
	}
	filter.Limit = limit
	return filter, nil
}

func limitParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, compounding.Invalid("limit", "must be a non-negative integer")
	}
	return limit, nil
}
