package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"compounder/internal/compounding"
	"compounder/internal/ledger"
	applog "compounder/internal/log"
	"compounder/internal/metrics"
	"compounder/internal/store"
)

const defaultCertificateLimit = 10 << 20

var (
	database         *gorm.DB
	inventory        *store.Store
	movementLedger   *ledger.Ledger
	collectors       *metrics.Metrics
	certificateLimit int64 = defaultCertificateLimit
)

// Dependencies are the shared collaborators of the HTTP handlers.
type Dependencies struct {
	Database         *gorm.DB
	Metrics          *metrics.Metrics
	CertificateLimit int64
}

// Configure installs the shared dependencies used by the HTTP handlers. A nil
// database resets the package to its unconfigured state.
func Configure(deps Dependencies) error {
	database = deps.Database
	collectors = deps.Metrics
	certificateLimit = deps.CertificateLimit
	if certificateLimit <= 0 {
		certificateLimit = defaultCertificateLimit
	}

	if database == nil {
		inventory = nil
		movementLedger = nil
		return nil
	}

	l, err := ledger.New(database)
	if err != nil {
		return fmt.Errorf("configure ledger: %w", err)
	}
	inventory = store.New(database)
	movementLedger = l
	return nil
}

// requireDatabase answers 503 when the handlers were never configured.
func requireDatabase(w http.ResponseWriter, r *http.Request) bool {
	if database == nil || inventory == nil {
		applog.Debug(r.Context(), "request without database", "path", r.URL.Path)
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type validationResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type insufficientStockResponse struct {
	Error     string  `json:"error"`
	LotID     uint    `json:"lot_id"`
	Available float64 `json:"available"`
	UnitCode  string  `json:"unit_code"`
	Requested float64 `json:"requested"`
}

// writeError maps the error kinds of the compounding package onto HTTP
// statuses. Anything unrecognised is logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *compounding.ValidationError
		insufficient *compounding.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: validation.Error(), Field: validation.Field})
	case errors.Is(err, compounding.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, compounding.ErrIncompatibleUnits):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, insufficientStockResponse{
			Error:     err.Error(),
			LotID:     insufficient.LotID,
			Available: insufficient.Available,
			UnitCode:  insufficient.UnitCode,
			Requested: insufficient.Requested,
		})
	case errors.Is(err, compounding.ErrConflict):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		applog.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads the request body into dst. Decoding failures become
// validation errors.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return compounding.Invalid("body", "invalid json payload: %v", err)
	}
	return nil
}

func idParam(r *http.Request, name string) (uint, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, compounding.Invalid(name, "invalid identifier %q", raw)
	}
	return uint(value), nil
}

func uintList(raw string) ([]uint, error) {
	var values []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		values = append(values, uint(value))
	}
	return values, nil
}
