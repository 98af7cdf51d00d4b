package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"compounder/internal/compounding"
	applog "compounder/internal/log"
	"compounder/models"
)

type unitRequest struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	FactorToBase float64 `json:"factor_to_base"`
}

func (p unitRequest) model() models.Unit {
	return models.Unit{Code: p.Code, Name: p.Name, Kind: p.Kind, FactorToBase: p.FactorToBase}
}

// ListUnits returns every unit ordered by kind and factor.
func ListUnits(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	query := database.WithContext(r.Context()).Order("kind asc, factor_to_base asc, code asc")
	if kind := strings.TrimSpace(r.URL.Query().Get("kind")); kind != "" {
		query = query.Where("kind = ?", strings.ToLower(kind))
	}

	units := []models.Unit{}
	if err := query.Find(&units).Error; err != nil {
		writeError(w, r, compounding.Storage("list units", err))
		return
	}
	writeJSON(w, http.StatusOK, units)
}

func ShowUnit(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	var unit models.Unit
	if err := database.WithContext(r.Context()).Where("code = ?", code).First(&unit).Error; err != nil {
		writeError(w, r, notFoundOr(err, "unit", code))
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func CreateUnit(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	var payload unitRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	unit, err := inventory.CreateUnit(r.Context(), payload.model())
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "unit created", "code", unit.Code, "kind", unit.Kind)
	writeJSON(w, http.StatusCreated, unit)
}

// UpdateUnit changes a unit's name, kind or factor. Stored quantities are not
// rewritten, so changing a factor changes what existing stock is worth.
func UpdateUnit(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	var payload unitRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	unit, err := inventory.UpdateUnit(r.Context(), chi.URLParam(r, "code"), payload.model())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func DeleteUnit(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	if err := inventory.DeleteUnit(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
