package handlers

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"compounder/internal/compounding"
	applog "compounder/internal/log"
	"compounder/models"
)

func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &compounding.NotFoundError{Resource: resource, ID: id}
	}
	return compounding.Storage("load "+resource, err)
}

type formRequest struct {
	Name string `json:"name"`
}

// ListForms returns the pharmaceutical forms in name order.
func ListForms(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	forms := []models.PharmaceuticalForm{}
	if err := database.WithContext(r.Context()).Order("name asc").Find(&forms).Error; err != nil {
		writeError(w, r, compounding.Storage("list forms", err))
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

func CreateForm(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	var payload formRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		writeError(w, r, compounding.Invalid("name", "is required"))
		return
	}

	ctx := r.Context()
	var count int64
	if err := database.WithContext(ctx).Model(&models.PharmaceuticalForm{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count).Error; err != nil {
		writeError(w, r, compounding.Storage("load form", err))
		return
	}
	if count > 0 {
		writeError(w, r, &compounding.ConflictError{Message: "pharmaceutical form " + name + " already exists"})
		return
	}

	form := models.PharmaceuticalForm{Name: name}
	if err := database.WithContext(ctx).Create(&form).Error; err != nil {
		writeError(w, r, compounding.Storage("create form", err))
		return
	}
	applog.Info(ctx, "pharmaceutical form created", "id", form.ID, "name", form.Name)
	writeJSON(w, http.StatusCreated, form)
}

type ativoRequest struct {
	Nome        string `json:"nome"`
	CASNumber   string `json:"cas_number"`
	Description string `json:"description"`
	Supplier    string `json:"supplier"`
}

func (p ativoRequest) model() models.Ativo {
	return models.Ativo{Nome: p.Nome, CASNumber: p.CASNumber, Description: p.Description, Supplier: p.Supplier}
}

// ListAtivos returns the ingredients, optionally filtered by a name fragment.
func ListAtivos(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	query := database.WithContext(r.Context()).Order("nome asc")
	if term := strings.TrimSpace(r.URL.Query().Get("q")); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(nome) LIKE ? OR cas_number LIKE ?", like, like)
	}

	ativos := []models.Ativo{}
	if err := query.Find(&ativos).Error; err != nil {
		writeError(w, r, compounding.Storage("list ativos", err))
		return
	}
	writeJSON(w, http.StatusOK, ativos)
}

// ShowAtivo returns one ingredient with its active lots.
func ShowAtivo(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var ativo models.Ativo
	if err := database.WithContext(r.Context()).
		Preload("Lots", "active = ?", true).
		First(&ativo, id).Error; err != nil {
		writeError(w, r, notFoundOr(err, "ativo", id))
		return
	}
	writeJSON(w, http.StatusOK, ativo)
}

func CreateAtivo(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	var payload ativoRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	ativo, err := inventory.CreateAtivo(r.Context(), payload.model())
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "ativo created", "id", ativo.ID, "nome", ativo.Nome)
	writeJSON(w, http.StatusCreated, ativo)
}

func UpdateAtivo(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payload ativoRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	ativo, err := inventory.UpdateAtivo(r.Context(), id, payload.model())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ativo)
}

func DeleteAtivo(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := inventory.DeleteAtivo(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
