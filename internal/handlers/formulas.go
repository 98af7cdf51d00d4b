package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	applog "compounder/internal/log"
	"compounder/models"
)

const msgpackContentType = "application/msgpack"

type formulaRequest struct {
	Name                   string                `json:"name"`
	FormID                 *uint                 `json:"form_id"`
	DoseAmount             float64               `json:"dose_amount"`
	DoseUnitCode           string                `json:"dose_unit_code"`
	DoseFrequency          string                `json:"dose_frequency"`
	OutputUnitCode         string                `json:"output_unit_code"`
	OutputQuantityPerBatch float64               `json:"output_quantity_per_batch"`
	Price                  float64               `json:"price"`
	Notes                  string                `json:"notes"`
	Active                 *bool                 `json:"active"`
	Items                  *[]models.FormulaItem `json:"items"`
}

func (p formulaRequest) model() models.Formula {
	formula := models.Formula{
		Name:                   p.Name,
		FormID:                 p.FormID,
		DoseAmount:             p.DoseAmount,
		DoseUnitCode:           p.DoseUnitCode,
		DoseFrequency:          p.DoseFrequency,
		OutputUnitCode:         p.OutputUnitCode,
		OutputQuantityPerBatch: p.OutputQuantityPerBatch,
		Price:                  p.Price,
		Notes:                  p.Notes,
		Active:                 true,
	}
	if p.Active != nil {
		formula.Active = *p.Active
	}
	if p.Items != nil {
		formula.Items = *p.Items
	}
	return formula
}

type itemsRequest struct {
	Items []models.FormulaItem `json:"items"`
}

func ListFormulas(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	formulas, err := inventory.ListFormulas(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if formulas == nil {
		formulas = []models.Formula{}
	}
	writeJSON(w, http.StatusOK, formulas)
}

func ShowFormula(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	formula, err := inventory.GetFormula(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formula)
}

// CreateFormula stores a formula and, when present, its items.
func CreateFormula(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	var payload formulaRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	formula, err := inventory.CreateFormula(r.Context(), payload.model())
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "formula created", "id", formula.ID, "items", len(formula.Items))
	writeJSON(w, http.StatusCreated, formula)
}

// UpdateFormula overwrites the header. The item collection is replaced only
// when the payload carries an "items" key.
func UpdateFormula(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payload formulaRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	formula, err := inventory.UpdateFormula(r.Context(), id, payload.model(), payload.Items != nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formula)
}

func DeleteFormula(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := inventory.DeleteFormula(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "formula deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func ListFormulaItems(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := inventory.ListFormulaItems(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.FormulaItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// ReplaceFormulaItems swaps the whole item collection. Either every item is
// accepted or none is.
func ReplaceFormulaItems(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var payload itemsRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := inventory.ReplaceFormulaItems(r.Context(), id, payload.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.FormulaItem{}
	}
	applog.Info(r.Context(), "formula items replaced", "formula_id", id, "items", len(items))
	writeJSON(w, http.StatusOK, items)
}

// FormulaAvailability reports how many units of a formula current stock can
// produce. Clients sending Accept: application/msgpack get a msgpack body.
func FormulaAvailability(w http.ResponseWriter, r *http.Request) {
	if !requireDatabase(w, r) {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	report, err := inventory.LoadAvailability(r.Context(), id)
	collectors.ObserveEstimate(start, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.Debug(r.Context(), "availability computed", "formula_id", id, "producible_units", report.ProducibleUnits)

	if wantsMsgpack(r) {
		body, err := msgpack.Marshal(report)
		if err != nil {
			applog.Error(r.Context(), "failed to encode msgpack response", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set("Content-Type", msgpackContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func wantsMsgpack(r *http.Request) bool {
	for _, accepted := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType := strings.TrimSpace(strings.SplitN(accepted, ";", 2)[0])
		if strings.EqualFold(mediaType, msgpackContentType) || strings.EqualFold(mediaType, "application/x-msgpack") {
			return true
		}
	}
	return false
}
