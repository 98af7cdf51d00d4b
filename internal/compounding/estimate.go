package compounding

import (
	"math"
	"sort"
	"strings"

	"compounder/models"
)

// Limiting identifies the ingredient that bounds production. Quantities are
// expressed in the unit the formula item requires.
type Limiting struct {
	IngredientID       uint    `json:"ingredientId" msgpack:"ingredientId"`
	RequiredPerUnit    float64 `json:"requiredPerUnit" msgpack:"requiredPerUnit"`
	AvailableConverted float64 `json:"availableConverted" msgpack:"availableConverted"`
}

// MissingIngredient is an ativo item whose ingredient has no compatible stock.
type MissingIngredient struct {
	IngredientID uint   `json:"ingredientId" msgpack:"ingredientId"`
	Name         string `json:"name" msgpack:"name"`
}

// ItemAvailability is the per-item breakdown of an estimate.
type ItemAvailability struct {
	IngredientID       uint    `json:"ingredientId" msgpack:"ingredientId"`
	Name               string  `json:"name" msgpack:"name"`
	RequiredPerUnit    float64 `json:"requiredPerUnit" msgpack:"requiredPerUnit"`
	UnitCode           string  `json:"unitCode" msgpack:"unitCode"`
	AvailableConverted float64 `json:"availableConverted" msgpack:"availableConverted"`
	ProducibleUnits    int64   `json:"producibleUnits" msgpack:"producibleUnits"`
}

// AvailabilityReport is the read-side projection of what a formula can yield
// from current stock.
type AvailabilityReport struct {
	FormulaID        uint                           `json:"formulaId" msgpack:"formulaId"`
	ProducibleUnits  int64                          `json:"producibleUnits" msgpack:"producibleUnits"`
	Limiting         *Limiting                      `json:"limiting" msgpack:"limiting"`
	Missing          []MissingIngredient            `json:"missing" msgpack:"missing"`
	Items            []ItemAvailability             `json:"items" msgpack:"items"`
	LotsByIngredient map[uint][]models.InventoryLot `json:"lotsByIngredient" msgpack:"lotsByIngredient"`
}

// EstimateProducible computes how many finished units of formula the given
// lots can yield. Only ativo items with an ingredient reference constrain the
// result; lots that are inactive, use an unknown unit, or whose unit kind
// differs from the item's are left out of the sums. Items are evaluated in
// ascending id order and the first item reaching the minimum stays limiting.
//
// The function does not modify its arguments.
func EstimateProducible(formula models.Formula, items []models.FormulaItem, lotsByIngredient map[uint][]models.InventoryLot, units map[string]models.Unit) (AvailabilityReport, error) {
	report := AvailabilityReport{
		FormulaID:        formula.ID,
		Missing:          []MissingIngredient{},
		Items:            []ItemAvailability{},
		LotsByIngredient: map[uint][]models.InventoryLot{},
	}

	ordered := make([]models.FormulaItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	producible := math.Inf(1)
	missingSeen := make(map[uint]bool)

	for _, item := range ordered {
		if !item.Tipo.ConstrainsProduction() || item.AtivoID == nil {
			continue
		}
		ingredientID := *item.AtivoID

		required, err := ResolveUnit(units, item.UnitCode)
		if err != nil {
			return AvailabilityReport{}, err
		}
		if item.Quantity <= 0 {
			return AvailabilityReport{}, Invalid("quantity", "item %d must require a positive quantity", item.ID)
		}
		requiredBase := ConvertToBase(item.Quantity, required)

		lots := activeLots(lotsByIngredient[ingredientID])
		report.LotsByIngredient[ingredientID] = lots

		availableBase := 0.0
		for _, lot := range lots {
			lotUnit, ok := units[lot.UnitCode]
			if !ok || !SameKind(lotUnit, required) {
				continue
			}
			availableBase += ConvertToBase(lot.Quantity, lotUnit)
		}

		unitsForIngredient := availableBase / requiredBase
		availableConverted := availableBase / required.FactorToBase
		name := ingredientName(item)

		report.Items = append(report.Items, ItemAvailability{
			IngredientID:       ingredientID,
			Name:               name,
			RequiredPerUnit:    item.Quantity,
			UnitCode:           required.Code,
			AvailableConverted: availableConverted,
			ProducibleUnits:    floorUnits(unitsForIngredient),
		})

		if availableBase <= 0 && !missingSeen[ingredientID] {
			missingSeen[ingredientID] = true
			report.Missing = append(report.Missing, MissingIngredient{IngredientID: ingredientID, Name: name})
		}

		if unitsForIngredient < producible {
			producible = unitsForIngredient
			report.Limiting = &Limiting{
				IngredientID:       ingredientID,
				RequiredPerUnit:    item.Quantity,
				AvailableConverted: availableConverted,
			}
		}
	}

	report.ProducibleUnits = floorUnits(producible)
	return report, nil
}

func activeLots(lots []models.InventoryLot) []models.InventoryLot {
	active := make([]models.InventoryLot, 0, len(lots))
	for _, lot := range lots {
		if lot.Active {
			active = append(active, lot)
		}
	}
	return active
}

func ingredientName(item models.FormulaItem) string {
	if item.Ativo != nil && strings.TrimSpace(item.Ativo.Nome) != "" {
		return strings.TrimSpace(item.Ativo.Nome)
	}
	return strings.TrimSpace(item.InsumoNome)
}

// floorUnits floors a unit count. No constraint at all (+Inf) reports zero;
// counts beyond int64 saturate at math.MaxInt64.
func floorUnits(value float64) int64 {
	if math.IsInf(value, 0) || math.IsNaN(value) || value <= 0 {
		return 0
	}
	floored := math.Floor(value + Epsilon)
	if floored >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(floored)
}
