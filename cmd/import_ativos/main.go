package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"compounder/internal/config"
	"compounder/internal/db"
	applog "compounder/internal/log"
	"compounder/internal/store"
	"compounder/models"
)

var (
	numberPattern   = regexp.MustCompile(`[-+]?\d*[.,]?\d+`)
	cleanWhitespace = regexp.MustCompile(`\s+`)
)

// Column headers understood by the importer. Only Nome is mandatory.
const (
	columnName        = "Nome"
	columnCAS         = "CAS"
	columnSupplier    = "Fornecedor"
	columnDescription = "Descrição"
	columnLot         = "Lote"
	columnQuantity    = "Quantidade"
	columnUnit        = "Unidade"
	columnExpiry      = "Validade"
	columnLocation    = "Local"
)

type summary struct {
	Created int
	Updated int
	Lots    int
	Skipped int
}

func main() {
	csvPath := "ativos.csv"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}

	if err := run(context.Background(), csvPath); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, csvPath string) error {
	if strings.TrimSpace(csvPath) == "" {
		return fmt.Errorf("csv path must not be empty")
	}

	if _, err := os.Stat(csvPath); err != nil {
		return fmt.Errorf("locate csv: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		applog.Warn(ctx, "failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	records, err := readCSV(csvPath)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	result, err := importRecords(ctx, store.New(database), records)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Imported %s: %d created, %d updated, %d lots, %d skipped\n",
		filepath.Base(csvPath), result.Created, result.Updated, result.Lots, result.Skipped)
	return nil
}

// importRecords upserts one ingredient per record, matching existing rows by
// name, and opens a lot when the record carries a quantity.
func importRecords(ctx context.Context, s *store.Store, records []map[string]string) (summary, error) {
	var result summary
	for idx, record := range records {
		candidate := buildAtivo(record)
		if candidate.Nome == "" {
			applog.Warn(ctx, "skipping record without name", "record", idx+1)
			result.Skipped++
			continue
		}

		ativo, created, err := upsertAtivo(ctx, s, candidate)
		if err != nil {
			return result, fmt.Errorf("record %d (%s): %w", idx+1, candidate.Nome, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}

		lot, ok, err := buildLot(record)
		if err != nil {
			return result, fmt.Errorf("record %d (%s): %w", idx+1, candidate.Nome, err)
		}
		if !ok {
			continue
		}
		exists, err := lotExists(ctx, s.DB(), ativo.ID, lot.LotNumber)
		if err != nil {
			return result, fmt.Errorf("record %d (%s): %w", idx+1, candidate.Nome, err)
		}
		if exists {
			applog.Debug(ctx, "lot already imported", "ativo", ativo.Nome, "lot_number", lot.LotNumber)
			continue
		}

		lot.AtivoID = ativo.ID
		if _, err := s.CreateLot(ctx, lot); err != nil {
			return result, fmt.Errorf("record %d (%s): create lot: %w", idx+1, candidate.Nome, err)
		}
		result.Lots++
	}
	return result, nil
}

func upsertAtivo(ctx context.Context, s *store.Store, candidate models.Ativo) (models.Ativo, bool, error) {
	var existing models.Ativo
	err := s.DB().WithContext(ctx).Where("LOWER(nome) = ?", strings.ToLower(candidate.Nome)).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		created, err := s.CreateAtivo(ctx, candidate)
		return created, true, err
	case err != nil:
		return models.Ativo{}, false, fmt.Errorf("find ativo %q: %w", candidate.Nome, err)
	}

	merged := existing
	if candidate.CASNumber != "" {
		merged.CASNumber = candidate.CASNumber
	}
	if candidate.Supplier != "" {
		merged.Supplier = candidate.Supplier
	}
	if candidate.Description != "" {
		merged.Description = candidate.Description
	}
	updated, err := s.UpdateAtivo(ctx, existing.ID, merged)
	return updated, false, err
}

func lotExists(ctx context.Context, database *gorm.DB, ativoID uint, lotNumber string) (bool, error) {
	if lotNumber == "" {
		return false, nil
	}
	var count int64
	err := database.WithContext(ctx).Model(&models.InventoryLot{}).
		Where("ativo_id = ? AND lot_number = ?", ativoID, lotNumber).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("find lot %q: %w", lotNumber, err)
	}
	return count > 0, nil
}

func readCSV(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}

	header := rows[0]
	for idx := range header {
		header[idx] = strings.TrimSpace(strings.TrimPrefix(header[idx], "\ufeff"))
	}
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}

		record := make(map[string]string, len(header))
		for idx, key := range header {
			if idx >= len(row) {
				continue
			}
			record[key] = strings.TrimSpace(row[idx])
		}
		records = append(records, record)
	}

	return records, nil
}

func buildAtivo(row map[string]string) models.Ativo {
	return models.Ativo{
		Nome:        normalizeText(row[columnName]),
		CASNumber:   normalizeValue(row[columnCAS]),
		Supplier:    normalizeText(row[columnSupplier]),
		Description: normalizeText(row[columnDescription]),
	}
}

// buildLot reports false when the record carries no stock.
func buildLot(row map[string]string) (models.InventoryLot, bool, error) {
	quantity := parseFirstNumber(row[columnQuantity])
	unit := normalizeValue(row[columnUnit])
	if quantity <= 0 {
		return models.InventoryLot{}, false, nil
	}
	if unit == "" {
		return models.InventoryLot{}, false, fmt.Errorf("quantity %v has no unit", quantity)
	}

	lot := models.InventoryLot{
		Quantity:  quantity,
		UnitCode:  unit,
		LotNumber: normalizeValue(row[columnLot]),
		Location:  normalizeText(row[columnLocation]),
		Active:    true,
	}
	if expiry := normalizeValue(row[columnExpiry]); expiry != "" {
		parsed, err := parseDate(expiry)
		if err != nil {
			return models.InventoryLot{}, false, err
		}
		lot.ExpiresAt = &parsed
	}
	return lot, true, nil
}

func normalizeValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") || value == "-" {
		return ""
	}
	return value
}

func normalizeText(value string) string {
	value = normalizeValue(value)
	if value == "" {
		return value
	}
	value = cleanWhitespace.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// parseFirstNumber accepts both decimal separators.
func parseFirstNumber(value string) float64 {
	value = normalizeValue(value)
	if value == "" {
		return 0
	}

	match := numberPattern.FindString(value)
	if match == "" {
		return 0
	}

	parsed, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2/1/2006"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised expiry date %q", value)
}
