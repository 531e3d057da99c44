// Package importer reads supplier price sheets and books them into the
// ingredient ledger. A row names an ingredient, a quantity in grams and the
// total cost of that quantity. Known ingredients are topped up, unknown
// ones are created.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"formulary/internal/apperr"
	applog "formulary/internal/log"
	"formulary/models"
)

var (
	numberPattern   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	cleanWhitespace = regexp.MustCompile(`\s+`)
)

// Row is one purchase line of a price sheet.
type Row struct {
	Name     string
	Quantity float64
	Cost     float64
}

// Ledger is the part of the ingredient ledger an import needs.
type Ledger interface {
	FindByName(ctx context.Context, name string) (*models.Ingredient, error)
	Create(ctx context.Context, name string, stock, totalCost float64) (*models.Ingredient, error)
	TopUp(ctx context.Context, id uint, quantity, cost float64) (*models.Ingredient, error)
}

// Report summarizes an import.
type Report struct {
	Created  int
	ToppedUp int
	Failed   []string
}

var headerAliases = map[string]string{
	"name":       "name",
	"ingredient": "name",
	"material":   "name",
	"quantity":   "quantity",
	"qty":        "quantity",
	"grams":      "quantity",
	"stock":      "quantity",
	"cost":       "cost",
	"total cost": "cost",
	"price":      "cost",
	"total":      "cost",
}

// ParseCSV reads rows from a CSV with a header naming the ingredient,
// quantity and cost columns.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("csv is empty")
	}

	columns := map[string]int{}
	for idx, key := range records[0] {
		if field, ok := headerAliases[strings.ToLower(strings.TrimSpace(key))]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = idx
			}
		}
	}
	for _, field := range []string{"name", "quantity", "cost"} {
		if _, ok := columns[field]; !ok {
			return nil, fmt.Errorf("csv header has no %s column", field)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for line, record := range records[1:] {
		get := func(field string) string {
			if idx := columns[field]; idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}
		name := normalizeName(get("name"))
		if name == "" {
			continue
		}
		quantity, err := parseNumber(get("quantity"))
		if err != nil {
			return nil, fmt.Errorf("line %d: quantity: %w", line+2, err)
		}
		cost, err := parseNumber(get("cost"))
		if err != nil {
			return nil, fmt.Errorf("line %d: cost: %w", line+2, err)
		}
		rows = append(rows, Row{Name: name, Quantity: quantity, Cost: cost})
	}
	return rows, nil
}

// ParseText reads rows from free text, one purchase per line, where the
// last two numbers of a line are its quantity and cost and the text before
// the first number is the name. Lines without both numbers are skipped.
func ParseText(text string) []Row {
	var rows []Row
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		locs := numberPattern.FindAllStringIndex(line, -1)
		if len(locs) < 2 {
			continue
		}
		name := normalizeName(strings.Trim(line[:locs[0][0]], " \t-:;|$"))
		if name == "" {
			continue
		}
		quantity, err := parseNumber(line[locs[len(locs)-2][0]:locs[len(locs)-2][1]])
		if err != nil {
			continue
		}
		cost, err := parseNumber(line[locs[len(locs)-1][0]:locs[len(locs)-1][1]])
		if err != nil {
			continue
		}
		rows = append(rows, Row{Name: name, Quantity: quantity, Cost: cost})
	}
	return rows
}

// ParsePDF extracts the text of every page and reads it with ParseText.
func ParsePDF(data []byte) ([]Row, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, text := range row.Content {
				words = append(words, text.S)
			}
			builder.WriteString(strings.Join(words, " "))
			builder.WriteString("\n")
		}
	}
	return ParseText(builder.String()), nil
}

// ParseFile picks a parser from the file extension.
func ParseFile(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(bytes.NewReader(data))
	case ".pdf":
		return ParsePDF(data)
	default:
		return ParseText(string(data)), nil
	}
}

// Apply books rows into ledger. A failing row is reported and the import
// continues; storage failures stop it.
func Apply(ctx context.Context, ledger Ledger, rows []Row) (Report, error) {
	var report Report
	for _, row := range rows {
		existing, err := ledger.FindByName(ctx, row.Name)
		switch {
		case err == nil:
			_, err = ledger.TopUp(ctx, existing.ID, row.Quantity, row.Cost)
			if err == nil {
				report.ToppedUp++
			}
		case errors.Is(err, apperr.ErrNotFound):
			_, err = ledger.Create(ctx, row.Name, row.Quantity, row.Cost)
			if err == nil {
				report.Created++
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, apperr.ErrStorage) {
			return report, fmt.Errorf("import %q: %w", row.Name, err)
		}
		applog.Warn(ctx, "skipping import row", "name", row.Name, "error", err)
		report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", row.Name, err))
	}
	applog.Info(ctx, "ingredient import finished", "created", report.Created, "topped_up", report.ToppedUp, "failed", len(report.Failed))
	return report, nil
}

func normalizeName(value string) string {
	return strings.TrimSpace(cleanWhitespace.ReplaceAllString(value, " "))
}

// parseNumber accepts a decimal point or a decimal comma.
func parseNumber(value string) (float64, error) {
	value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "$"))
	if value == "" {
		return 0, errors.New("missing value")
	}
	return strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
}
