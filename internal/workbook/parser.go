package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"pembukuan/internal/core"
)

// ErrNoValidData means the workbook contained no sheet that yielded at least
// one transaction. Individual skipped sheets are warnings, not failures.
var ErrNoValidData = errors.New("no valid account sheets found")

// sheetRows is one sheet's raw content, read sequentially before the
// per-sheet conversion fans out.
type sheetRows struct {
	name string
	rows [][]string
}

// Parse converts workbook bytes into an ordered list of accounts, one per
// sheet that matches the expected header layout. Sheets missing a required
// column are skipped with a warning. Transactions come back normalized with
// derived amounts; running balances are left to the aggregator.
func Parse(data []byte) ([]core.Account, error) {
	f, err := excelizeOpen(data)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, ErrNoValidData
	}

	// Cell reads go through the shared file handle, so they stay
	// sequential; row conversion below is pure and fans out.
	sheets := make([]sheetRows, 0, len(sheetNames))
	for _, name := range sheetNames {
		rows, err := f.GetRows(name)
		if err != nil {
			slog.Warn("Skipping unreadable sheet", "sheet", name, "error", err)
			continue
		}
		sheets = append(sheets, sheetRows{name: name, rows: rows})
	}

	results := make([]*core.Account, len(sheets))
	var g errgroup.Group
	for i, sheet := range sheets {
		g.Go(func() error {
			results[i] = convertSheet(sheet)
			return nil
		})
	}
	_ = g.Wait()

	var accounts []core.Account
	total := 0
	for _, acc := range results {
		if acc == nil {
			continue
		}
		accounts = append(accounts, *acc)
		total += len(acc.Transactions)
	}
	if total == 0 {
		return nil, ErrNoValidData
	}
	return accounts, nil
}

// convertSheet turns one sheet into an account, or nil if the sheet is
// empty or its header does not match.
func convertSheet(sheet sheetRows) *core.Account {
	if len(sheet.rows) == 0 {
		slog.Warn("Skipping empty sheet", "sheet", sheet.name)
		return nil
	}
	schema, err := DiscoverSchema(sheet.rows[0])
	if err != nil {
		slog.Warn("Skipping sheet without required columns", "sheet", sheet.name, "error", err)
		return nil
	}

	var raws []core.RawTransaction
	fallbackDates := 0
	for _, row := range sheet.rows[1:] {
		raw, ok := convertRow(schema, row, &fallbackDates)
		if !ok {
			continue
		}
		raws = append(raws, raw)
	}
	if fallbackDates > 0 {
		slog.Warn("Unparseable dates defaulted to today",
			"sheet", sheet.name, "rows", fallbackDates)
	}

	acc := core.NormalizeAccount(sheet.name, raws)
	return &acc
}

// convertRow maps one data row onto a raw transaction. Entirely empty rows
// are dropped; everything else yields a record, however partial.
func convertRow(schema Schema, row []string, fallbackDates *int) (core.RawTransaction, bool) {
	empty := true
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			empty = false
			break
		}
	}
	if empty {
		return core.RawTransaction{}, false
	}

	income := make(map[string]any)
	expense := make(map[string]any)
	for _, col := range schema.IncomeCols {
		if v, ok := numericCell(row, col.Index); ok && v != 0 {
			income[col.Category] = v
		}
	}
	for _, col := range schema.ExpenseCols {
		if v, ok := numericCell(row, col.Index); ok && v != 0 {
			expense[col.Category] = v
		}
	}

	raw := core.RawTransaction{
		Date:        dateCell(row, schema.DateCol, fallbackDates),
		Description: textCell(row, schema.DescCol),
		Income:      income,
		Expense:     expense,
		// Net amount column is deliberately not carried over: the
		// normalizer rederives it from the category maps.
	}
	return raw, true
}

func textCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// numericCell reads a cell as a number. Missing, blank, and non-numeric
// cells report !ok, which callers treat as "category does not apply".
func numericCell(row []string, idx int) (float64, bool) {
	s := textCell(row, idx)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// dateCell resolves a date cell to an ISO string. Cells may hold an ISO or
// otherwise parseable date string, or a spreadsheet serial day count. Any
// unresolvable value returns "" so normalization falls back to today; the
// fallback is counted for the per-sheet warning.
func dateCell(row []string, idx int, fallbackDates *int) string {
	s := textCell(row, idx)
	if s == "" {
		*fallbackDates++
		return ""
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if d, ok := serialDate(serial); ok {
			return d.String()
		}
		*fallbackDates++
		return ""
	}
	if d, err := core.ParseDate(s); err == nil {
		return d.String()
	}
	*fallbackDates++
	return ""
}

// Spreadsheet serials count days from the conventional 1899-12-30 epoch.
// Serials below 60 predate the phantom 1900-02-29 that the epoch bakes in,
// so they need a one-day correction.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const maxSerial = 2958465 // 9999-12-31

func serialDate(serial float64) (core.Date, bool) {
	days := int(serial)
	if days <= 0 || days > maxSerial {
		return core.Date{}, false
	}
	if days < 60 {
		days++
	}
	t := serialEpoch.AddDate(0, 0, days)
	return core.NewDate(t.Year(), int(t.Month()), t.Day()), true
}

func excelizeOpen(data []byte) (*excelize.File, error) {
	return excelize.OpenReader(bytes.NewReader(data))
}
