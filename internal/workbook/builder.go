package workbook

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"pembukuan/internal/core"
	"pembukuan/internal/report"
)

// Column widths matching the original template layout.
const (
	widthDate        = 12.0
	widthDescription = 40.0
	widthNetAmount   = 15.0
	widthCategory    = 18.0
)

// currencyFormat shows positives plain and negatives parenthesized.
const currencyFormat = `#,##0_);(#,##0)`

// sheetStyles holds the style IDs registered once per output file.
type sheetStyles struct {
	headerDefault int
	headerIncome  int
	headerExpense int
	number        int
	text          int
}

// Build serializes accounts into workbook bytes: one styled sheet per
// account, columns ordered date, description, sorted income categories,
// sorted expense categories, net amount, running balance. Rows are emitted
// in chronological order with running balances recomputed; derived input
// fields are ignored. An account without transactions gets a placeholder
// sheet, and an empty account list yields a single placeholder workbook.
func Build(accounts []core.Account) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := registerStyles(f)
	if err != nil {
		return nil, fmt.Errorf("register styles: %w", err)
	}

	// The first sheet reuses the default one excelize creates. Renaming
	// instead of deleting keeps an account that is itself named "Sheet1"
	// intact.
	written := 0
	for _, acc := range accounts {
		name := sheetName(acc.Name)
		if err := claimSheet(f, name, written == 0); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		if len(acc.Transactions) == 0 {
			writePlaceholder(f, name, "No transactions for "+acc.Name)
			written++
			continue
		}
		if err := writeAccountSheet(f, name, acc, styles); err != nil {
			return nil, fmt.Errorf("write sheet %q: %w", name, err)
		}
		written++
	}
	if written == 0 {
		if err := claimSheet(f, "Data", true); err != nil {
			return nil, fmt.Errorf("create placeholder sheet: %w", err)
		}
		writePlaceholder(f, "Data", "No valid data to export")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// claimSheet makes a sheet with the given name available: the first sheet
// takes over the workbook's default sheet, the rest are created fresh.
func claimSheet(f *excelize.File, name string, first bool) error {
	if first {
		if name == "Sheet1" {
			return nil
		}
		return f.SetSheetName("Sheet1", name)
	}
	_, err := f.NewSheet(name)
	return err
}

func registerStyles(f *excelize.File) (sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}
	headerFill := func(color string) *excelize.Style {
		return &excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Font:   &excelize.Font{Bold: true},
			Border: border,
		}
	}

	var s sheetStyles
	var err error
	if s.headerDefault, err = f.NewStyle(headerFill("FFFFFF")); err != nil {
		return s, err
	}
	if s.headerIncome, err = f.NewStyle(headerFill("E6F7E6")); err != nil {
		return s, err
	}
	if s.headerExpense, err = f.NewStyle(headerFill("FFE6E6")); err != nil {
		return s, err
	}
	numFmt := currencyFormat
	if s.number, err = f.NewStyle(&excelize.Style{Border: border, CustomNumFmt: &numFmt}); err != nil {
		return s, err
	}
	if s.text, err = f.NewStyle(&excelize.Style{Border: border}); err != nil {
		return s, err
	}
	return s, nil
}

func writeAccountSheet(f *excelize.File, sheet string, acc core.Account, styles sheetStyles) error {
	incomeCats, expenseCats := categoryUnion(acc.Transactions)

	headers := []string{HeaderDate, HeaderDescription}
	for _, c := range incomeCats {
		headers = append(headers, IncomePrefix+c)
	}
	for _, c := range expenseCats {
		headers = append(headers, ExpensePrefix+c)
	}
	headers = append(headers, HeaderNetAmount, HeaderRunningBalance)

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}

	// Chronological order with fresh running balances.
	txs := report.WithRunningBalances(acc.Transactions)
	for rowIdx, tx := range txs {
		row := make([]interface{}, 0, len(headers))
		row = append(row, tx.Date.String(), tx.Description)
		for _, c := range incomeCats {
			row = append(row, categoryCell(tx.Income, c))
		}
		for _, c := range expenseCats {
			row = append(row, categoryCell(tx.Expense, c))
		}
		row = append(row, tx.Amount, tx.RunningBalance)
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return decorateSheet(f, sheet, headers, len(txs), styles)
}

// decorateSheet applies the template's presentation: colored bold headers,
// borders, currency format, column widths, frozen header row, autofilter.
func decorateSheet(f *excelize.File, sheet string, headers []string, dataRows int, styles sheetStyles) error {
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}

	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		headerStyle := styles.headerDefault
		width := widthCategory
		switch {
		case h == HeaderDate:
			width = widthDate
		case h == HeaderDescription:
			width = widthDescription
		case h == HeaderNetAmount:
			width = widthNetAmount
		case len(h) > len(IncomePrefix) && h[:len(IncomePrefix)] == IncomePrefix:
			headerStyle = styles.headerIncome
		case len(h) > len(ExpensePrefix) && h[:len(ExpensePrefix)] == ExpensePrefix:
			headerStyle = styles.headerExpense
		}
		if err := f.SetCellStyle(sheet, col+"1", col+"1", headerStyle); err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
		if dataRows > 0 {
			bodyStyle := styles.number
			if h == HeaderDate || h == HeaderDescription {
				bodyStyle = styles.text
			}
			last := fmt.Sprintf("%s%d", col, dataRows+1)
			if err := f.SetCellStyle(sheet, col+"2", last, bodyStyle); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.AutoFilter(sheet, fmt.Sprintf("A1:%s1", lastCol), nil)
}

func writePlaceholder(f *excelize.File, sheet, message string) {
	_ = f.SetCellValue(sheet, "A1", "Message")
	_ = f.SetCellValue(sheet, "A2", message)
}

// categoryUnion collects the sorted set of income and expense categories
// used anywhere in the transaction list.
func categoryUnion(txs []core.Transaction) (income, expense []string) {
	incomeSet := make(map[string]struct{})
	expenseSet := make(map[string]struct{})
	for _, tx := range txs {
		for c := range tx.Income {
			incomeSet[c] = struct{}{}
		}
		for c := range tx.Expense {
			expenseSet[c] = struct{}{}
		}
	}
	for c := range incomeSet {
		income = append(income, c)
	}
	for c := range expenseSet {
		expense = append(expense, c)
	}
	sort.Strings(income)
	sort.Strings(expense)
	return income, expense
}

// categoryCell returns the value to write for one category column; absent
// categories stay blank rather than zero.
func categoryCell(m map[string]float64, category string) interface{} {
	if v, ok := m[category]; ok && v != 0 {
		return v
	}
	return nil
}

// sheetName truncates to the spreadsheet 31-character sheet name limit.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
