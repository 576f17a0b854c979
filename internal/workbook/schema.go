// Package workbook converts between spreadsheet bytes and canonical account
// ledgers. Sheets are matched by header: three required columns plus any
// number of dynamic income/expense category columns.
package workbook

import (
	"fmt"
	"strings"
)

// Required headers and dynamic column prefixes, matched case-insensitively.
const (
	HeaderDate           = "Tanggal"
	HeaderDescription    = "Uraian"
	HeaderNetAmount      = "Jumlah"
	HeaderRunningBalance = "Saldo Berjalan"

	IncomePrefix  = "Penerimaan_"
	ExpensePrefix = "Pengeluaran_"
)

// ColumnRole classifies a sheet column discovered from its header.
type ColumnRole int

const (
	RoleIgnored ColumnRole = iota
	RoleDate
	RoleDescription
	RoleNetAmount
	RoleRunningBalance
	RoleIncomeCategory
	RoleExpenseCategory
)

// Column is one typed column of a sheet schema. Category is set only for
// the category roles.
type Column struct {
	Index    int
	Header   string
	Role     ColumnRole
	Category string
}

// Schema is the typed layout of one account sheet, produced by a single
// discovery pass over the header row.
type Schema struct {
	Columns     []Column
	DateCol     int
	DescCol     int
	AmountCol   int
	IncomeCols  []Column
	ExpenseCols []Column
}

// DiscoverSchema classifies every header cell. It fails if any of the three
// required columns is missing; extra unknown columns are ignored rather than
// rejected.
func DiscoverSchema(header []string) (Schema, error) {
	s := Schema{DateCol: -1, DescCol: -1, AmountCol: -1}
	for i, h := range header {
		col := Column{Index: i, Header: strings.TrimSpace(h)}
		lower := strings.ToLower(col.Header)
		switch {
		case lower == strings.ToLower(HeaderDate):
			col.Role = RoleDate
			s.DateCol = i
		case lower == strings.ToLower(HeaderDescription):
			col.Role = RoleDescription
			s.DescCol = i
		case lower == strings.ToLower(HeaderNetAmount):
			col.Role = RoleNetAmount
			s.AmountCol = i
		case lower == strings.ToLower(HeaderRunningBalance):
			col.Role = RoleRunningBalance
		case strings.HasPrefix(lower, strings.ToLower(IncomePrefix)):
			col.Role = RoleIncomeCategory
			col.Category = col.Header[len(IncomePrefix):]
		case strings.HasPrefix(lower, strings.ToLower(ExpensePrefix)):
			col.Role = RoleExpenseCategory
			col.Category = col.Header[len(ExpensePrefix):]
		default:
			col.Role = RoleIgnored
		}
		s.Columns = append(s.Columns, col)
		switch col.Role {
		case RoleIncomeCategory:
			s.IncomeCols = append(s.IncomeCols, col)
		case RoleExpenseCategory:
			s.ExpenseCols = append(s.ExpenseCols, col)
		}
	}

	var missing []string
	if s.DateCol < 0 {
		missing = append(missing, HeaderDate)
	}
	if s.DescCol < 0 {
		missing = append(missing, HeaderDescription)
	}
	if s.AmountCol < 0 {
		missing = append(missing, HeaderNetAmount)
	}
	if len(missing) > 0 {
		return Schema{}, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return s, nil
}
