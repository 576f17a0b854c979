package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Default category names used when a legacy record carries a bare number
// instead of a category map.
const (
	DefaultIncomeCategory  = "Penerimaan"
	DefaultExpenseCategory = "Pengeluaran"
)

// Transaction is one dated ledger entry. Amount is always derived from the
// income and expense maps; RunningBalance is account-scoped and only
// meaningful after aggregation.
type Transaction struct {
	ID             string             `json:"id"`
	Date           Date               `json:"date"`
	Description    string             `json:"description"`
	Income         map[string]float64 `json:"income"`
	Expense        map[string]float64 `json:"expense"`
	Amount         float64            `json:"amount"`
	RunningBalance float64            `json:"runningBalance"`
}

// NetAmount recomputes the net of the transaction's own category maps.
func (t Transaction) NetAmount() float64 {
	var net float64
	for _, v := range t.Income {
		net += v
	}
	for _, v := range t.Expense {
		net -= v
	}
	return net
}

// RawTransaction is an untrusted record from any source: a parsed sheet row,
// imported JSON, or a legacy payload. All fields are optional and loosely
// typed; Normalize turns it into a canonical Transaction.
type RawTransaction struct {
	ID          string
	Date        string
	Description string
	Income      any
	Expense     any
	Amount      any
}

// rawKeys maps accepted wire keys (canonical and legacy Indonesian) onto the
// RawTransaction fields.
func (r *RawTransaction) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	pick := func(keys ...string) (json.RawMessage, bool) {
		for _, k := range keys {
			if v, ok := fields[k]; ok {
				return v, true
			}
		}
		return nil, false
	}
	if v, ok := pick("id"); ok {
		_ = json.Unmarshal(v, &r.ID)
	}
	if v, ok := pick("date", "tanggal"); ok {
		_ = json.Unmarshal(v, &r.Date)
	}
	if v, ok := pick("description", "uraian"); ok {
		_ = json.Unmarshal(v, &r.Description)
	}
	if v, ok := pick("income", "penerimaan"); ok {
		var any any
		_ = json.Unmarshal(v, &any)
		r.Income = any
	}
	if v, ok := pick("expense", "pengeluaran"); ok {
		var any any
		_ = json.Unmarshal(v, &any)
		r.Expense = any
	}
	if v, ok := pick("amount", "jumlah"); ok {
		var any any
		_ = json.Unmarshal(v, &any)
		r.Amount = any
	}
	return nil
}

// Normalize turns any raw record into a canonical Transaction. It is total:
// malformed fields degrade to defaults instead of failing, and the derived
// Amount is always recomputed from the category maps. Any externally
// supplied amount is discarded. Normalizing an already-canonical record
// yields an identical transaction.
func Normalize(raw RawTransaction) Transaction {
	tx := Transaction{
		ID:          strings.TrimSpace(raw.ID),
		Description: raw.Description,
		Income:      coerceCategoryMap(raw.Income, DefaultIncomeCategory),
		Expense:     coerceCategoryMap(raw.Expense, DefaultExpenseCategory),
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if d, err := ParseDate(raw.Date); err == nil {
		tx.Date = d
	} else {
		tx.Date = Today()
	}
	tx.Amount = tx.NetAmount()
	return tx
}

// coerceCategoryMap accepts a category→amount mapping in any of the shapes
// seen in the wild: a proper map, a bare number or numeric string (legacy
// single-category records), or nothing at all. Negative and non-numeric
// values degrade to 0.
func coerceCategoryMap(v any, defaultCategory string) map[string]float64 {
	out := make(map[string]float64)
	switch m := v.(type) {
	case nil:
	case map[string]float64:
		for k, amt := range m {
			if k = strings.TrimSpace(k); k != "" {
				out[k] = clampAmount(amt)
			}
		}
	case map[string]any:
		for k, val := range m {
			if k = strings.TrimSpace(k); k != "" {
				out[k] = clampAmount(coerceNumber(val))
			}
		}
	default:
		if amt := clampAmount(coerceNumber(v)); amt != 0 {
			out[defaultCategory] = amt
		}
	}
	return out
}

// coerceNumber converts loosely typed numeric input to float64; failures
// become 0.
func coerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func clampAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
