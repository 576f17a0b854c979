package core

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Run("derives amount from category maps", func(t *testing.T) {
		tx := Normalize(RawTransaction{
			Date:        "2024-01-15",
			Description: "Gaji bulanan",
			Income:      map[string]any{"Gaji": 5000000.0},
			Expense:     map[string]any{"Pajak": 250000.0},
			Amount:      999.0, // externally supplied amounts are discarded
		})

		if tx.Amount != 4750000 {
			t.Errorf("Amount = %v, want 4750000", tx.Amount)
		}
		if tx.Income["Gaji"] != 5000000 {
			t.Errorf("Income[Gaji] = %v, want 5000000", tx.Income["Gaji"])
		}
		if tx.Date.String() != "2024-01-15" {
			t.Errorf("Date = %v, want 2024-01-15", tx.Date)
		}
	})

	t.Run("generates an ID when missing", func(t *testing.T) {
		tx := Normalize(RawTransaction{Date: "2024-01-15"})
		if tx.ID == "" {
			t.Error("ID should be generated for a blank raw ID")
		}

		kept := Normalize(RawTransaction{ID: " tx-1 ", Date: "2024-01-15"})
		if kept.ID != "tx-1" {
			t.Errorf("ID = %q, want trimmed tx-1", kept.ID)
		}
	})

	t.Run("wraps scalar amounts under the default category", func(t *testing.T) {
		tx := Normalize(RawTransaction{Date: "2024-01-15", Income: 1000.0, Expense: "250"})

		if tx.Income[DefaultIncomeCategory] != 1000 {
			t.Errorf("Income[%s] = %v, want 1000", DefaultIncomeCategory, tx.Income[DefaultIncomeCategory])
		}
		if tx.Expense[DefaultExpenseCategory] != 250 {
			t.Errorf("Expense[%s] = %v, want 250", DefaultExpenseCategory, tx.Expense[DefaultExpenseCategory])
		}
		if tx.Amount != 750 {
			t.Errorf("Amount = %v, want 750", tx.Amount)
		}
	})

	t.Run("zero scalars produce no category entry", func(t *testing.T) {
		tx := Normalize(RawTransaction{Date: "2024-01-15", Income: 0.0})
		if len(tx.Income) != 0 {
			t.Errorf("Income = %v, want empty map for zero scalar", tx.Income)
		}
	})

	t.Run("unparseable dates fall back to today", func(t *testing.T) {
		tx := Normalize(RawTransaction{Date: "not a date"})
		if tx.Date.String() != Today().String() {
			t.Errorf("Date = %v, want today for unparseable input", tx.Date)
		}
	})

	t.Run("malformed numbers degrade to zero", func(t *testing.T) {
		tx := Normalize(RawTransaction{
			Date:   "2024-01-15",
			Income: map[string]any{"Gaji": "not a number", "Bonus": math.NaN(), "Lain": -50.0},
		})
		for cat, v := range tx.Income {
			if v != 0 {
				t.Errorf("Income[%s] = %v, want 0 for malformed input", cat, v)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		first := Normalize(RawTransaction{
			ID:          "tx-1",
			Date:        "2024-01-15",
			Description: "Penjualan",
			Income:      map[string]any{"Penjualan": 2000.0},
		})
		second := Normalize(RawTransaction{
			ID:          first.ID,
			Date:        first.Date.String(),
			Description: first.Description,
			Income:      first.Income,
			Expense:     first.Expense,
			Amount:      first.Amount,
		})
		if !reflect.DeepEqual(first, second) {
			t.Errorf("normalization is not idempotent:\nfirst  = %+v\nsecond = %+v", first, second)
		}
	})
}

func TestRawTransactionUnmarshalJSON(t *testing.T) {
	t.Run("canonical keys", func(t *testing.T) {
		var raw RawTransaction
		data := []byte(`{"id":"tx-1","date":"2024-01-15","description":"Gaji","income":{"Gaji":5000000},"expense":{}}`)
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}

		tx := Normalize(raw)
		if tx.ID != "tx-1" || tx.Description != "Gaji" || tx.Income["Gaji"] != 5000000 {
			t.Errorf("normalized = %+v, want canonical fields preserved", tx)
		}
	})

	t.Run("legacy keys", func(t *testing.T) {
		var raw RawTransaction
		data := []byte(`{"tanggal":"2024-01-15","uraian":"Sewa kantor","pengeluaran":{"Sewa":1500000},"jumlah":-1500000}`)
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}

		tx := Normalize(raw)
		if tx.Description != "Sewa kantor" {
			t.Errorf("Description = %q, want Sewa kantor", tx.Description)
		}
		if tx.Expense["Sewa"] != 1500000 {
			t.Errorf("Expense[Sewa] = %v, want 1500000", tx.Expense["Sewa"])
		}
		if tx.Amount != -1500000 {
			t.Errorf("Amount = %v, want -1500000 derived from expense map", tx.Amount)
		}
	})
}

func TestNormalizeAccount(t *testing.T) {
	acc := NormalizeAccount("Kas", []RawTransaction{
		{Date: "2024-01-10", Description: "Setoran", Income: 1000.0},
		{Date: "2024-01-12", Description: "Pembelian", Expense: 400.0},
	})

	if acc.Name != "Kas" {
		t.Errorf("Name = %q, want Kas", acc.Name)
	}
	if len(acc.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(acc.Transactions))
	}
	if acc.Balance != 600 {
		t.Errorf("Balance = %v, want 600", acc.Balance)
	}
}
