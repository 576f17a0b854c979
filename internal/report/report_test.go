package report

import (
	"math"
	"testing"

	"pembukuan/internal/core"
)

func tx(date, desc string, income, expense float64) core.Transaction {
	raw := core.RawTransaction{Date: date, Description: desc}
	if income != 0 {
		raw.Income = income
	}
	if expense != 0 {
		raw.Expense = expense
	}
	return core.Normalize(raw)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWithRunningBalances(t *testing.T) {
	// Insertion order deliberately differs from date order: the later entry
	// comes first.
	txs := []core.Transaction{
		tx("2024-01-10", "Setoran", 100, 0),
		tx("2024-01-05", "Pembelian", 0, 30),
	}

	got := WithRunningBalances(txs)

	if got[0].Date.String() != "2024-01-05" {
		t.Fatalf("first entry dated %v, want 2024-01-05", got[0].Date)
	}
	if !approx(got[0].RunningBalance, -30) {
		t.Errorf("running balance[0] = %v, want -30", got[0].RunningBalance)
	}
	if !approx(got[1].RunningBalance, 70) {
		t.Errorf("running balance[1] = %v, want 70", got[1].RunningBalance)
	}

	// Input is untouched.
	if txs[0].RunningBalance != 0 {
		t.Error("WithRunningBalances must not modify its input")
	}
}

func TestWithRunningBalances_StableTies(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-01-05", "first", 10, 0),
		tx("2024-01-05", "second", 20, 0),
	}

	got := WithRunningBalances(txs)
	if got[0].Description != "first" || got[1].Description != "second" {
		t.Errorf("same-date entries reordered: %q then %q", got[0].Description, got[1].Description)
	}
}

func TestSummaries(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-01-10", "a", 100, 0),
		tx("2024-01-20", "b", 0, 30),
		tx("2024-02-05", "c", 50, 0),
		tx("2023-12-31", "d", 0, 10),
	}

	t.Run("monthly buckets sorted by period", func(t *testing.T) {
		monthly := MonthlySummaries(txs)
		if len(monthly) != 3 {
			t.Fatalf("got %d monthly buckets, want 3", len(monthly))
		}
		wantPeriods := []string{"2023-12", "2024-01", "2024-02"}
		for i, want := range wantPeriods {
			if monthly[i].Period != want {
				t.Errorf("period[%d] = %q, want %q", i, monthly[i].Period, want)
			}
		}
		jan := monthly[1]
		if !approx(jan.Income, 100) || !approx(jan.Expense, 30) || !approx(jan.Net, 70) {
			t.Errorf("2024-01 = %+v, want income 100 expense 30 net 70", jan)
		}
	})

	t.Run("yearly buckets", func(t *testing.T) {
		yearly := YearlySummaries(txs)
		if len(yearly) != 2 {
			t.Fatalf("got %d yearly buckets, want 2", len(yearly))
		}
		if yearly[0].Period != "2023" || yearly[1].Period != "2024" {
			t.Errorf("periods = %q, %q, want 2023, 2024", yearly[0].Period, yearly[1].Period)
		}
		if !approx(yearly[1].Net, 120) {
			t.Errorf("2024 net = %v, want 120", yearly[1].Net)
		}
	})

	t.Run("conservation across views", func(t *testing.T) {
		var monthlyNet, yearlyNet float64
		for _, m := range MonthlySummaries(txs) {
			monthlyNet += m.Net
		}
		for _, y := range YearlySummaries(txs) {
			yearlyNet += y.Net
		}
		balance := core.Account{Transactions: txs}.ComputeBalance()
		if !approx(monthlyNet, balance) || !approx(yearlyNet, balance) {
			t.Errorf("nets diverge: monthly %v, yearly %v, balance %v", monthlyNet, yearlyNet, balance)
		}
	})
}

func TestCategories(t *testing.T) {
	txs := []core.Transaction{
		core.Normalize(core.RawTransaction{Date: "2024-01-10", Income: map[string]any{"Gaji": 100.0, "Bonus": 20.0}}),
		core.Normalize(core.RawTransaction{Date: "2024-01-11", Income: map[string]any{"Gaji": 50.0}, Expense: map[string]any{"Sewa": 30.0}}),
	}

	totals := Categories(txs)
	if !approx(totals.Income["Gaji"], 150) {
		t.Errorf("Income[Gaji] = %v, want 150", totals.Income["Gaji"])
	}
	if !approx(totals.Income["Bonus"], 20) {
		t.Errorf("Income[Bonus] = %v, want 20", totals.Income["Bonus"])
	}
	if !approx(totals.Expense["Sewa"], 30) {
		t.Errorf("Expense[Sewa] = %v, want 30", totals.Expense["Sewa"])
	}
}

func TestCashFlowStatement(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-01-10", "a", 1000, 0),
		tx("2024-01-11", "b", 0, 400),
	}

	cf := CashFlowStatement(txs)

	// The split is heuristic, but the statement always conserves the true
	// net and the activities sum back to it.
	if !approx(cf.Net, 600) {
		t.Errorf("Net = %v, want 600", cf.Net)
	}
	if !approx(cf.Operating+cf.Investing+cf.Financing, cf.Net) {
		t.Errorf("activities sum to %v, want net %v", cf.Operating+cf.Investing+cf.Financing, cf.Net)
	}
}

func TestForAccount(t *testing.T) {
	t.Run("empty account yields empty views", func(t *testing.T) {
		rep := ForAccount(core.Account{Name: "Kas"})
		if rep.Account != "Kas" {
			t.Errorf("Account = %q, want Kas", rep.Account)
		}
		if rep.Balance != 0 || len(rep.Transactions) != 0 || len(rep.Monthly) != 0 || len(rep.Yearly) != 0 {
			t.Errorf("empty account report = %+v, want zero views", rep)
		}
	})

	t.Run("bundles all views", func(t *testing.T) {
		acc := core.Account{Name: "Kas", Transactions: []core.Transaction{
			tx("2024-01-10", "a", 100, 0),
			tx("2024-01-05", "b", 0, 30),
		}}

		rep := ForAccount(acc)
		if !approx(rep.Balance, 70) {
			t.Errorf("Balance = %v, want 70", rep.Balance)
		}
		if len(rep.Transactions) != 2 || !approx(rep.Transactions[1].RunningBalance, 70) {
			t.Errorf("Transactions = %+v, want running balances attached", rep.Transactions)
		}
		if len(rep.Monthly) != 1 || rep.Monthly[0].Period != "2024-01" {
			t.Errorf("Monthly = %+v, want single 2024-01 bucket", rep.Monthly)
		}
		if !approx(rep.CashFlow.Net, 70) {
			t.Errorf("CashFlow.Net = %v, want 70", rep.CashFlow.Net)
		}
	})
}
