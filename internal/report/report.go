// Package report derives balances and period aggregates from account
// ledgers. Everything here is recomputed from scratch on demand; derived
// figures are never stored as editable state.
package report

import (
	"sort"

	"pembukuan/internal/core"
)

// PeriodSummary is the income/expense aggregate for one monthly (YYYY-MM)
// or yearly (YYYY) bucket.
type PeriodSummary struct {
	Period  string  `json:"period"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// CategoryTotals holds per-category sums across all transactions.
type CategoryTotals struct {
	Income  map[string]float64 `json:"income"`
	Expense map[string]float64 `json:"expense"`
}

// CashFlow approximates an income statement split. The split factors are a
// heuristic carried over from the original report view; only the shape of
// the figures is contractual. Net always equals total income minus total
// expense.
type CashFlow struct {
	Operating float64 `json:"operating"`
	Investing float64 `json:"investing"`
	Financing float64 `json:"financing"`
	Net       float64 `json:"net"`
}

// AccountReport bundles every derived view of one account.
type AccountReport struct {
	Account      string             `json:"account"`
	Balance      float64            `json:"balance"`
	Transactions []core.Transaction `json:"transactions"`
	Monthly      []PeriodSummary    `json:"monthly"`
	Yearly       []PeriodSummary    `json:"yearly"`
	Categories   CategoryTotals     `json:"categories"`
	CashFlow     CashFlow           `json:"cashFlow"`
}

// WithRunningBalances returns the transactions sorted by date ascending
// (stable: ties keep their original relative order) with the cumulative
// amount attached to each entry. The input slice is not modified.
func WithRunningBalances(txs []core.Transaction) []core.Transaction {
	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})
	var running float64
	for i := range sorted {
		running += sorted[i].Amount
		sorted[i].RunningBalance = running
	}
	return sorted
}

// MonthlySummaries buckets transactions by YYYY-MM, sorted by period key.
func MonthlySummaries(txs []core.Transaction) []PeriodSummary {
	return summarize(txs, func(d core.Date) string { return d.MonthKey() })
}

// YearlySummaries buckets transactions by YYYY, sorted by period key.
func YearlySummaries(txs []core.Transaction) []PeriodSummary {
	return summarize(txs, func(d core.Date) string { return d.YearKey() })
}

func summarize(txs []core.Transaction, key func(core.Date) string) []PeriodSummary {
	buckets := make(map[string]*PeriodSummary)
	for _, tx := range txs {
		k := key(tx.Date)
		b, ok := buckets[k]
		if !ok {
			b = &PeriodSummary{Period: k}
			buckets[k] = b
		}
		for _, v := range tx.Income {
			b.Income += v
		}
		for _, v := range tx.Expense {
			b.Expense += v
		}
	}
	out := make([]PeriodSummary, 0, len(buckets))
	for _, b := range buckets {
		b.Net = b.Income - b.Expense
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// Categories sums each income and expense category independently across all
// transactions.
func Categories(txs []core.Transaction) CategoryTotals {
	totals := CategoryTotals{
		Income:  make(map[string]float64),
		Expense: make(map[string]float64),
	}
	for _, tx := range txs {
		for cat, v := range tx.Income {
			totals.Income[cat] += v
		}
		for cat, v := range tx.Expense {
			totals.Expense[cat] += v
		}
	}
	return totals
}

// Heuristic activity split of total income and expense. The per-activity
// coefficients sum to 1 on each side, so the statement conserves the true
// net.
const (
	operatingIncomeShare  = 0.70
	operatingExpenseShare = 0.60
	investingIncomeShare  = 0.15
	investingExpenseShare = 0.25
	financingIncomeShare  = 0.15
	financingExpenseShare = 0.15
)

// CashFlowStatement derives the heuristic operating/investing/financing
// figures from aggregate income and expense.
func CashFlowStatement(txs []core.Transaction) CashFlow {
	var income, expense float64
	for _, tx := range txs {
		for _, v := range tx.Income {
			income += v
		}
		for _, v := range tx.Expense {
			expense += v
		}
	}
	return CashFlow{
		Operating: operatingIncomeShare*income - operatingExpenseShare*expense,
		Investing: investingIncomeShare*income - investingExpenseShare*expense,
		Financing: financingIncomeShare*income - financingExpenseShare*expense,
		Net:       income - expense,
	}
}

// ForAccount computes the full derived view of one account. An account with
// zero transactions yields empty series and aggregates, not an error.
func ForAccount(a core.Account) AccountReport {
	txs := WithRunningBalances(a.Transactions)
	return AccountReport{
		Account:      a.Name,
		Balance:      a.ComputeBalance(),
		Transactions: txs,
		Monthly:      MonthlySummaries(txs),
		Yearly:       YearlySummaries(txs),
		Categories:   Categories(txs),
		CashFlow:     CashFlowStatement(txs),
	}
}
