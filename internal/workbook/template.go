package workbook

import (
	"time"

	"pembukuan/internal/core"
)

// Template builds the blank starter workbook: sample cash, bank, and
// e-wallet ledgers demonstrating the expected column layout, dated relative
// to today.
func Template() ([]byte, error) {
	return Build(sampleAccounts(time.Now()))
}

func sampleAccounts(now time.Time) []core.Account {
	tx := func(daysAgo int, description string, income, expense map[string]any) core.RawTransaction {
		d := now.AddDate(0, 0, -daysAgo)
		return core.RawTransaction{
			Date:        core.NewDate(d.Year(), int(d.Month()), d.Day()).String(),
			Description: description,
			Income:      income,
			Expense:     expense,
		}
	}
	m := func(category string, amount float64) map[string]any {
		return map[string]any{category: amount}
	}

	return core.NormalizeAccounts([]core.RawAccount{
		{Name: "Kas", Transactions: []core.RawTransaction{
			tx(7, "Saldo Awal", m("Modal", 5000000), nil),
			tx(6, "Pembayaran Piutang", m("Piutang", 2500000), nil),
			tx(5, "Pembelian Bahan Baku", nil, m("Bahan Baku", 1750000)),
			tx(4, "Pendapatan Jasa", m("Jasa", 3200000), nil),
			tx(3, "Biaya Listrik", nil, m("Listrik", 450000)),
			tx(2, "Pendapatan Lainnya", m("Lainnya", 1250000), nil),
			tx(1, "Gaji Karyawan", nil, m("Gaji", 3000000)),
		}},
		{Name: "Bank", Transactions: []core.RawTransaction{
			tx(7, "Setoran Awal", m("Setoran", 10000000), nil),
			tx(5, "Pembayaran Supplier", nil, m("Supplier", 4500000)),
			tx(3, "Penerimaan Transfer", m("Transfer", 6500000), nil),
		}},
		{Name: "E-Wallet", Transactions: []core.RawTransaction{
			tx(7, "Saldo Awal", m("Saldo Awal", 1000000), nil),
			tx(5, "Top Up", m("Top Up", 500000), nil),
			tx(3, "Pembayaran Online", nil, m("Belanja Online", 750000)),
			tx(1, "Isi Ulang Pulsa", nil, m("Pulsa", 100000)),
		}},
	})
}
