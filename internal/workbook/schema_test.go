package workbook

import (
	"strings"
	"testing"
)

func TestDiscoverSchema(t *testing.T) {
	t.Run("classifies all column roles", func(t *testing.T) {
		header := []string{"Tanggal", "Uraian", "Penerimaan_Gaji", "Pengeluaran_Sewa", "Jumlah", "Saldo Berjalan", "Catatan"}

		s, err := DiscoverSchema(header)
		if err != nil {
			t.Fatalf("DiscoverSchema() error = %v", err)
		}
		if s.DateCol != 0 || s.DescCol != 1 || s.AmountCol != 4 {
			t.Errorf("required columns = %d/%d/%d, want 0/1/4", s.DateCol, s.DescCol, s.AmountCol)
		}
		if len(s.IncomeCols) != 1 || s.IncomeCols[0].Category != "Gaji" {
			t.Errorf("IncomeCols = %+v, want one Gaji column", s.IncomeCols)
		}
		if len(s.ExpenseCols) != 1 || s.ExpenseCols[0].Category != "Sewa" {
			t.Errorf("ExpenseCols = %+v, want one Sewa column", s.ExpenseCols)
		}
		if s.Columns[6].Role != RoleIgnored {
			t.Errorf("unknown column role = %v, want RoleIgnored", s.Columns[6].Role)
		}
	})

	t.Run("matches headers case-insensitively", func(t *testing.T) {
		header := []string{"TANGGAL", "uraian", "penerimaan_Modal", "JUMLAH"}

		s, err := DiscoverSchema(header)
		if err != nil {
			t.Fatalf("DiscoverSchema() error = %v", err)
		}
		if len(s.IncomeCols) != 1 || s.IncomeCols[0].Category != "Modal" {
			t.Errorf("IncomeCols = %+v, want one Modal column", s.IncomeCols)
		}
	})

	t.Run("trims header whitespace", func(t *testing.T) {
		header := []string{" Tanggal ", " Uraian", "Jumlah "}

		if _, err := DiscoverSchema(header); err != nil {
			t.Errorf("DiscoverSchema() error = %v, want padded headers accepted", err)
		}
	})

	t.Run("reports every missing required column", func(t *testing.T) {
		_, err := DiscoverSchema([]string{"Penerimaan_Gaji"})
		if err == nil {
			t.Fatal("DiscoverSchema() should fail without required columns")
		}
		for _, want := range []string{HeaderDate, HeaderDescription, HeaderNetAmount} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q should name missing column %s", err, want)
			}
		}
	})
}
