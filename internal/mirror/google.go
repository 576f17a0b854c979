// Package mirror pushes account ledgers to a Google spreadsheet, one sheet
// per account. The spreadsheet is a read-only convenience copy; the SQLite
// snapshot stays the source of truth.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pembukuan/internal/core"
	"pembukuan/internal/report"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Config carries the mirror target and service-account credentials. Exactly
// one of CredentialsFile or CredentialsJSON must be set.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing mirror spreadsheet ID")
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets mirror client created", "spreadsheet_id", cfg.SpreadsheetID)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// MirrorAccount rewrites the account's sheet from scratch. The sheet is
// created if it does not exist yet.
func (c *Client) MirrorAccount(ctx context.Context, acc core.Account) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheet := sheetTitle(acc.Name)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return fmt.Errorf("ensure sheet %s: %w", sheet, err)
	}

	clearRange := fmt.Sprintf("%s!A:F", sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheet, err)
	}

	values := [][]any{{"Tanggal", "Uraian", "Penerimaan", "Pengeluaran", "Jumlah", "Saldo Berjalan"}}
	for _, tx := range report.WithRunningBalances(acc.Transactions) {
		var income, expense float64
		for _, v := range tx.Income {
			income += v
		}
		for _, v := range tx.Expense {
			expense += v
		}
		values = append(values, []any{
			tx.Date.String(),
			tx.Description,
			income,
			expense,
			tx.Amount,
			tx.RunningBalance,
		})
	}

	writeRange := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Account mirrored",
		"account", acc.Name,
		"sheet", sheet,
		"rows", len(values)-1)
	return nil
}

// ensureSheet adds the sheet when the spreadsheet does not have it yet.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	slog.InfoContext(ctx, "Mirror sheet created", "sheet", title)
	return nil
}

// Sheet titles are capped at 100 characters by the Sheets API.
func sheetTitle(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Account"
	}
	if len(name) > 100 {
		return name[:100]
	}
	return name
}
