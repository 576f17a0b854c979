package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"pembukuan/internal/core"
	"pembukuan/internal/report"
	"pembukuan/internal/store"
	"pembukuan/internal/workbook"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "pembukuan",
	})
}

// handleUpload ingests an Excel workbook and replaces the whole account list.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		slog.WarnContext(r.Context(), "Upload form parse failed", "error", err)
		writeError(w, http.StatusRequestEntityTooLarge, "file too large or malformed upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// Legacy binary .xls is rejected up front: the workbook codec reads
	// OOXML only, and letting it through would surface as a parse error.
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == ".xls" {
		writeError(w, http.StatusBadRequest, "legacy .xls files are not supported: save the workbook as .xlsx and retry")
		return
	}
	if ext != ".xlsx" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q: expected .xlsx", ext))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Upload read failed", "error", err, "filename", header.Filename)
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	accounts, err := workbook.Parse(data)
	if err != nil {
		if errors.Is(err, workbook.ErrNoValidData) {
			writeError(w, http.StatusUnprocessableEntity, "workbook contains no valid transactions")
			return
		}
		slog.ErrorContext(r.Context(), "Workbook parse failed", "error", err, "filename", header.Filename)
		writeError(w, http.StatusUnprocessableEntity, "failed to parse workbook")
		return
	}

	snap := s.store.SetAccounts(r.Context(), accounts)
	slog.InfoContext(r.Context(), "Workbook imported",
		"filename", header.Filename,
		"accounts", len(snap.Accounts),
		"current_account", snap.CurrentAccount)
	writeJSON(w, http.StatusOK, snap)
}

type saveRequest struct {
	Accounts []core.RawAccount `json:"accounts"`
}

// handleSave exports accounts to a styled workbook. The body may carry the
// accounts to export; an empty body exports the stored state.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req saveRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accounts := core.NormalizeAccounts(req.Accounts)
	if len(accounts) == 0 {
		accounts = s.store.Snapshot().Accounts
	}

	data, err := workbook.Build(accounts)
	if err != nil {
		slog.ErrorContext(r.Context(), "Workbook build failed", "error", err, "accounts", len(accounts))
		writeError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}

	filename := fmt.Sprintf("accounting_export_%s.xlsx", time.Now().Format("20060102_150405"))
	writeWorkbook(w, filename, data)
}

// handleTemplate serves a workbook pre-filled with sample accounts.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	data, err := workbook.Template()
	if err != nil {
		slog.ErrorContext(r.Context(), "Template build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build template")
		return
	}

	writeWorkbook(w, "accounting_template.xlsx", data)
}

type accountSummary struct {
	Name             string  `json:"name"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
}

type accountsResponse struct {
	Accounts       []accountSummary `json:"accounts"`
	CurrentAccount string           `json:"currentAccountName"`
}

func summarize(snap store.Snapshot) accountsResponse {
	resp := accountsResponse{
		Accounts:       make([]accountSummary, len(snap.Accounts)),
		CurrentAccount: snap.CurrentAccount,
	}
	for i, acc := range snap.Accounts {
		resp.Accounts[i] = accountSummary{
			Name:             acc.Name,
			Balance:          acc.Balance,
			TransactionCount: len(acc.Transactions),
		}
	}
	return resp
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, summarize(s.store.Snapshot()))
	case http.MethodPost:
		s.handleAddAccount(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type accountNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req accountNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "account name cannot be empty")
		return
	}

	snap, err := s.store.AddAccount(r.Context(), core.Account{Name: name})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			writeError(w, http.StatusConflict, fmt.Sprintf("account %q already exists", name))
			return
		}
		slog.ErrorContext(r.Context(), "Add account failed", "error", err, "account", name)
		writeError(w, http.StatusInternalServerError, "failed to add account")
		return
	}

	slog.InfoContext(r.Context(), "Account added", "account", name)
	writeJSON(w, http.StatusCreated, summarize(snap))
}

func (s *Server) handleSelectAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req accountNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SelectAccount(r.Context(), req.Name); err != nil {
		if errors.Is(err, store.ErrUnknownAccount) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("account %q does not exist", req.Name))
			return
		}
		slog.ErrorContext(r.Context(), "Select account failed", "error", err, "account", req.Name)
		writeError(w, http.StatusInternalServerError, "failed to select account")
		return
	}

	writeJSON(w, http.StatusOK, summarize(s.store.Snapshot()))
}

type transactionsRequest struct {
	Transactions []core.RawTransaction `json:"transactions"`
}

// handleReplaceTransactions replaces one account's transaction list wholesale.
func (s *Server) handleReplaceTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, http.MethodPut)
		return
	}

	name := r.PathValue("name")

	var req transactionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account := core.NormalizeAccount(name, req.Transactions)
	snap, err := s.store.UpdateAccount(r.Context(), name, account.Transactions)
	if err != nil {
		if errors.Is(err, store.ErrUnknownAccount) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("account %q does not exist", name))
			return
		}
		slog.ErrorContext(r.Context(), "Update account failed", "error", err, "account", name)
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	slog.InfoContext(r.Context(), "Transactions replaced", "account", name, "count", len(account.Transactions))
	writeJSON(w, http.StatusOK, snap)
}

// handleSettings reads or replaces the export reminder settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Settings())
	case http.MethodPut:
		var settings store.Settings
		if err := decodeJSON(r, &settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if settings.ReminderIntervalMinutes < 1 {
			writeError(w, http.StatusBadRequest, "reminder interval must be at least 1 minute")
			return
		}
		s.store.UpdateSettings(r.Context(), settings)
		slog.InfoContext(r.Context(), "Settings updated",
			"reminder_interval_minutes", settings.ReminderIntervalMinutes,
			"reminder_active", settings.ReminderActive)
		writeJSON(w, http.StatusOK, settings)
	default:
		methodNotAllowed(w, "GET, PUT")
	}
}

// handleReport serves the full report bundle for one account. Reports are
// cached per account and state version.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	name := r.PathValue("account")
	snap := s.store.Snapshot()

	var account *core.Account
	for i := range snap.Accounts {
		if snap.Accounts[i].Name == name {
			account = &snap.Accounts[i]
			break
		}
	}
	if account == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("account %q does not exist", name))
		return
	}

	key := fmt.Sprintf("%s@%d", name, s.store.Version())
	if cached, found := s.reportCache.Get(key); found {
		slog.DebugContext(r.Context(), "Report cache hit", "account", name)
		writeJSON(w, http.StatusOK, cached)
		return
	}

	rep := report.ForAccount(*account)
	s.reportCache.Set(key, rep)
	writeJSON(w, http.StatusOK, rep)
}
