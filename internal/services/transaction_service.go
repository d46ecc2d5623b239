package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankledger/backend/internal/models"
)

// TransactionService exposes the ledger over HTTP: posting single
// credit/debit legs, transferring between accounts, and reading history.
// All money movement is delegated to the ledger service.
type TransactionService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, ledger *LedgerService) *TransactionService {
	return &TransactionService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// PostTransactionRequest is the payload for recording one ledger leg
// @Description Credit or debit request structure
type PostTransactionRequest struct {
	AccountNumber string          `json:"account_number" validate:"required,len=12,numeric" example:"400000000000"`
	Type          string          `json:"type" validate:"required,oneof=Credit Debit" example:"Credit"`
	Amount        decimal.Decimal `json:"amount"` // must be greater than zero
	Description   string          `json:"description" validate:"max=255"`
}

// TransferRequest is the payload for moving funds between two accounts
// @Description Transfer request structure
type TransferRequest struct {
	FromAccount string          `json:"from_account" validate:"required,len=12,numeric"`
	ToAccount   string          `json:"to_account" validate:"required,len=12,numeric,nefield=FromAccount"`
	Amount      decimal.Decimal `json:"amount"` // must be greater than zero
	Description string          `json:"description" validate:"max=255"`
}

// CreateTransaction records a credit or debit against an owned account
// @Summary Post a transaction
// @Description Record a single credit or debit leg; the balance changes atomically with the ledger row
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PostTransactionRequest true "Transaction data"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions [post]
func (ts *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req PostTransactionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	entry, err := ts.ledger.Post(r.Context(), userID, req.AccountNumber,
		models.TransactionType(req.Type), req.Amount, req.Description)
	if err != nil {
		log.Printf("[TRANSACTION] Post failed for account %s: %v", req.AccountNumber, err)
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message":     "Transaction logged successfully",
		"transaction": entry,
	})
}

// Transfer moves funds between two accounts
// @Summary Transfer funds
// @Description Debit the owned source account and credit the destination in one atomic unit
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransferRequest true "Transfer data"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transfers [post]
func (ts *TransactionService) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req TransferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	err := ts.ledger.Transfer(r.Context(), userID, req.FromAccount, req.ToAccount, req.Amount, req.Description)
	if err != nil {
		log.Printf("[TRANSACTION] Transfer %s -> %s failed: %v", req.FromAccount, req.ToAccount, err)
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Transfer successful"})
}

// ListTransactions returns transaction history for an owned account
// @Summary List transactions
// @Description Get transactions for an account, newest first, optionally bounded by dates (inclusive)
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param account_number query string true "Account number"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountNumber := r.URL.Query().Get("account_number")
	if accountNumber == "" {
		SendErrorResponse(w, "account_number is required", http.StatusBadRequest, nil)
		return
	}

	from, to, ok := ParseDateRange(w, r)
	if !ok {
		return
	}

	transactions, err := ts.ledger.History(r.Context(), userID, accountNumber, from, to)
	if err != nil {
		log.Printf("[TRANSACTION] History failed for account %s: %v", accountNumber, err)
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":      "Transactions fetched successfully",
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// ParseDateRange reads the optional from/to query parameters as calendar
// dates. The to bound is widened to the end of its day so both bounds
// are inclusive. Returns ok=false after writing the error response.
func ParseDateRange(w http.ResponseWriter, r *http.Request) (*time.Time, *time.Time, bool) {
	var from, to *time.Time

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			SendErrorResponse(w, "Invalid from date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return nil, nil, false
		}
		from = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			SendErrorResponse(w, "Invalid to date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return nil, nil, false
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		to = &endOfDay
	}
	return from, to, true
}
