package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bankledger/backend/internal/config"
	"github.com/bankledger/backend/internal/models"
)

// AccountService owns account creation and metadata. Every lookup is
// scoped to the requesting owner; an account number alone never grants
// access. Balances are deliberately out of reach here: they only change
// through the ledger service.
type AccountService struct {
	db        *sql.DB
	generator *AccountNumberGenerator
	cfg       *config.LedgerConfig
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB, generator *AccountNumberGenerator) *AccountService {
	cfg := config.LoadLedgerConfig()
	if generator == nil {
		generator = NewAccountNumberGenerator(rand.New(rand.NewSource(time.Now().UnixNano())), cfg.MaxNumberAttempts)
	}
	return &AccountService{
		db:        db,
		generator: generator,
		cfg:       cfg,
		validator: NewValidationHelper(),
	}
}

// Create inserts a new account with a freshly generated Luhn number.
// Number collisions are retried with a new draw up to the configured
// bound; a name collision is the caller's mistake and is not retried.
func (s *AccountService) Create(ctx context.Context, userID uuid.UUID, name string, accountType models.AccountType, currency models.Currency, initialBalance decimal.Decimal) (*models.Account, error) {
	if initialBalance.IsNegative() {
		return nil, models.ErrInvalidAmount
	}

	for attempt := 0; attempt < s.cfg.MaxCreateRetries; attempt++ {
		number, err := s.generator.Generate()
		if err != nil {
			return nil, err
		}

		account := &models.Account{
			ID:            uuid.New(),
			UserID:        userID,
			AccountName:   name,
			AccountNumber: number,
			AccountType:   accountType,
			Currency:      currency,
			Balance:       initialBalance,
			Version:       1,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO accounts (id, user_id, account_name, account_number, account_type, currency, balance, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			account.ID, account.UserID, account.AccountName, account.AccountNumber,
			account.AccountType, account.Currency, account.Balance, account.Version,
			account.CreatedAt, account.UpdatedAt)
		if err == nil {
			return account, nil
		}

		switch mapDuplicateError(err) {
		case models.ErrDuplicateNumber:
			continue
		case models.ErrDuplicateName:
			return nil, models.ErrDuplicateName
		default:
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}
	return nil, models.ErrDuplicateNumber
}

// GetByNumber returns the account only when it belongs to userID and is
// still active. Other owners' accounts are indistinguishable from
// missing ones.
func (s *AccountService) GetByNumber(ctx context.Context, accountNumber string, userID uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, account_name, account_number, account_type, currency, balance, version, created_at, updated_at
		FROM accounts
		WHERE account_number = $1 AND user_id = $2 AND deleted_at IS NULL`,
		accountNumber, userID).
		Scan(&a.ID, &a.UserID, &a.AccountName, &a.AccountNumber, &a.AccountType,
			&a.Currency, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &a, nil
}

// Update changes account_name and account_type. Balance and currency are
// not updatable through this path: balance belongs to the ledger and
// currency is immutable because no conversion logic exists.
func (s *AccountService) Update(ctx context.Context, accountNumber string, userID uuid.UUID, name *string, accountType *models.AccountType) (*models.Account, error) {
	sets := []string{}
	args := []any{}
	argIndex := 1

	if name != nil {
		sets = append(sets, fmt.Sprintf("account_name = $%d", argIndex))
		args = append(args, *name)
		argIndex++
	}
	if accountType != nil {
		sets = append(sets, fmt.Sprintf("account_type = $%d", argIndex))
		args = append(args, *accountType)
		argIndex++
	}
	if len(sets) == 0 {
		return s.GetByNumber(ctx, accountNumber, userID)
	}

	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf(`
		UPDATE accounts SET %s
		WHERE account_number = $%d AND user_id = $%d AND deleted_at IS NULL`,
		strings.Join(sets, ", "), argIndex, argIndex+1)
	args = append(args, accountNumber, userID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dupErr := mapDuplicateError(err); dupErr == models.ErrDuplicateName {
			return nil, models.ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, models.ErrAccountNotFound
	}

	return s.GetByNumber(ctx, accountNumber, userID)
}

// Deactivate soft-deletes the account. The state is terminal: the row
// stops matching ownership lookups while its transaction history stays
// in the ledger.
func (s *AccountService) Deactivate(ctx context.Context, accountNumber string, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET deleted_at = NOW(), updated_at = NOW()
		WHERE account_number = $1 AND user_id = $2 AND deleted_at IS NULL`,
		accountNumber, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// mapDuplicateError classifies Postgres unique violations (23505) by the
// constraint that fired.
func mapDuplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	switch pqErr.Constraint {
	case "accounts_account_name_key":
		return models.ErrDuplicateName
	case "accounts_account_number_key":
		return models.ErrDuplicateNumber
	}
	return err
}

// HTTP handlers

// CreateAccountRequest is the account creation payload
// @Description Account creation request structure
type CreateAccountRequest struct {
	AccountName string          `json:"account_name" validate:"required,max=255" example:"Main Checking"`
	AccountType string          `json:"account_type" validate:"required,oneof=Personal Business" example:"Personal"`
	Currency    string          `json:"currency" validate:"required,oneof=USD EUR GBP" example:"USD"`
	Balance     decimal.Decimal `json:"balance"` // optional opening balance, must not be negative
}

// UpdateAccountRequest allows renaming and retyping an account. Balance
// and currency fields are rejected by the strict decoder.
type UpdateAccountRequest struct {
	AccountName *string `json:"account_name" validate:"omitempty,min=1,max=255"`
	AccountType *string `json:"account_type" validate:"omitempty,oneof=Personal Business"`
}

// CreateAccount handles account creation
// @Summary Create a new account
// @Description Create a bank account with a generated Luhn-valid account number
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAccountRequest true "Account data"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /accounts [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateAccountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := s.Create(r.Context(), userID, req.AccountName,
		models.AccountType(req.AccountType), models.Currency(req.Currency), req.Balance)
	if err != nil {
		log.Printf("[ACCOUNT] Create failed for user %s: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Created account %s for user %s", account.AccountNumber, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"account": account})
}

// GetAccount returns account details
// @Summary Get account details
// @Description Retrieve an account by number, scoped to the authenticated owner
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountNumber path string true "Account number"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountNumber} [get]
func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountNumber := chi.URLParam(r, "accountNumber")
	account, err := s.GetByNumber(r.Context(), accountNumber, userID)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// UpdateAccount changes account name or type
// @Summary Update account details
// @Description Update account name or type; balance and currency cannot be changed here
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountNumber path string true "Account number"
// @Param request body UpdateAccountRequest true "Fields to update"
// @Success 200 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountNumber} [put]
func (s *AccountService) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateAccountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var accountType *models.AccountType
	if req.AccountType != nil {
		t := models.AccountType(*req.AccountType)
		accountType = &t
	}

	accountNumber := chi.URLParam(r, "accountNumber")
	account, err := s.Update(r.Context(), accountNumber, userID, req.AccountName, accountType)
	if err != nil {
		log.Printf("[ACCOUNT] Update failed for %s: %v", accountNumber, err)
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Account updated successfully",
		"account": account,
	})
}

// DeactivateAccount soft-deletes an account
// @Summary Deactivate an account
// @Description Soft-delete an account; its transaction history is retained
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountNumber path string true "Account number"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountNumber} [delete]
func (s *AccountService) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountNumber := chi.URLParam(r, "accountNumber")
	if err := s.Deactivate(r.Context(), accountNumber, userID); err != nil {
		SendDomainError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Deactivated account %s for user %s", accountNumber, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account deactivated successfully"})
}

// decodeJSONBody applies the shared strict-decoding policy: size cap,
// unknown fields rejected, exactly one JSON object. Returns false after
// writing the error response.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
