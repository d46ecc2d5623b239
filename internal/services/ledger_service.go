package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bankledger/backend/internal/audit"
	"github.com/bankledger/backend/internal/config"
	"github.com/bankledger/backend/internal/models"
)

// LedgerService is the only sanctioned path for money movement. Every
// mutation runs inside one database transaction that locks the affected
// account rows (FOR UPDATE) before reading the balance, so the
// read-check-write sequence is indivisible with respect to concurrent
// mutators. A version compare-and-swap on the balance write is kept as a
// second guard.
type LedgerService struct {
	db    *sql.DB
	cfg   *config.LedgerConfig
	audit *audit.Logger
}

func NewLedgerService(db *sql.DB, cfg *config.LedgerConfig) *LedgerService {
	if cfg == nil {
		cfg = config.LoadLedgerConfig()
	}
	return &LedgerService{
		db:    db,
		cfg:   cfg,
		audit: audit.NewLogger(),
	}
}

// Post records one Credit or Debit leg against an active account owned
// by userID and applies the matching balance change atomically. Debits
// that exceed the locked balance fail with ErrInsufficientFunds and
// leave no trace.
func (s *LedgerService) Post(ctx context.Context, userID uuid.UUID, accountNumber string, txType models.TransactionType, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.setLockTimeout(ctx, tx); err != nil {
		return nil, err
	}

	account, err := s.lockOwnedAccount(ctx, tx, accountNumber, userID)
	if err != nil {
		return nil, err
	}

	var newBalance decimal.Decimal
	switch txType {
	case models.TransactionCredit:
		newBalance = account.Balance.Add(amount)
	case models.TransactionDebit:
		if account.Balance.LessThan(amount) {
			return nil, models.ErrInsufficientFunds
		}
		newBalance = account.Balance.Sub(amount)
	default:
		return nil, models.ErrInvalidAmount
	}

	entry, err := s.insertTransaction(ctx, tx, account.ID, txType, amount, description)
	if err != nil {
		return nil, err
	}

	if err := s.updateBalance(ctx, tx, account.ID, newBalance, account.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.audit.LogPost(entry.ID.String(), accountNumber, string(txType), amount)
	return entry, nil
}

// Transfer debits fromNumber and credits toNumber in one atomic unit.
// The caller must own the source account; the destination may belong to
// anyone. Row locks are taken in account-number order regardless of
// transfer direction so opposing transfers between the same pair cannot
// deadlock.
func (s *LedgerService) Transfer(ctx context.Context, userID uuid.UUID, fromNumber, toNumber string, amount decimal.Decimal, description string) error {
	if fromNumber == toNumber {
		return models.ErrSameAccount
	}
	if !amount.IsPositive() {
		return models.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.setLockTimeout(ctx, tx); err != nil {
		return err
	}

	var from, to *models.Account
	if fromNumber < toNumber {
		if from, err = s.lockOwnedAccount(ctx, tx, fromNumber, userID); err != nil {
			return err
		}
		if to, err = s.lockAccount(ctx, tx, toNumber); err != nil {
			return err
		}
	} else {
		if to, err = s.lockAccount(ctx, tx, toNumber); err != nil {
			return err
		}
		if from, err = s.lockOwnedAccount(ctx, tx, fromNumber, userID); err != nil {
			return err
		}
	}

	if from.Balance.LessThan(amount) {
		return models.ErrInsufficientFunds
	}

	debitDesc := "Transfer to " + toNumber
	creditDesc := "Transfer from " + fromNumber
	if description != "" {
		debitDesc += ": " + description
		creditDesc += ": " + description
	}

	if _, err := s.insertTransaction(ctx, tx, from.ID, models.TransactionDebit, amount, debitDesc); err != nil {
		return err
	}
	if _, err := s.insertTransaction(ctx, tx, to.ID, models.TransactionCredit, amount, creditDesc); err != nil {
		return err
	}

	if err := s.updateBalance(ctx, tx, from.ID, from.Balance.Sub(amount), from.Version); err != nil {
		return err
	}
	if err := s.updateBalance(ctx, tx, to.ID, to.Balance.Add(amount), to.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.audit.LogTransfer(fromNumber, toNumber, amount, "SUCCESS")
	return nil
}

// History returns committed transactions for an owned account, newest
// first. Date bounds are inclusive; a reversed range is rejected before
// any store access.
func (s *LedgerService) History(ctx context.Context, userID uuid.UUID, accountNumber string, from, to *time.Time) ([]models.Transaction, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, models.ErrInvalidRange
	}

	account, err := s.findOwnedAccount(ctx, accountNumber, userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, account_id, type, amount, description, created_at
		FROM transactions
		WHERE account_id = $1`
	args := []any{account.ID}
	argIndex := 2

	if from != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *from)
		argIndex++
	}
	if to != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *to)
		argIndex++
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (s *LedgerService) setLockTimeout(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.cfg.LockTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}

const accountColumns = `id, user_id, account_name, account_number, account_type, currency, balance, version`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.AccountName, &a.AccountNumber, &a.AccountType, &a.Currency, &a.Balance, &a.Version)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// lockOwnedAccount takes the row lock on an account scoped to its owner.
// The lock must be held before the balance is read. Deactivated accounts
// are terminal: the owner gets ErrAccountInactive rather than a phantom
// not-found.
func (s *LedgerService) lockOwnedAccount(ctx context.Context, tx *sql.Tx, accountNumber string, userID uuid.UUID) (*models.Account, error) {
	var (
		a         models.Account
		deletedAt sql.NullTime
	)
	err := tx.QueryRowContext(ctx, `
		SELECT `+accountColumns+`, deleted_at
		FROM accounts
		WHERE account_number = $1 AND user_id = $2
		FOR UPDATE`, accountNumber, userID).
		Scan(&a.ID, &a.UserID, &a.AccountName, &a.AccountNumber, &a.AccountType, &a.Currency, &a.Balance, &a.Version, &deletedAt)
	if err != nil {
		return nil, mapLockError(err, models.ErrAccountNotFound)
	}
	if deletedAt.Valid {
		return nil, models.ErrAccountInactive
	}
	return &a, nil
}

// lockAccount is the destination-side variant: any owner, still active.
func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, accountNumber string) (*models.Account, error) {
	account, err := scanAccount(tx.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE account_number = $1 AND deleted_at IS NULL
		FOR UPDATE`, accountNumber))
	if err != nil {
		return nil, mapLockError(err, models.ErrRecipientNotFound)
	}
	return account, nil
}

func (s *LedgerService) findOwnedAccount(ctx context.Context, accountNumber string, userID uuid.UUID) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE account_number = $1 AND user_id = $2 AND deleted_at IS NULL`, accountNumber, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *LedgerService) insertTransaction(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, txType models.TransactionType, amount decimal.Decimal, description string) (*models.Transaction, error) {
	entry := &models.Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.AccountID, entry.Type, entry.Amount, entry.Description, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return entry, nil
}

func (s *LedgerService) updateBalance(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, newBalance decimal.Decimal, version int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		newBalance, accountID, version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrStaleAccount
	}
	return nil
}

// mapLockError translates driver errors into the domain taxonomy:
// missing rows become notFound and Postgres lock_timeout expiry (55P03)
// becomes ErrLockTimeout.
func mapLockError(err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
		return models.ErrLockTimeout
	}
	return err
}
