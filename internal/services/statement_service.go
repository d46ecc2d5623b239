package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bankledger/backend/internal/models"
)

// StatementService composes an account, its holder and its transaction
// history into a renderable statement. Pure read side: it never mutates
// and rides entirely on the ledger's history query.
type StatementService struct {
	db     *sql.DB
	ledger *LedgerService
}

func NewStatementService(db *sql.DB, ledger *LedgerService) *StatementService {
	return &StatementService{db: db, ledger: ledger}
}

// Build produces the statement for an owned account over an optional
// period. The closing balance is the account's committed balance, which
// by the ledger invariant equals the signed sum of its full history.
func (s *StatementService) Build(ctx context.Context, userID uuid.UUID, accountNumber string, from, to *time.Time) (*models.Statement, error) {
	var (
		holderName string
		account    models.Account
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT u.name, a.account_number, a.currency, a.balance
		FROM accounts a
		JOIN users u ON a.user_id = u.id
		WHERE a.account_number = $1 AND a.user_id = $2 AND a.deleted_at IS NULL`,
		accountNumber, userID).
		Scan(&holderName, &account.AccountNumber, &account.Currency, &account.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}

	rows, err := s.ledger.History(ctx, userID, accountNumber, from, to)
	if err != nil {
		return nil, err
	}

	return &models.Statement{
		HolderName:     holderName,
		AccountNumber:  account.AccountNumber,
		Currency:       account.Currency,
		From:           from,
		To:             to,
		Rows:           rows,
		ClosingBalance: account.Balance,
	}, nil
}
