package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bankledger/backend/internal/models"
)

func TestStatementService_Build(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewStatementService(db, NewLedgerService(db, testLedgerConfig()))
	userID := uuid.New()
	accountID := uuid.New()

	headerPattern := `SELECT u.name, a.account_number, a.currency, a.balance FROM accounts a JOIN users u ON a.user_id = u.id`

	t.Run("composes holder, rows and closing balance", func(t *testing.T) {
		mock.ExpectQuery(headerPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(sqlmock.NewRows([]string{"name", "account_number", "currency", "balance"}).
				AddRow("Jane Doe", "100000000008", "USD", "350.00"))
		mock.ExpectQuery(findOwnedPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(accountRow(accountID, userID, "100000000008", "350.00", 1))
		mock.ExpectQuery("SELECT id, account_id, type, amount, description, created_at FROM transactions").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "type", "amount", "description", "created_at"}).
				AddRow(uuid.New().String(), accountID.String(), "Credit", "400.00", "salary", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)).
				AddRow(uuid.New().String(), accountID.String(), "Debit", "50.00", "groceries", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

		statement, err := service.Build(context.Background(), userID, "100000000008", nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, "Jane Doe", statement.HolderName)
		assert.Equal(t, "100000000008", statement.AccountNumber)
		assert.Equal(t, models.CurrencyUSD, statement.Currency)
		assert.Len(t, statement.Rows, 2)
		assert.True(t, statement.ClosingBalance.Equal(decimal.RequireFromString("350.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown or foreign account", func(t *testing.T) {
		mock.ExpectQuery(headerPattern).
			WithArgs("200000000006", userID).
			WillReturnError(sql.ErrNoRows)

		_, err := service.Build(context.Background(), userID, "200000000006", nil, nil)
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("period carried onto the statement", func(t *testing.T) {
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

		mock.ExpectQuery(headerPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(sqlmock.NewRows([]string{"name", "account_number", "currency", "balance"}).
				AddRow("Jane Doe", "100000000008", "USD", "350.00"))
		mock.ExpectQuery(findOwnedPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(accountRow(accountID, userID, "100000000008", "350.00", 1))
		mock.ExpectQuery("SELECT id, account_id, type, amount, description, created_at FROM transactions").
			WithArgs(accountID, from, to).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "type", "amount", "description", "created_at"}))

		statement, err := service.Build(context.Background(), userID, "100000000008", &from, &to)
		assert.NoError(t, err)
		assert.Equal(t, from, *statement.From)
		assert.Equal(t, to, *statement.To)
		assert.Empty(t, statement.Rows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
