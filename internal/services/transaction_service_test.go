package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), "userID", userID.String()))
}

func TestTransactionService_CreateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db, testLedgerConfig()))
	userID := uuid.New()
	accountID := uuid.New()

	t.Run("successful credit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lockOwnedPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(ownedAccountRow(accountID, userID, "100000000008", "500.00", 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updatePattern).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body := `{"account_number":"100000000008","type":"Credit","amount":"150.00","description":"salary"}`
		w := httptest.NewRecorder()
		service.CreateTransaction(w, authedRequest("POST", "/api/v1/transactions", body, userID))

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]any
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "Transaction logged successfully", resp["message"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid type fails validation", func(t *testing.T) {
		body := `{"account_number":"100000000008","type":"Withdrawal","amount":"10.00"}`
		w := httptest.NewRecorder()
		service.CreateTransaction(w, authedRequest("POST", "/api/v1/transactions", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Validation failed")
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		body := `{"account_number":"100000000008","type":"Credit","amount":"10.00","balance":"9999.00"}`
		w := httptest.NewRecorder()
		service.CreateTransaction(w, authedRequest("POST", "/api/v1/transactions", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid request body")
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		body := `{"account_number":"100000000008","type":"Debit","amount":"0"}`
		w := httptest.NewRecorder()
		service.CreateTransaction(w, authedRequest("POST", "/api/v1/transactions", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "positive number")
	})

	t.Run("insufficient funds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lockOwnedPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(ownedAccountRow(accountID, userID, "100000000008", "20.00", 1))
		mock.ExpectRollback()

		body := `{"account_number":"100000000008","type":"Debit","amount":"100.00"}`
		w := httptest.NewRecorder()
		service.CreateTransaction(w, authedRequest("POST", "/api/v1/transactions", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Insufficient balance")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deactivated account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lockOwnedPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(deactivatedAccountRow(accountID, userID, "100000000008", "500.00", 1))
		mock.ExpectRollback()

		body := `{"account_number":"100000000008","type":"Credit","amount":"10.00"}`
		w := httptest.NewRecorder()
		service.CreateTransaction(w, authedRequest("POST", "/api/v1/transactions", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Account is deactivated")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		body := `{"account_number":"100000000008","type":"Credit","amount":"10.00"}`
		req := httptest.NewRequest("POST", "/api/v1/transactions", strings.NewReader(body))
		w := httptest.NewRecorder()
		service.CreateTransaction(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTransactionService_Transfer(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db, testLedgerConfig()))
	userID := uuid.New()
	fromID := uuid.New()
	toID := uuid.New()

	t.Run("successful transfer", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lockOwnedPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(ownedAccountRow(fromID, userID, "100000000008", "500.00", 1))
		mock.ExpectQuery(lockAnyPattern).
			WithArgs("200000000006").
			WillReturnRows(accountRow(toID, uuid.New(), "200000000006", "0.00", 1))
		mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updatePattern).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updatePattern).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body := `{"from_account":"100000000008","to_account":"200000000006","amount":"50.00"}`
		w := httptest.NewRecorder()
		service.Transfer(w, authedRequest("POST", "/api/v1/transfers", body, userID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Transfer successful")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same account fails validation", func(t *testing.T) {
		body := `{"from_account":"100000000008","to_account":"100000000008","amount":"50.00"}`
		w := httptest.NewRecorder()
		service.Transfer(w, authedRequest("POST", "/api/v1/transfers", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Validation failed")
	})
}

func TestTransactionService_ListTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db, testLedgerConfig()))
	userID := uuid.New()
	accountID := uuid.New()

	t.Run("missing account number", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.ListTransactions(w, authedRequest("GET", "/api/v1/transactions", "", userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "account_number is required")
	})

	t.Run("invalid date", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.ListTransactions(w, authedRequest("GET", "/api/v1/transactions?account_number=100000000008&from=01-02-2026", "", userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid from date")
	})

	t.Run("fetches history with count", func(t *testing.T) {
		mock.ExpectQuery(findOwnedPattern).
			WithArgs("100000000008", userID).
			WillReturnRows(accountRow(accountID, userID, "100000000008", "500.00", 1))
		mock.ExpectQuery("SELECT id, account_id, type, amount, description, created_at FROM transactions").
			WithArgs(accountID, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "type", "amount", "description", "created_at"}).
				AddRow(uuid.New().String(), accountID.String(), "Credit", "200.00", "salary", time.Now()))

		w := httptest.NewRecorder()
		service.ListTransactions(w, authedRequest("GET", "/api/v1/transactions?account_number=100000000008&from=2026-01-01&to=2026-01-31", "", userID))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, float64(1), resp["count"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestParseDateRange(t *testing.T) {
	t.Run("to bound widened to end of day", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?from=2026-01-01&to=2026-01-31", nil)
		w := httptest.NewRecorder()

		from, to, ok := ParseDateRange(w, req)
		assert.True(t, ok)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *from)
		assert.Equal(t, time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC), *to)
	})

	t.Run("absent bounds stay nil", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()

		from, to, ok := ParseDateRange(w, req)
		assert.True(t, ok)
		assert.Nil(t, from)
		assert.Nil(t, to)
	})

	t.Run("malformed date rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?to=January+5", nil)
		w := httptest.NewRecorder()

		_, _, ok := ParseDateRange(w, req)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
