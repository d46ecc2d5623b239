package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypePersonal AccountType = "Personal"
	AccountTypeBusiness AccountType = "Business"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// Account is one ledger consistency unit: its balance must always equal
// the signed sum of its transaction history. Balance is only ever
// written by the ledger service inside a row-locked database transaction.
type Account struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	AccountName   string          `json:"account_name" db:"account_name"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	AccountType   AccountType     `json:"account_type" db:"account_type"`
	Currency      Currency        `json:"currency" db:"currency"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Version       int64           `json:"-" db:"version"` // optimistic lock counter
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
