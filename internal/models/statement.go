package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is a read-only projection of an account and its transaction
// history over a period. Rendering (PDF or otherwise) happens elsewhere.
type Statement struct {
	HolderName     string
	AccountNumber  string
	Currency       Currency
	From           *time.Time
	To             *time.Time
	Rows           []Transaction
	ClosingBalance decimal.Decimal
}
