package models

import "errors"

// Domain errors surfaced by the account and ledger services. Handlers map
// these to HTTP statuses with errors.Is; anything else is treated as a
// persistence failure and reported generically.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrRecipientNotFound = errors.New("recipient account not found")
	ErrAccountInactive   = errors.New("account is deactivated")
	ErrDuplicateName     = errors.New("account name already exists")
	ErrDuplicateNumber   = errors.New("account number already exists")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidRange      = errors.New("to date must not be before from date")
	ErrLockTimeout       = errors.New("timed out waiting for account lock")
	ErrStaleAccount      = errors.New("account was modified concurrently")
)
