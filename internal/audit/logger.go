package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AccountNumber string    `json:"account_number"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

// Logger emits one structured line per money movement. The ledger rows
// are the authoritative record; this stream exists for operators.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogPost(transactionID, accountNumber, txType string, amount decimal.Decimal) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "POST",
		TransactionID: transactionID,
		AccountNumber: accountNumber,
		Amount:        amount.StringFixed(2),
		Status:        "SUCCESS",
		Details:       map[string]string{"type": txType},
	})
}

func (a *Logger) LogTransfer(fromNumber, toNumber string, amount decimal.Decimal, status string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "TRANSFER",
		AccountNumber: fromNumber,
		Amount:        amount.StringFixed(2),
		Status:        status,
		Details: map[string]string{
			"to_account": toNumber,
		},
	})
}

func (a *Logger) LogError(accountNumber string, err error) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		AccountNumber: accountNumber,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
