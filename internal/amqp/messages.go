package amqp

import (
	"encoding/json"
	"time"
)

// Event types published on the ledger events queue.
const (
	EventTransactionRecorded = "transaction.recorded"
	EventBudgetExceeded      = "budget.exceeded"
)

// LedgerEvent is a lightweight notification about a ledger mutation.
// Consumers fetch full rows from the store; the event carries identity only.
type LedgerEvent struct {
	Type        string    `json:"type"`
	OwnerID     int64     `json:"owner_id"`
	Transaction int64     `json:"transaction_id,omitempty"`
	Category    string    `json:"category,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewTransactionRecorded(ownerID, txID int64, category string, amountCents int64) *LedgerEvent {
	return &LedgerEvent{
		Type:        EventTransactionRecorded,
		OwnerID:     ownerID,
		Transaction: txID,
		Category:    category,
		AmountCents: amountCents,
		Timestamp:   time.Now(),
	}
}

func NewBudgetExceeded(ownerID int64, category string, exceededByCents int64) *LedgerEvent {
	return &LedgerEvent{
		Type:        EventBudgetExceeded,
		OwnerID:     ownerID,
		Category:    category,
		AmountCents: exceededByCents,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON creates an event from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
