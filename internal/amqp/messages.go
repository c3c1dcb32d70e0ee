package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to a transaction.
type EventType string

const (
	EventCreated EventType = "created"
	EventDeleted EventType = "deleted"
)

// TransactionEvent is a lightweight notification about a transaction.
// Consumers fetch the full record from storage by ID.
type TransactionEvent struct {
	Type          EventType `json:"type"`
	TransactionID string    `json:"transaction_id"`
	Ledger        string    `json:"ledger"`
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(typ EventType, transactionID, ledger string) *TransactionEvent {
	return &TransactionEvent{
		Type:          typ,
		TransactionID: transactionID,
		Ledger:        ledger,
		Version:       1,
		Timestamp:     time.Now(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and validates an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.TransactionID == "" {
		return nil, fmt.Errorf("event missing transaction_id")
	}
	switch ev.Type {
	case EventCreated, EventDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return &ev, nil
}
