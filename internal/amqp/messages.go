package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"saldo/internal/core"
)

// Event names the kind of change a message announces.
type Event string

const (
	EventCreated Event = "created"
	EventUpdated Event = "updated"
	EventDeleted Event = "deleted"
)

// TransactionChangedMessage announces that a transaction was written so that
// every instance can drop the cached balances it affects. It carries only
// what invalidation needs; receivers never read amounts from it.
type TransactionChangedMessage struct {
	Event         Event     `json:"event"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id,omitempty"`
	Date          string    `json:"date"`
	PreviousDate  string    `json:"previous_date,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionChanged builds the message for tx. previous is the date the
// transaction had before an update, zero otherwise.
func NewTransactionChanged(event Event, tx core.Transaction, previous core.Date) TransactionChangedMessage {
	return TransactionChangedMessage{
		Event:         event,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Date:          tx.Date.String(),
		PreviousDate:  previous.String(),
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects messages a receiver cannot act on.
func (m TransactionChangedMessage) Validate() error {
	switch m.Event {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return fmt.Errorf("unknown event %q", m.Event)
	}
	if m.TransactionID == "" {
		return fmt.Errorf("missing transaction id")
	}
	if _, err := core.ParseISODate(m.Date); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if m.PreviousDate != "" {
		if _, err := core.ParseISODate(m.PreviousDate); err != nil {
			return fmt.Errorf("previous date: %w", err)
		}
	}
	return nil
}

// TransactionChangedFromJSON decodes and validates a message.
func TransactionChangedFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
