package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Ledger change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	// ActionResync asks the worker to rewrite a user's ledger without a
	// specific triggering transaction.
	ActionResync = "resync"
)

// LedgerChangedMessage tells the mirror worker that a user's transactions
// changed. It carries no amounts; the worker reloads the ledger itself.
type LedgerChangedMessage struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(userID, transactionID, action string) LedgerChangedMessage {
	return LedgerChangedMessage{
		UserID:        userID,
		TransactionID: transactionID,
		Action:        action,
		Timestamp:     time.Now().UTC(),
	}
}

func (m LedgerChangedMessage) Validate() error {
	if m.UserID == "" {
		return errors.New("ledger message without user id")
	}
	switch m.Action {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionResync:
		return nil
	}
	return errors.New("unknown ledger action: " + m.Action)
}

func (m LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return LedgerChangedMessage{}, err
	}
	return msg, msg.Validate()
}
