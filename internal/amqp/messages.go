package amqp

import (
	"encoding/json"
	"fmt"

	"ledger/internal/core"
)

// MessageVersion is the schema version written into every message.
const MessageVersion = 1

// TransactionEventMessage is the wire form of a core.TransactionEvent. It
// carries the full row so consumers never read the database.
type TransactionEventMessage struct {
	Version int `json:"version"`
	core.TransactionEvent
}

// NewTransactionEventMessage wraps an event for publishing
func NewTransactionEventMessage(e core.TransactionEvent) *TransactionEventMessage {
	return &TransactionEventMessage{Version: MessageVersion, TransactionEvent: e}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON decodes and checks a message body
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Version != MessageVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	if msg.Transaction.ID <= 0 {
		return nil, fmt.Errorf("event without transaction id")
	}
	return &msg, nil
}
