package core

import "time"

// EventKind names a change to a transaction.
type EventKind string

const (
	EventCreated EventKind = "transaction.created"
	EventUpdated EventKind = "transaction.updated"
	EventDeleted EventKind = "transaction.deleted"
)

// TransactionEvent is emitted after a write has been committed. Transaction
// holds the row as it was after the change, or before it for deletes.
type TransactionEvent struct {
	Kind        EventKind   `json:"kind"`
	Transaction Transaction `json:"transaction"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}
