package sheets

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionMirror keeps a spreadsheet copy of the ledger. Both
	// operations are idempotent so redelivered events are harmless.
	TransactionMirror interface {
		// Upsert writes the row for t, replacing an existing row with the same id.
		Upsert(ctx context.Context, t core.Transaction) error
		// Remove deletes the row for id; a missing row is not an error.
		Remove(ctx context.Context, id int64) error
	}
)
