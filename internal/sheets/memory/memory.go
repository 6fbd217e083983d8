package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

// Mirror is an in-process TransactionMirror, used when no spreadsheet is
// configured and in tests.
type Mirror struct {
	mu   sync.Mutex
	rows map[int64]core.Transaction
}

var _ sheets.TransactionMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: make(map[int64]core.Transaction)}
}

func (m *Mirror) Upsert(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.ID] = t
	return nil
}

func (m *Mirror) Remove(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// Rows returns the mirrored transactions ordered by id.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Transaction, 0, len(m.rows))
	for _, t := range m.rows {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b core.Transaction) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
