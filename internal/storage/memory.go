package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"ledger/internal/core"
)

// MemoryRepository keeps transactions in process memory. It is used by
// tests and by DATA_BACKEND=memory for local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]core.Transaction
	now    func() core.Date
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: make(map[int64]core.Transaction),
		now:  core.Today,
	}
}

func (m *MemoryRepository) Create(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := core.Transaction{
		ID:        m.nextID,
		UserID:    n.UserID,
		Title:     n.Title,
		Amount:    n.Amount,
		Category:  n.Category,
		CreatedAt: n.CreatedAt,
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	m.rows[t.ID] = t
	return t, nil
}

func (m *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.Transaction{}
	for _, t := range m.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (m *MemoryRepository) Update(ctx context.Context, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.rows[id]
	if !ok {
		return core.Transaction{}, &core.NotFoundError{ID: id}
	}
	t = patch.Apply(t)
	m.rows[id] = t
	return t, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.rows[id]
	if !ok {
		return core.Transaction{}, &core.NotFoundError{ID: id}
	}
	delete(m.rows, id)
	return t, nil
}

func (m *MemoryRepository) Summarize(ctx context.Context, userID string) (core.Summary, error) {
	if err := ctx.Err(); err != nil {
		return core.Summary{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s core.Summary
	for _, t := range m.rows {
		if t.UserID == userID {
			s = s.Add(t.Amount)
		}
	}
	return s, nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryRepository) Close() error {
	return nil
}
