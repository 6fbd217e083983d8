package worker

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(kind core.EventKind, id int64, title string) *amqp.TransactionEventMessage {
	return amqp.NewTransactionEventMessage(core.TransactionEvent{
		Kind:        kind,
		Transaction: core.Transaction{ID: id, UserID: "u1", Title: title, Amount: core.Money{Cents: -450}, Category: "Food"},
	})
}

func TestMirrorWorkerAppliesEvents(t *testing.T) {
	mirror := memory.New()
	w := NewMirrorWorker(mirror, nil)
	ctx := context.Background()

	require.NoError(t, w.HandleEvent(ctx, event(core.EventCreated, 1, "Coffee")))
	require.NoError(t, w.HandleEvent(ctx, event(core.EventCreated, 2, "Lunch")))
	require.NoError(t, w.HandleEvent(ctx, event(core.EventUpdated, 1, "Tea")))
	require.NoError(t, w.HandleEvent(ctx, event(core.EventDeleted, 2, "Lunch")))

	rows := mirror.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, "Tea", rows[0].Title)
}

func TestMirrorWorkerRedeliveryIsHarmless(t *testing.T) {
	mirror := memory.New()
	w := NewMirrorWorker(mirror, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, w.HandleEvent(ctx, event(core.EventCreated, 1, "Coffee")))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, w.HandleEvent(ctx, event(core.EventDeleted, 1, "Coffee")))
	}
	assert.Empty(t, mirror.Rows())
}

type brokenMirror struct{}

func (brokenMirror) Upsert(context.Context, core.Transaction) error {
	return errors.New("quota exceeded")
}
func (brokenMirror) Remove(context.Context, int64) error { return errors.New("quota exceeded") }

func TestMirrorWorkerReturnsMirrorErrors(t *testing.T) {
	w := NewMirrorWorker(brokenMirror{}, nil)

	err := w.HandleEvent(context.Background(), event(core.EventCreated, 1, "Coffee"))
	assert.ErrorContains(t, err, "mirror upsert 1")

	err = w.HandleEvent(context.Background(), event(core.EventDeleted, 1, "Coffee"))
	assert.ErrorContains(t, err, "mirror remove 1")
}
