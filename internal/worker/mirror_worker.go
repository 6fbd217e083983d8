package worker

import (
	"context"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

// MirrorWorker applies transaction events to a spreadsheet mirror.
type MirrorWorker struct {
	mirror sheets.TransactionMirror
	logger *log.Logger
}

func NewMirrorWorker(mirror sheets.TransactionMirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single event from AMQP. An error makes the
// consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	t := msg.Transaction
	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldEventKind, string(msg.Kind),
		log.FieldTransactionID, t.ID,
		log.FieldUserID, t.UserID)

	switch msg.Kind {
	case core.EventCreated, core.EventUpdated:
		if err := w.mirror.Upsert(ctx, t); err != nil {
			return fmt.Errorf("mirror upsert %d: %w", t.ID, err)
		}
	case core.EventDeleted:
		if err := w.mirror.Remove(ctx, t.ID); err != nil {
			return fmt.Errorf("mirror remove %d: %w", t.ID, err)
		}
	default:
		// Unknown kinds are rejected by the decoder; nothing to retry here.
		w.logger.WarnContext(ctx, "Ignoring unknown event kind", log.FieldEventKind, string(msg.Kind))
	}
	return nil
}

// Run consumes events from client until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, client *amqp.Client) error {
	w.logger.InfoContext(ctx, "Mirror worker started")
	return client.Consume(ctx, w.HandleEvent)
}
