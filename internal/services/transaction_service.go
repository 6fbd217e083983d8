package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// EventPublisher receives committed changes. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event core.TransactionEvent) error
}

// CreateInput carries raw caller values. A nil or blank field is missing;
// present values are stored as given.
type CreateInput struct {
	UserID   *string
	Title    *string
	Amount   *string
	Category *string
}

// UpdateInput lists the fields to change; nil fields are left as they are.
type UpdateInput struct {
	Title    *string
	Amount   *string
	Category *string
}

// TransactionService implements the ledger operations on top of a
// Repository. It holds no transaction state between calls.
type TransactionService struct {
	repo      storage.Repository
	publisher EventPublisher
	logger    *log.Logger
	records   *log.StructuredLogger
	now       func() time.Time
}

func NewTransactionService(repo storage.Repository, publisher EventPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentTransaction)
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		records:   log.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// Create validates the input and inserts one transaction.
func (s *TransactionService) Create(ctx context.Context, in CreateInput) (core.Transaction, error) {
	userID, err := required("user_id", in.UserID)
	if err != nil {
		return core.Transaction{}, err
	}
	title, err := required("title", in.Title)
	if err != nil {
		return core.Transaction{}, err
	}
	rawAmount, err := required("amount", in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	category, err := required("category", in.Category)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return core.Transaction{}, err
	}

	n := core.NewTransaction{UserID: userID, Title: title, Amount: amount, Category: category}
	if err := n.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t, err := s.repo.Create(ctx, n)
	if err != nil {
		return core.Transaction{}, s.storageError(ctx, log.OpCreate, err, log.NewFields().WithUserID(userID))
	}

	s.records.LogTransactionCreated(ctx, t.ID, t.UserID, t.Title, t.Amount.String(), t.Category)
	s.publish(ctx, core.EventCreated, t)
	return t, nil
}

// ListByUser returns the user's transactions, newest first. An unknown user
// yields an empty list.
func (s *TransactionService) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storageError(ctx, log.OpList, err, log.NewFields().WithUserID(userID))
	}
	if list == nil {
		list = []core.Transaction{}
	}
	return list, nil
}

// Delete removes the transaction with the given id and returns it.
func (s *TransactionService) Delete(ctx context.Context, rawID string) (core.Transaction, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return core.Transaction{}, err
	}

	t, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, s.storageError(ctx, log.OpDelete, err, log.NewFields().WithTransactionID(id))
	}

	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id, log.FieldUserID, t.UserID)
	s.publish(ctx, core.EventDeleted, t)
	return t, nil
}

// Update changes title, amount or category of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, rawID string, in UpdateInput) (core.Transaction, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return core.Transaction{}, err
	}

	patch := core.TransactionPatch{Title: in.Title, Category: in.Category}
	if in.Amount != nil {
		amount, err := core.ParseAmount(*in.Amount)
		if err != nil {
			return core.Transaction{}, err
		}
		patch.Amount = &amount
	}
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, s.storageError(ctx, log.OpUpdate, err, log.NewFields().WithTransactionID(id))
	}

	s.logger.InfoContext(ctx, "Transaction updated", log.FieldTransactionID, id)
	s.publish(ctx, core.EventUpdated, t)
	return t, nil
}

// Summarize computes balance, income and expenses for a user from a single
// read. Every call runs its own query, so a summary always reflects writes
// that completed before it was requested.
func (s *TransactionService) Summarize(ctx context.Context, userID string) (core.Summary, error) {
	summary, err := s.repo.Summarize(ctx, userID)
	if err != nil {
		return core.Summary{}, s.storageError(ctx, log.OpSummarize, err, log.NewFields().WithUserID(userID))
	}
	return summary, nil
}

// Ping reports whether the store is reachable.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close releases the repository and the publisher, if it can be closed.
func (s *TransactionService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, kind core.EventKind, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	event := core.TransactionEvent{Kind: kind, Transaction: t, OccurredAt: s.now().UTC()}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// The write is durable already; the mirror catches up on the next event.
		s.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldEventKind, string(kind),
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
	}
}

// storageError logs a store failure with its identifiers and hides it
// behind an InternalError. A caller that went away gets its context error
// back instead; that is not a store failure.
func (s *TransactionService) storageError(ctx context.Context, op string, err error, fields log.LogFields) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.DebugContext(ctx, "Request cancelled by caller",
			log.FieldOperation, op, log.FieldError, ctxErr)
		return ctxErr
	}
	s.records.LogError(ctx, "Storage operation failed", err, log.ComponentTransaction, op,
		fields.WithErrorType(log.ErrorTypeDatabase))
	return &core.InternalError{Op: op, Err: err}
}

// ParseID parses a transaction id path segment. Only a plain base-10
// integer is accepted.
func ParseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &core.ValidationError{Field: "id", Reason: "is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &core.ValidationError{Field: "id", Reason: "must be an integer"}
	}
	return id, nil
}

func required(field string, v *string) (string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", &core.ValidationError{Field: field, Reason: "is required"}
	}
	return *v, nil
}
