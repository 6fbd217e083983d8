package http

import (
	"context"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/services"
)

// TransactionService is the business API the handlers depend on.
type TransactionService interface {
	Create(ctx context.Context, in services.CreateInput) (core.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]core.Transaction, error)
	Update(ctx context.Context, rawID string, in services.UpdateInput) (core.Transaction, error)
	Delete(ctx context.Context, rawID string) (core.Transaction, error)
	Summarize(ctx context.Context, userID string) (core.Summary, error)
	Ping(ctx context.Context) error
}

var _ TransactionService = (*services.TransactionService)(nil)

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(MsgWelcome))
}

// handleListTransactions serves GET /api/transactions/{userId}.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateTransaction serves POST /api/transactions with a JSON or
// form-encoded body.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	f, err := p.Fields("user_id", "title", "amount", "category")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	t, err := s.service.Create(r.Context(), services.CreateInput{
		UserID:   f["user_id"],
		Title:    f["title"],
		Amount:   f["amount"],
		Category: f["category"],
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleUpdateTransaction serves PUT /api/transactions/{id}. Only title,
// amount and category can change.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	rawID := r.PathValue("id")
	if _, err := services.ParseID(rawID); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	f, err := p.Fields("title", "amount", "category")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	t, err := s.service.Update(r.Context(), rawID, services.UpdateInput{
		Title:    f["title"],
		Amount:   f["amount"],
		Category: f["category"],
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTransaction serves DELETE /api/transactions/{id}.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeMessage(w, http.StatusOK, MsgDeleted)
}

// handleSummary serves GET /api/transactions/summary/{userId}.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summarize(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady pings storage; an unreachable store or open breaker is 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
		writeMessage(w, http.StatusServiceUnavailable, MsgServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
