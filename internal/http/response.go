package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

// Client-facing messages. Internal failures never expose their cause.
const (
	MsgWelcome            = "Welcome to the Transactions API"
	MsgAllFieldsRequired  = "All fields are required"
	MsgInvalidID          = "Invalid transaction ID"
	MsgNotFound           = "Transaction not found"
	MsgDeleted            = "Transaction deleted successfully"
	MsgInternal           = "Internal server error"
	MsgTooManyRequests    = "Too many requests, please try again later."
	MsgInvalidBody        = "Invalid request body"
	MsgBodyTooLarge       = "Request body too large"
	MsgServiceUnavailable = "Service unavailable"
)

// StatusClientClosedRequest marks requests the caller abandoned before a
// response was written. Nothing reads the body, so none is sent.
const StatusClientClosedRequest = 499

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// statusFor maps an error to the response status and message.
func statusFor(err error) (int, string) {
	var verr *core.ValidationError
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, MsgBodyTooLarge
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, MsgInvalidBody
	case errors.As(err, &verr):
		switch {
		case verr.Field == "id":
			return http.StatusBadRequest, MsgInvalidID
		case verr.Reason == "is required":
			return http.StatusBadRequest, MsgAllFieldsRequired
		default:
			return http.StatusBadRequest, verr.Error()
		}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, MsgNotFound
	case errors.Is(err, core.ErrQuotaExceeded):
		return http.StatusTooManyRequests, MsgTooManyRequests
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ""
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

// writeError writes the mapped error response. Internal errors were already
// logged with their identifiers by the service; anything unexpected is
// logged here.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status == StatusClientClosedRequest {
		w.WriteHeader(status)
		return
	}
	if status == http.StatusInternalServerError && !errors.Is(err, core.ErrInternal) {
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).ErrorContext(ctx, "Unhandled error",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal)
	}
	writeMessage(w, status, msg)
}
