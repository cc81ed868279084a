package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"itcwallet/application/dto"
	"itcwallet/domain/entities"

	log "github.com/sirupsen/logrus"
)

const (
	refundedMessage      = "cash-out failed, tokens have been returned to your balance"
	refundPendingMessage = "cash-out failed, your tokens will be returned shortly"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("Failed to encode HTTP response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrInvalidEntry),
		errors.Is(err, entities.ErrInvalidAmount),
		errors.Is(err, entities.ErrWebhookSignatureInvalid):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrCashoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrInsufficientBalance),
		errors.Is(err, entities.ErrDestinationNotReady),
		errors.Is(err, entities.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, entities.ErrPayoutTooSmall),
		errors.Is(err, entities.ErrCashoutBelowMinimum),
		errors.Is(err, entities.ErrRewardCeilingExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrWalletFrozen):
		return http.StatusLocked
	case errors.Is(err, entities.ErrProcessorTransient),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, entities.ErrProcessorPermanent):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with its mapped status. Internal errors are logged and
// their details are kept out of the response.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":  r.URL.Path,
			"error": err,
		}).Error("Request failed")
		writeError(w, status, "internal error", nil)
		return
	}
	writeError(w, status, err.Error(), nil)
}

// writeCashoutError reports a rejected or failed cash-out together with how far it got
func writeCashoutError(w http.ResponseWriter, r *http.Request, result *dto.CashoutResult, err error) {
	var failed *entities.CashoutFailedError
	if !errors.As(err, &failed) {
		if result == nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, statusFor(err), ErrorResponse{
			Error:   err.Error(),
			Code:    result.FailureCode,
			Cashout: result,
		})
		return
	}

	status := statusFor(failed.Err)
	if status != http.StatusBadGateway {
		status = http.StatusServiceUnavailable
	}

	message := refundPendingMessage
	if failed.Refunded {
		message = refundedMessage
	}

	resp := ErrorResponse{Error: message, Cashout: result}
	if result != nil {
		resp.Code = result.FailureCode
		if status == http.StatusBadGateway {
			resp.Details = result.FailureMessage
		}
	}
	writeJSON(w, status, resp)
}
