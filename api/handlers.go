package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"itcwallet/application"
	"itcwallet/application/dto"
	"itcwallet/domain/entities"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxWebhookBodyBytes = 1 << 20

// Handler serves the wallet HTTP API
type Handler struct {
	wallet       *application.WalletApp
	cashouts     *application.CashoutOrchestrator
	destinations *application.DestinationAccountApp
	webhooks     *application.WebhookApp
}

// NewHandler creates a new HTTP handler over the application services
func NewHandler(
	wallet *application.WalletApp,
	cashouts *application.CashoutOrchestrator,
	destinations *application.DestinationAccountApp,
	webhooks *application.WebhookApp,
) *Handler {
	return &Handler{
		wallet:       wallet,
		cashouts:     cashouts,
		destinations: destinations,
		webhooks:     webhooks,
	}
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// WALLET
// =============================================================================

// GetWallet returns the caller's balance and wallet status
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.wallet.GetWalletSnapshot(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// GetTransactions returns one page of the caller's transactions, newest first
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset", err)
		return
	}

	page, err := h.wallet.GetTransactionHistory(r.Context(), UserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// =============================================================================
// CASH-OUTS
// =============================================================================

// QuoteCashout returns the fee breakdown for a cash-out without reserving tokens
func (h *Handler) QuoteCashout(w http.ResponseWriter, r *http.Request) {
	var body CashoutRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	quote, err := h.cashouts.QuoteCashout(r.Context(), UserIDFromContext(r.Context()), body.AmountTokens, body.PayoutType)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// RequestCashout converts the caller's tokens into a payout
func (h *Handler) RequestCashout(w http.ResponseWriter, r *http.Request) {
	var body CashoutRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.cashouts.RequestCashout(r.Context(), dto.CashoutCommand{
		UserID:       UserIDFromContext(r.Context()),
		AmountTokens: body.AmountTokens,
		PayoutType:   body.PayoutType,
	})
	if err != nil {
		writeCashoutError(w, r, result, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetCashout returns one of the caller's cash-out requests
func (h *Handler) GetCashout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cash-out id", nil)
		return
	}

	request, err := h.cashouts.GetCashout(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// =============================================================================
// DESTINATION ACCOUNT
// =============================================================================

// GetDestinationAccount returns the caller's payout destination
func (h *Handler) GetDestinationAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.destinations.GetDestinationAccount(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "no destination account", nil)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// SetupDestinationAccount creates the caller's payout destination at the processor
func (h *Handler) SetupDestinationAccount(w http.ResponseWriter, r *http.Request) {
	var body DestinationAccountRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	account, err := h.destinations.SetupDestinationAccount(r.Context(), UserIDFromContext(r.Context()), body.Email, body.Country)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// SyncDestinationAccount refreshes the caller's payout capabilities from the processor
func (h *Handler) SyncDestinationAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.destinations.SyncDestinationAccount(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// =============================================================================
// INTERNAL
// =============================================================================

// CreateLedgerEntry credits a wallet on behalf of another service
func (h *Handler) CreateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	var body LedgerEntryRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.wallet.Credit(r.Context(), dto.CreditCommand{
		UserID:           body.UserID,
		Type:             body.Type,
		Amount:           body.Amount,
		Reason:           body.Reason,
		ReferenceID:      body.ReferenceID,
		Metadata:         body.Metadata,
		DedupByReference: body.DedupByReference,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// SetWalletStatus freezes or unfreezes a user's wallet
func (h *Handler) SetWalletStatus(w http.ResponseWriter, r *http.Request) {
	var body WalletStatusRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	userID := chi.URLParam(r, "userId")
	if err := h.wallet.SetWalletStatus(r.Context(), userID, body.Status); err != nil {
		writeDomainError(w, r, err)
		return
	}

	snapshot, err := h.wallet.GetWalletSnapshot(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// VerifyWallet replays a user's ledger against the cached balance
func (h *Handler) VerifyWallet(w http.ResponseWriter, r *http.Request) {
	verification, err := h.wallet.VerifyWallet(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verification)
}

// =============================================================================
// WEBHOOKS
// =============================================================================

// ProcessorWebhook receives payout and account events from the payment processor
func (h *Handler) ProcessorWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	outcome, err := h.webhooks.HandleProcessorWebhook(r.Context(), payload, r.Header.Get("Processor-Signature"))
	switch {
	case errors.Is(err, entities.ErrWebhookSignatureInvalid):
		writeError(w, http.StatusBadRequest, "invalid signature", nil)
		return
	case errors.Is(err, entities.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, "invalid payload", nil)
		return
	case err != nil:
		log.WithError(err).Error("Processor webhook will be redelivered")
		writeError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Outcome: outcome})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return value, nil
}
