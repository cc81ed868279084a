package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"
	"itcwallet/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// cashoutService implements the cash-out steps that touch the ledger
type cashoutService struct {
	cashoutRepo    interfaces.CashoutRepository
	ledger         interfaces.LedgerService
	eventPublisher interfaces.EventPublisher
	now            func() time.Time
}

// NewCashoutService creates a cash-out service bound to the repositories of one unit of work
func NewCashoutService(
	cashoutRepo interfaces.CashoutRepository,
	ledger interfaces.LedgerService,
	eventPublisher interfaces.EventPublisher,
) interfaces.CashoutService {
	return &cashoutService{
		cashoutRepo:    cashoutRepo,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

// Reserve debits the request's tokens and stores the request as reserved
func (s *cashoutService) Reserve(ctx context.Context, request *entities.CashoutRequest) (*entities.LedgerResult, error) {
	previous := request.Status

	result, err := s.ledger.ApplyEntry(ctx, entities.LedgerEntry{
		UserID:      request.UserID,
		Type:        entities.TransactionTypeCashout,
		Amount:      request.AmountTokens.Neg(),
		Reason:      fmt.Sprintf("Cash-out of %s tokens", request.AmountTokens.StringFixed(entities.CurrencyPrecision)),
		ReferenceID: entities.Ref(request.ReferenceID()),
		USDValue:    decimal.NewNullDecimal(request.GrossCurrency),
		Metadata: map[string]any{
			"cashoutRequestId": request.ID.String(),
			"payoutType":       string(request.PayoutType),
			"netCurrency":      request.NetCurrency.StringFixed(entities.CurrencyPrecision),
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		return nil, fmt.Errorf("%w: cash-out %s already reserved", entities.ErrDuplicateEntry, request.ID)
	}

	if err := request.Reserve(s.now()); err != nil {
		return nil, err
	}
	if err := s.cashoutRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create cash-out request: %w", err)
	}

	s.publishTransition(request, previous)
	return result, nil
}

// RecordTransfer moves a reserved request to transferring
func (s *cashoutService) RecordTransfer(ctx context.Context, id uuid.UUID, transferID, payoutID string) (*entities.CashoutRequest, error) {
	request, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}

	if request.Status != entities.CashoutStatusReserved {
		// a webhook got here first
		log.WithFields(log.Fields{
			"cashoutRequestId": id,
			"status":           request.Status,
		}).Info("Cash-out already past reserved, not recording transfer")
		return request, nil
	}

	previous := request.Status
	if err := request.MarkTransferring(transferID, payoutID, s.now()); err != nil {
		return nil, err
	}
	if err := s.cashoutRepo.Update(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to update cash-out request: %w", err)
	}

	s.publishTransition(request, previous)
	return request, nil
}

// Compensate marks an unfinished request failed and credits the reserved tokens back.
// Failed requests only get the refund if it is missing. Paid requests cannot be compensated.
func (s *cashoutService) Compensate(ctx context.Context, id uuid.UUID, code, message string) (*entities.CashoutRequest, error) {
	request, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case request.Status.AwaitingProcessor():
		previous := request.Status
		if err := request.MarkFailed(code, message, s.now()); err != nil {
			return nil, err
		}
		if _, err := s.refund(ctx, request); err != nil {
			return nil, err
		}
		if err := s.cashoutRepo.Update(ctx, request); err != nil {
			return nil, fmt.Errorf("failed to update cash-out request: %w", err)
		}
		s.publishTransition(request, previous)
	case request.Status == entities.CashoutStatusFailed:
		if _, err := s.refund(ctx, request); err != nil {
			return nil, err
		}
	case request.Status == entities.CashoutStatusRefunded:
	default:
		return nil, fmt.Errorf("%w: cannot compensate %s cash-out %s", entities.ErrInvalidStateTransition, request.Status, id)
	}

	return request, nil
}

// refund credits the reserved tokens back once per request.
// It returns false when the refund had already been recorded.
func (s *cashoutService) refund(ctx context.Context, request *entities.CashoutRequest) (bool, error) {
	result, err := s.ledger.ApplyEntry(ctx, refundEntry(request))
	if err != nil {
		return false, fmt.Errorf("failed to refund cash-out %s: %w", request.ID, err)
	}
	if !result.Duplicate {
		log.WithFields(log.Fields{
			"cashoutRequestId": request.ID,
			"userId":           request.UserID,
			"amount":           request.AmountTokens.String(),
		}).Info("Refunded reserved cash-out tokens")
	}
	return !result.Duplicate, nil
}

func (s *cashoutService) lock(ctx context.Context, id uuid.UUID) (*entities.CashoutRequest, error) {
	request, err := s.cashoutRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cash-out request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("%w: %s", entities.ErrCashoutNotFound, id)
	}
	return request, nil
}

func (s *cashoutService) publishTransition(request *entities.CashoutRequest, previous entities.CashoutStatus) {
	publishCashoutTransition(s.eventPublisher, request, previous)
}

func refundEntry(request *entities.CashoutRequest) entities.LedgerEntry {
	return entities.LedgerEntry{
		UserID:      request.UserID,
		Type:        entities.TransactionTypeRefund,
		Amount:      request.AmountTokens,
		Reason:      fmt.Sprintf("Refund of failed cash-out %s", request.ID),
		ReferenceID: entities.Ref(request.ReferenceID()),
		USDValue:    decimal.NewNullDecimal(request.GrossCurrency),
		Metadata: map[string]any{
			"cashoutRequestId": request.ID.String(),
		},
	}
}

func publishCashoutTransition(publisher interfaces.EventPublisher, request *entities.CashoutRequest, previous entities.CashoutStatus) {
	log.WithFields(log.Fields{
		"cashoutRequestId": request.ID,
		"userId":           request.UserID,
		"oldStatus":        previous,
		"newStatus":        request.Status,
	}).Info("Cash-out status changed")

	err := publisher.Publish(events.CashoutStatusChangeEvent{
		CashoutRequestID: request.ID,
		UserID:           request.UserID,
		OldStatus:        previous,
		NewStatus:        request.Status,
		NetCurrency:      request.NetCurrency,
		FailureCode:      request.FailureCode,
	})
	if err != nil {
		log.WithError(err).WithField("cashoutRequestId", request.ID).Warn("Failed to publish cash-out status event")
	}
}

// IsRejection reports whether err ends a cash-out before anything is reserved
func IsRejection(err error) bool {
	return errors.Is(err, entities.ErrInsufficientBalance) ||
		errors.Is(err, entities.ErrPayoutTooSmall) ||
		errors.Is(err, entities.ErrCashoutBelowMinimum) ||
		errors.Is(err, entities.ErrDestinationNotReady) ||
		errors.Is(err, entities.ErrWalletFrozen)
}

// RejectionCode is the failure code reported on a rejected cash-out
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, entities.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, entities.ErrPayoutTooSmall):
		return "payout_too_small"
	case errors.Is(err, entities.ErrCashoutBelowMinimum):
		return "below_minimum"
	case errors.Is(err, entities.ErrDestinationNotReady):
		return "destination_not_ready"
	case errors.Is(err, entities.ErrWalletFrozen):
		return "wallet_frozen"
	}
	return "rejected"
}
