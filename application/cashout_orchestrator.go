package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itcwallet/application/dto"
	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"
	"itcwallet/domain/services"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	payoutCurrency       = "usd"
	recoveryBatchSize    = 100
	compensationAttempts = 5

	failureCodeReservationExpired = "reservation_expired"
	failureCodeTransferReversed   = "transfer_reversed"
)

// errTransferUnresolved marks a transfer call whose outcome could not be confirmed.
// The reservation is left for the recovery worker instead of being refunded.
var errTransferUnresolved = errors.New("transfer outcome unknown")

// CashoutOrchestrator runs the cash-out saga: reserve tokens, move money through the
// payout processor, and refund the reservation when the processor step fails.
type CashoutOrchestrator struct {
	uowFactory interfaces.UnitOfWorkFactory
	processor  interfaces.PayoutProcessor
	fees       services.FeeSchedule

	newBackOff func() backoff.BackOff
	now        func() time.Time
}

// NewCashoutOrchestrator creates a new cash-out orchestrator
func NewCashoutOrchestrator(
	uowFactory interfaces.UnitOfWorkFactory,
	processor interfaces.PayoutProcessor,
	fees services.FeeSchedule,
) *CashoutOrchestrator {
	return &CashoutOrchestrator{
		uowFactory: uowFactory,
		processor:  processor,
		fees:       fees,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		now: time.Now,
	}
}

// QuoteCashout computes the fee breakdown for a cash-out without reserving anything
func (o *CashoutOrchestrator) QuoteCashout(ctx context.Context, userID string, amountTokens decimal.Decimal, payoutType entities.PayoutType) (*entities.CashoutQuote, error) {
	payoutType, err := normalizePayoutType(payoutType)
	if err != nil {
		return nil, err
	}
	if err := services.ValidateCashoutAmount(amountTokens, o.fees); err != nil {
		return nil, err
	}

	destination, err := o.loadDestination(ctx, userID)
	if err != nil {
		return nil, err
	}

	quote := o.quote(amountTokens, payoutType, destination)
	if err := services.ValidateQuote(quote, o.fees); err != nil {
		return nil, err
	}
	return &quote, nil
}

// RequestCashout converts tokens to a currency payout.
//
// Rejected cash-outs return a result with status rejected together with the rejection
// error, and nothing is persisted. When the processor step fails the reservation is
// refunded and a *entities.CashoutFailedError is returned alongside a failed result.
func (o *CashoutOrchestrator) RequestCashout(ctx context.Context, cmd dto.CashoutCommand) (*dto.CashoutResult, error) {
	if cmd.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", entities.ErrInvalidEntry)
	}
	payoutType, err := normalizePayoutType(cmd.PayoutType)
	if err != nil {
		return nil, err
	}

	if err := services.ValidateCashoutAmount(cmd.AmountTokens, o.fees); err != nil {
		return o.rejected(cmd.UserID, nil, nil, err)
	}

	destination, err := o.loadDestination(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if destination == nil || !destination.IsReady() {
		return o.rejected(cmd.UserID, nil, nil, fmt.Errorf("%w: complete payout onboarding first", entities.ErrDestinationNotReady))
	}

	quote := o.quote(cmd.AmountTokens, payoutType, destination)
	request := entities.NewCashoutRequest(cmd.UserID, destination.ExternalAccountID, quote, o.now())
	if err := services.ValidateQuote(quote, o.fees); err != nil {
		return o.rejected(cmd.UserID, request, &quote, err)
	}
	if quote.Downgraded() {
		log.WithField("userId", cmd.UserID).Info("Destination cannot receive instant payouts, using standard")
	}

	err = runInUnitOfWork(ctx, o.uowFactory, func(uow interfaces.UnitOfWork) error {
		_, err := newDomainServices(uow, o.fees.TokenUSDRate).cashouts.Reserve(ctx, request)
		return err
	})
	if err != nil {
		if services.IsRejection(err) {
			return o.rejected(cmd.UserID, request, &quote, err)
		}
		return nil, fmt.Errorf("failed to reserve cash-out: %w", err)
	}

	log.WithFields(log.Fields{
		"cashoutRequestId": request.ID,
		"userId":           request.UserID,
		"amountTokens":     request.AmountTokens.String(),
		"netCurrency":      request.NetCurrency.StringFixed(entities.CurrencyPrecision),
		"payoutType":       request.PayoutType,
	}).Info("Reserved tokens for cash-out")

	transferID, payoutID, err := o.sendToProcessor(ctx, request)
	if err != nil {
		return o.failAndRefund(ctx, request, &quote, err)
	}

	return o.recordTransfer(ctx, request, &quote, transferID, payoutID), nil
}

// GetCashout returns one of the user's cash-out requests
func (o *CashoutOrchestrator) GetCashout(ctx context.Context, userID string, id uuid.UUID) (*entities.CashoutRequest, error) {
	var request *entities.CashoutRequest
	err := readOnly(ctx, o.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		request, err = uow.CashoutRepository().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cash-out: %w", err)
	}

	if request == nil || request.UserID != userID {
		return nil, fmt.Errorf("%w: %s", entities.ErrCashoutNotFound, id)
	}
	return request, nil
}

// Recover resolves reservations that have been waiting on the processor for longer than staleAfter.
// A reservation whose transfer exists gets its payout issued again and moves on; one without a
// transfer is refunded.
func (o *CashoutOrchestrator) Recover(ctx context.Context, staleAfter time.Duration) (*dto.RecoveryReport, error) {
	var stale []*entities.CashoutRequest
	err := readOnly(ctx, o.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		stale, err = uow.CashoutRepository().GetStaleReserved(ctx, o.now().Add(-staleAfter), recoveryBatchSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find stale reservations: %w", err)
	}

	report := &dto.RecoveryReport{Examined: len(stale)}
	for _, request := range stale {
		if ctx.Err() != nil {
			break
		}

		outcome, err := o.recoverOne(ctx, request)
		switch outcome {
		case recoveryResumed:
			report.Resumed++
		case recoveryCompensated:
			report.Compensated++
		default:
			report.Failed++
			log.WithFields(log.Fields{
				"cashoutRequestId": request.ID,
				"userId":           request.UserID,
				"error":            err,
			}).Warn("Could not recover cash-out, will retry")
		}
	}

	if report.Examined > 0 {
		log.WithFields(log.Fields{
			"examined":    report.Examined,
			"resumed":     report.Resumed,
			"compensated": report.Compensated,
			"failed":      report.Failed,
		}).Info("Cash-out recovery pass finished")
	}
	return report, nil
}

type recoveryOutcome int

const (
	recoveryFailed recoveryOutcome = iota
	recoveryResumed
	recoveryCompensated
)

func (o *CashoutOrchestrator) recoverOne(ctx context.Context, request *entities.CashoutRequest) (recoveryOutcome, error) {
	transfer, err := o.processor.FindTransfer(ctx, request.TransferIdempotencyKey())
	if err != nil {
		return recoveryFailed, fmt.Errorf("failed to look up transfer: %w", err)
	}

	if transfer == nil {
		_, err := o.compensate(ctx, request.ID, failureCodeReservationExpired, "no transfer was created before the reservation expired")
		if err != nil {
			return recoveryFailed, err
		}
		return recoveryCompensated, nil
	}
	if transfer.Reversed {
		_, err := o.compensate(ctx, request.ID, failureCodeTransferReversed, "the transfer was reversed before a payout was issued")
		if err != nil {
			return recoveryFailed, err
		}
		return recoveryCompensated, nil
	}

	payout, err := o.issuePayout(ctx, request)
	if err != nil {
		if errors.Is(err, entities.ErrProcessorTransient) {
			return recoveryFailed, err
		}
		o.reverseTransfer(ctx, request, transfer.ID)
		code, message := failureDetails(err)
		if _, err := o.compensate(ctx, request.ID, code, message); err != nil {
			return recoveryFailed, err
		}
		return recoveryCompensated, nil
	}

	result := o.recordTransfer(ctx, request, nil, transfer.ID, payout.ID)
	if result.Status == entities.CashoutStatusReserved {
		return recoveryFailed, errors.New("transfer could not be recorded")
	}
	return recoveryResumed, nil
}

// sendToProcessor creates the transfer and the payout. A transfer whose payout
// could not be created is reversed before returning.
func (o *CashoutOrchestrator) sendToProcessor(ctx context.Context, request *entities.CashoutRequest) (string, string, error) {
	transfer, err := o.processor.CreateTransfer(ctx, entities.TransferRequest{
		Amount:               request.NetCurrency,
		Currency:             payoutCurrency,
		DestinationAccountID: request.DestinationAccountID,
		IdempotencyKey:       request.TransferIdempotencyKey(),
		Metadata:             processorMetadata(request),
	})
	if err != nil {
		if isAmbiguousFailure(err) && !o.undoLostTransfer(ctx, request) {
			return "", "", fmt.Errorf("%w: %w", errTransferUnresolved, err)
		}
		return "", "", err
	}

	payout, err := o.issuePayout(ctx, request)
	if err != nil {
		o.reverseTransfer(ctx, request, transfer.ID)
		return "", "", err
	}
	return transfer.ID, payout.ID, nil
}

// undoLostTransfer looks up a transfer whose create call timed out and reverses it if the
// processor created it after all. It returns false when the outcome is still unknown.
func (o *CashoutOrchestrator) undoLostTransfer(ctx context.Context, request *entities.CashoutRequest) bool {
	ctx = context.WithoutCancel(ctx)

	transfer, err := o.processor.FindTransfer(ctx, request.TransferIdempotencyKey())
	if err != nil {
		log.WithFields(log.Fields{
			"cashoutRequestId": request.ID,
			"error":            err,
		}).Warn("Could not confirm transfer after failed create, leaving reservation for recovery")
		return false
	}
	if transfer == nil || transfer.Reversed {
		return true
	}

	log.WithFields(log.Fields{
		"cashoutRequestId": request.ID,
		"transferId":       transfer.ID,
	}).Warn("Transfer was created despite the failed call, reversing it")
	return o.reverseTransfer(ctx, request, transfer.ID) == nil
}

func (o *CashoutOrchestrator) issuePayout(ctx context.Context, request *entities.CashoutRequest) (*entities.ProcessorPayout, error) {
	return o.processor.CreatePayout(ctx, entities.PayoutRequest{
		Amount:               request.NetCurrency,
		Currency:             payoutCurrency,
		DestinationAccountID: request.DestinationAccountID,
		Method:               request.PayoutType,
		IdempotencyKey:       request.PayoutIdempotencyKey(),
		Metadata:             processorMetadata(request),
	})
}

func (o *CashoutOrchestrator) reverseTransfer(ctx context.Context, request *entities.CashoutRequest, transferID string) error {
	if err := o.processor.ReverseTransfer(context.WithoutCancel(ctx), transferID); err != nil {
		log.WithFields(log.Fields{
			"cashoutRequestId": request.ID,
			"transferId":       transferID,
			"error":            err,
		}).Error("Failed to reverse transfer")
		return err
	}
	log.WithFields(log.Fields{
		"cashoutRequestId": request.ID,
		"transferId":       transferID,
	}).Info("Reversed transfer")
	return nil
}

// recordTransfer marks the request transferring. If that cannot be committed the request
// stays reserved and the recovery worker picks it up, since the processor already has it.
func (o *CashoutOrchestrator) recordTransfer(ctx context.Context, request *entities.CashoutRequest, quote *entities.CashoutQuote, transferID, payoutID string) *dto.CashoutResult {
	var updated *entities.CashoutRequest
	err := runInUnitOfWork(ctx, o.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		updated, err = newDomainServices(uow, o.fees.TokenUSDRate).cashouts.RecordTransfer(ctx, request.ID, transferID, payoutID)
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"cashoutRequestId": request.ID,
			"transferId":       transferID,
			"payoutId":         payoutID,
			"error":            err,
		}).Error("Failed to record transfer, recovery will resume the cash-out")
		return &dto.CashoutResult{Request: request, Status: request.Status, Quote: quote}
	}

	log.WithFields(log.Fields{
		"cashoutRequestId": updated.ID,
		"userId":           updated.UserID,
		"transferId":       transferID,
		"payoutId":         payoutID,
	}).Info("Cash-out handed to processor")
	return &dto.CashoutResult{Request: updated, Status: updated.Status, Quote: quote}
}

func (o *CashoutOrchestrator) failAndRefund(ctx context.Context, request *entities.CashoutRequest, quote *entities.CashoutQuote, cause error) (*dto.CashoutResult, error) {
	code, message := failureDetails(cause)
	result := &dto.CashoutResult{
		Request:        request,
		Status:         request.Status,
		Quote:          quote,
		FailureCode:    code,
		FailureMessage: message,
	}
	if errors.Is(cause, errTransferUnresolved) {
		return result, &entities.CashoutFailedError{CashoutRequestID: request.ID.String(), Err: cause}
	}

	log.WithFields(log.Fields{
		"cashoutRequestId": request.ID,
		"userId":           request.UserID,
		"failureCode":      code,
		"error":            cause,
	}).Warn("Processor step of cash-out failed, refunding reservation")

	if compensated, err := o.compensate(ctx, request.ID, code, message); err == nil {
		result.Request = compensated
		result.Status = compensated.Status
		result.Refunded = true
	}

	return result, &entities.CashoutFailedError{
		CashoutRequestID: request.ID.String(),
		Refunded:         result.Refunded,
		Err:              cause,
	}
}

// compensate marks the request failed and refunds its tokens, retrying the commit.
// It keeps going when the caller's context is cancelled.
func (o *CashoutOrchestrator) compensate(ctx context.Context, id uuid.UUID, code, message string) (*entities.CashoutRequest, error) {
	ctx = context.WithoutCancel(ctx)

	attempt := func() (*entities.CashoutRequest, error) {
		var compensated *entities.CashoutRequest
		err := runInUnitOfWork(ctx, o.uowFactory, func(uow interfaces.UnitOfWork) error {
			var err error
			compensated, err = newDomainServices(uow, o.fees.TokenUSDRate).cashouts.Compensate(ctx, id, code, message)
			return err
		})
		if errors.Is(err, entities.ErrInvalidStateTransition) || errors.Is(err, entities.ErrCashoutNotFound) {
			return nil, backoff.Permanent(err)
		}
		return compensated, err
	}

	request, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(o.newBackOff()),
		backoff.WithMaxTries(compensationAttempts),
	)
	if err != nil {
		log.WithFields(log.Fields{
			"cashoutRequestId": id,
			"failureCode":      code,
			"error":            err,
		}).Error("Failed to compensate cash-out")
		return nil, err
	}

	log.WithFields(log.Fields{
		"cashoutRequestId": id,
		"userId":           request.UserID,
		"failureCode":      code,
		"status":           request.Status,
	}).Info("Compensated cash-out")
	return request, nil
}

func (o *CashoutOrchestrator) loadDestination(ctx context.Context, userID string) (*entities.DestinationAccount, error) {
	var destination *entities.DestinationAccount
	err := readOnly(ctx, o.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		destination, err = uow.DestinationAccountRepository().GetByUserID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load destination account: %w", err)
	}
	return destination, nil
}

func (o *CashoutOrchestrator) quote(amountTokens decimal.Decimal, requested entities.PayoutType, destination *entities.DestinationAccount) entities.CashoutQuote {
	quote := services.CalculateCashout(amountTokens, services.EffectivePayoutType(requested, destination), o.fees)
	quote.RequestedPayoutType = requested
	return quote
}

// rejected ends a cash-out that never reserved tokens. When a request was already built
// it is moved to rejected and returned with the result, but it is not persisted.
func (o *CashoutOrchestrator) rejected(userID string, request *entities.CashoutRequest, quote *entities.CashoutQuote, err error) (*dto.CashoutResult, error) {
	if !services.IsRejection(err) {
		return nil, err
	}

	code := services.RejectionCode(err)
	log.WithFields(log.Fields{
		"userId":      userID,
		"failureCode": code,
		"reason":      err.Error(),
	}).Info("Cash-out rejected")

	result := &dto.CashoutResult{
		Status:         entities.CashoutStatusRejected,
		Quote:          quote,
		FailureCode:    code,
		FailureMessage: err.Error(),
	}
	if request != nil {
		if rejectErr := request.Reject(code, err.Error(), o.now()); rejectErr != nil {
			return nil, rejectErr
		}
		result.Request = request
	}
	return result, err
}

// isAmbiguousFailure returns true when the processor may have acted on a call that failed
func isAmbiguousFailure(err error) bool {
	return errors.Is(err, entities.ErrProcessorTransient) || errors.Is(err, context.DeadlineExceeded)
}

func normalizePayoutType(payoutType entities.PayoutType) (entities.PayoutType, error) {
	if payoutType == "" {
		return entities.PayoutTypeStandard, nil
	}
	if !payoutType.IsValid() {
		return "", fmt.Errorf("%w: unknown payout type %q", entities.ErrInvalidEntry, payoutType)
	}
	return payoutType, nil
}

func failureDetails(err error) (string, string) {
	var processorErr *entities.ProcessorError
	if errors.As(err, &processorErr) {
		message := processorErr.Message
		if message == "" {
			message = processorErr.Error()
		}
		return processorErr.FailureCode(), message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "processor_timeout", "the payout processor did not answer in time"
	}
	return "processor_error", err.Error()
}

func processorMetadata(request *entities.CashoutRequest) map[string]string {
	return map[string]string{
		"cashout_request_id": request.ID.String(),
		"user_id":            request.UserID,
	}
}
