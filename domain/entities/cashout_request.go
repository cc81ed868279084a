package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashoutStatus represents the state of a cash-out request
type CashoutStatus string

const (
	CashoutStatusRequested    CashoutStatus = "requested"
	CashoutStatusReserved     CashoutStatus = "reserved"
	CashoutStatusTransferring CashoutStatus = "transferring"
	CashoutStatusPaid         CashoutStatus = "paid"
	CashoutStatusFailed       CashoutStatus = "failed"
	CashoutStatusRefunded     CashoutStatus = "refunded"
	CashoutStatusRejected     CashoutStatus = "rejected"
)

// reserved may go straight to paid or failed when a webhook overtakes the
// write that records the processor ids
var cashoutTransitions = map[CashoutStatus][]CashoutStatus{
	CashoutStatusRequested:    {CashoutStatusReserved, CashoutStatusRejected},
	CashoutStatusReserved:     {CashoutStatusTransferring, CashoutStatusPaid, CashoutStatusFailed},
	CashoutStatusTransferring: {CashoutStatusPaid, CashoutStatusFailed},
	CashoutStatusFailed:       {CashoutStatusRefunded},
}

// CanTransitionTo returns true if the state machine allows moving to next
func (s CashoutStatus) CanTransitionTo(next CashoutStatus) bool {
	for _, allowed := range cashoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true once processor events can no longer change the outcome.
// A failed request can still be marked refunded.
func (s CashoutStatus) IsTerminal() bool {
	switch s {
	case CashoutStatusPaid, CashoutStatusFailed, CashoutStatusRefunded, CashoutStatusRejected:
		return true
	}
	return false
}

// AwaitingProcessor returns true while the outcome depends on the payout processor
func (s CashoutStatus) AwaitingProcessor() bool {
	return s == CashoutStatusReserved || s == CashoutStatusTransferring
}

// PayoutType is the payout speed requested from the processor
type PayoutType string

const (
	PayoutTypeStandard PayoutType = "standard"
	PayoutTypeInstant  PayoutType = "instant"
)

// IsValid returns true for supported payout types
func (p PayoutType) IsValid() bool {
	return p == PayoutTypeStandard || p == PayoutTypeInstant
}

// CashoutQuote is the fee breakdown for converting tokens into currency
type CashoutQuote struct {
	AmountTokens        decimal.Decimal `json:"amountTokens"`
	PayoutType          PayoutType      `json:"payoutType"`
	RequestedPayoutType PayoutType      `json:"requestedPayoutType"`
	Gross               decimal.Decimal `json:"gross"`
	PlatformFee         decimal.Decimal `json:"platformFee"`
	ExpediteFee         decimal.Decimal `json:"expediteFee"`
	Net                 decimal.Decimal `json:"net"`
}

// Downgraded returns true if an instant payout was requested but standard will be used
func (q CashoutQuote) Downgraded() bool {
	return q.RequestedPayoutType != q.PayoutType
}

// CashoutRequest tracks one conversion of tokens into a real-currency payout
type CashoutRequest struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	UserID               string          `db:"user_id" json:"userId"`
	DestinationAccountID string          `db:"destination_account_id" json:"destinationAccountId"`
	AmountTokens         decimal.Decimal `db:"amount_tokens" json:"amountTokens"`
	GrossCurrency        decimal.Decimal `db:"gross_currency" json:"grossCurrency"`
	PlatformFeeCurrency  decimal.Decimal `db:"platform_fee_currency" json:"platformFeeCurrency"`
	ExpediteFeeCurrency  decimal.Decimal `db:"expedite_fee_currency" json:"expediteFeeCurrency"`
	NetCurrency          decimal.Decimal `db:"net_currency" json:"netCurrency"`
	PayoutType           PayoutType      `db:"payout_type" json:"payoutType"`
	Status               CashoutStatus   `db:"status" json:"status"`
	ExternalTransferID   *string         `db:"external_transfer_id" json:"externalTransferId,omitempty"`
	ExternalPayoutID     *string         `db:"external_payout_id" json:"externalPayoutId,omitempty"`
	FailureCode          *string         `db:"failure_code" json:"failureCode,omitempty"`
	FailureMessage       *string         `db:"failure_message" json:"failureMessage,omitempty"`
	RequestedAt          time.Time       `db:"requested_at" json:"requestedAt"`
	ProcessedAt          *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
	ArrivedAt            *time.Time      `db:"arrived_at" json:"arrivedAt,omitempty"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updatedAt"`
}

// NewCashoutRequest builds a request in the requested state from a quote
func NewCashoutRequest(userID, destinationAccountID string, quote CashoutQuote, now time.Time) *CashoutRequest {
	return &CashoutRequest{
		ID:                   uuid.New(),
		UserID:               userID,
		DestinationAccountID: destinationAccountID,
		AmountTokens:         quote.AmountTokens,
		GrossCurrency:        quote.Gross,
		PlatformFeeCurrency:  quote.PlatformFee,
		ExpediteFeeCurrency:  quote.ExpediteFee,
		NetCurrency:          quote.Net,
		PayoutType:           quote.PayoutType,
		Status:               CashoutStatusRequested,
		RequestedAt:          now,
		UpdatedAt:            now,
	}
}

// ReferenceID is the ledger reference used by the reservation debit and the refund credit
func (c *CashoutRequest) ReferenceID() string {
	return c.ID.String()
}

// TransferIdempotencyKey is sent with the processor transfer call
func (c *CashoutRequest) TransferIdempotencyKey() string {
	return c.ID.String()
}

// PayoutIdempotencyKey is sent with the processor payout call
func (c *CashoutRequest) PayoutIdempotencyKey() string {
	return c.ID.String() + ":payout"
}

func (c *CashoutRequest) transitionTo(next CashoutStatus, now time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s for cash-out %s", ErrInvalidStateTransition, c.Status, next, c.ID)
	}
	c.Status = next
	c.UpdatedAt = now
	return nil
}

// Reserve records that the token debit has been committed
func (c *CashoutRequest) Reserve(now time.Time) error {
	return c.transitionTo(CashoutStatusReserved, now)
}

// Reject ends a request that was never reserved
func (c *CashoutRequest) Reject(code, message string, now time.Time) error {
	if err := c.transitionTo(CashoutStatusRejected, now); err != nil {
		return err
	}
	c.FailureCode = &code
	c.FailureMessage = &message
	return nil
}

// MarkTransferring records the processor transfer and payout ids
func (c *CashoutRequest) MarkTransferring(transferID, payoutID string, now time.Time) error {
	if err := c.transitionTo(CashoutStatusTransferring, now); err != nil {
		return err
	}
	c.ExternalTransferID = &transferID
	if payoutID != "" {
		c.ExternalPayoutID = &payoutID
	}
	c.ProcessedAt = &now
	return nil
}

// MarkPaid records that the payout arrived
func (c *CashoutRequest) MarkPaid(arrivedAt, now time.Time) error {
	if err := c.transitionTo(CashoutStatusPaid, now); err != nil {
		return err
	}
	c.ArrivedAt = &arrivedAt
	return nil
}

// MarkFailed records the processor failure
func (c *CashoutRequest) MarkFailed(code, message string, now time.Time) error {
	if err := c.transitionTo(CashoutStatusFailed, now); err != nil {
		return err
	}
	c.FailureCode = &code
	c.FailureMessage = &message
	if c.ProcessedAt == nil {
		c.ProcessedAt = &now
	}
	return nil
}

// MarkRefunded records that the reserved tokens were credited back
func (c *CashoutRequest) MarkRefunded(now time.Time) error {
	return c.transitionTo(CashoutStatusRefunded, now)
}
