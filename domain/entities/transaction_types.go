package entities

// TransactionType represents the kind of balance change recorded in the ledger
type TransactionType string

// All transaction types supported by the ledger
const (
	// Earning credits
	TransactionTypePurchaseReward  TransactionType = "purchase_reward"
	TransactionTypeReferral        TransactionType = "referral"
	TransactionTypeCommunityBoost  TransactionType = "community_boost"
	TransactionTypeMilestoneReward TransactionType = "milestone_reward"

	// Spending and cash-out debits
	TransactionTypeRedemption TransactionType = "redemption"
	TransactionTypeCashout    TransactionType = "cashout"

	// Compensation and manual corrections
	TransactionTypeRefund          TransactionType = "refund"
	TransactionTypeAdminAdjustment TransactionType = "admin_adjustment"
)

// IsValid returns true if the type is one the ledger accepts
func (tt TransactionType) IsValid() bool {
	switch tt {
	case TransactionTypePurchaseReward, TransactionTypeReferral, TransactionTypeCommunityBoost,
		TransactionTypeMilestoneReward, TransactionTypeRedemption, TransactionTypeCashout,
		TransactionTypeRefund, TransactionTypeAdminAdjustment:
		return true
	}
	return false
}

// IsCreditType returns true if entries of this type must carry a positive amount
func (tt TransactionType) IsCreditType() bool {
	return tt.IsEarningType() || tt == TransactionTypeRefund
}

// IsDebitType returns true if entries of this type must carry a negative amount
func (tt TransactionType) IsDebitType() bool {
	return tt == TransactionTypeRedemption ||
		tt == TransactionTypeCashout
}

// IsExternalEntryType returns true if other services may submit entries of this type.
// Cash-out debits are written by the cash-out flow and adjustments by operators only.
func (tt TransactionType) IsExternalEntryType() bool {
	return tt.IsCreditType() || tt == TransactionTypeRedemption
}

// IsEarningType returns true for rewards that count towards lifetime earnings
func (tt TransactionType) IsEarningType() bool {
	return tt == TransactionTypePurchaseReward ||
		tt == TransactionTypeReferral ||
		tt == TransactionTypeCommunityBoost ||
		tt == TransactionTypeMilestoneReward
}

// RequiresUniqueReference returns true if at most one entry per (user, type, reference) may exist.
// Order completion, referral signup and milestones are naturally idempotent business events;
// cashout and refund references are the cash-out request id.
func (tt TransactionType) RequiresUniqueReference() bool {
	return tt == TransactionTypePurchaseReward ||
		tt == TransactionTypeReferral ||
		tt == TransactionTypeMilestoneReward ||
		tt == TransactionTypeCashout ||
		tt == TransactionTypeRefund
}

// AllowedOnFrozenWallet returns true if the type may still be applied to a frozen wallet
func (tt TransactionType) AllowedOnFrozenWallet() bool {
	return tt == TransactionTypeRefund ||
		tt == TransactionTypeAdminAdjustment
}
