package dto

import "github.com/shopspring/decimal"

// Reward request kinds
const (
	RewardKindOrder          = "order"
	RewardKindReferral       = "referral"
	RewardKindCommunityBoost = "community_boost"
	RewardKindMilestone      = "milestone"
)

// RewardRequestDTO is the JSON payload collaborators publish on itc.rewards.requested
type RewardRequestDTO struct {
	Kind        string `json:"kind"`
	UserID      string `json:"userId"`
	ReferenceID string `json:"referenceId"`

	// order
	OrderTotal      decimal.NullDecimal `json:"orderTotal"`
	Tier            string              `json:"tier"`
	PromoMultiplier decimal.NullDecimal `json:"promoMultiplier"`
	IsFirstPurchase bool                `json:"isFirstPurchase"`

	// referral
	ReferralKind string `json:"referralKind"`

	// milestone
	MilestoneKind string `json:"milestoneKind"`
}
