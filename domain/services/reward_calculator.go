package services

import (
	"fmt"
	"strings"

	"itcwallet/domain/entities"

	"github.com/shopspring/decimal"
)

// Tier is the customer loyalty tier used by order rewards
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// ReferralKind is the referral milestone being rewarded
type ReferralKind string

const (
	ReferralKindSignup        ReferralKind = "signup"
	ReferralKindFirstPurchase ReferralKind = "first_purchase"
)

// MilestoneKind identifies a one-off achievement reward
type MilestoneKind string

const (
	MilestoneProfileComplete MilestoneKind = "profile_complete"
	MilestoneFirstDesign     MilestoneKind = "first_design"
	MilestoneTenthOrder      MilestoneKind = "tenth_order"
	MilestoneOneYearMember   MilestoneKind = "one_year_member"
)

// TierBonus is the multiplier and flat bonus a tier adds on top of the base reward
type TierBonus struct {
	Multiplier decimal.Decimal
	FlatBonus  decimal.Decimal
}

// RewardSchedule holds every rate and amount the reward calculator uses
type RewardSchedule struct {
	BaseRatePerCurrencyUnit decimal.Decimal
	TokenUSDRate            decimal.Decimal
	CeilingFraction         decimal.Decimal
	FirstPurchaseMultiplier decimal.Decimal
	Tiers                   map[Tier]TierBonus
	ReferralRewards         map[ReferralKind]decimal.Decimal
	CommunityBoostReward    decimal.Decimal
	MilestoneRewards        map[MilestoneKind]decimal.Decimal
}

// DefaultRewardSchedule returns the production reward rates
func DefaultRewardSchedule() RewardSchedule {
	return RewardSchedule{
		BaseRatePerCurrencyUnit: decimal.NewFromInt(10),
		TokenUSDRate:            decimal.RequireFromString("0.01"),
		CeilingFraction:         decimal.RequireFromString("0.5"),
		FirstPurchaseMultiplier: decimal.NewFromInt(2),
		Tiers: map[Tier]TierBonus{
			TierBronze:   {Multiplier: decimal.NewFromInt(1), FlatBonus: decimal.Zero},
			TierSilver:   {Multiplier: decimal.RequireFromString("1.1"), FlatBonus: decimal.NewFromInt(5)},
			TierGold:     {Multiplier: decimal.RequireFromString("1.25"), FlatBonus: decimal.NewFromInt(10)},
			TierPlatinum: {Multiplier: decimal.RequireFromString("1.5"), FlatBonus: decimal.NewFromInt(25)},
		},
		ReferralRewards: map[ReferralKind]decimal.Decimal{
			ReferralKindSignup:        decimal.NewFromInt(50),
			ReferralKindFirstPurchase: decimal.NewFromInt(100),
		},
		CommunityBoostReward: decimal.NewFromInt(5),
		MilestoneRewards: map[MilestoneKind]decimal.Decimal{
			MilestoneProfileComplete: decimal.NewFromInt(25),
			MilestoneFirstDesign:     decimal.NewFromInt(50),
			MilestoneTenthOrder:      decimal.NewFromInt(200),
			MilestoneOneYearMember:   decimal.NewFromInt(500),
		},
	}
}

// RewardBreakdown shows how an order reward was assembled
type RewardBreakdown struct {
	Base               decimal.Decimal `json:"base"`
	TierBonus          decimal.Decimal `json:"tierBonus"`
	PromoBonus         decimal.Decimal `json:"promoBonus"`
	FirstPurchaseBonus decimal.Decimal `json:"firstPurchaseBonus"`
}

// Reward is a computed token amount ready to be credited
type Reward struct {
	Amount    decimal.Decimal          `json:"amount"`
	Type      entities.TransactionType `json:"type"`
	Breakdown *RewardBreakdown         `json:"breakdown,omitempty"`
	Reason    string                   `json:"reason"`
}

// RewardCalculator turns business events into token amounts. It performs no I/O.
type RewardCalculator struct {
	schedule RewardSchedule
}

// NewRewardCalculator creates a calculator for the given schedule
func NewRewardCalculator(schedule RewardSchedule) *RewardCalculator {
	return &RewardCalculator{schedule: schedule}
}

// OrderReward computes the purchase reward for a completed order.
// Tier, promo and first-purchase contributions are additive on top of the base amount.
func (c *RewardCalculator) OrderReward(orderTotal decimal.Decimal, tier Tier, promoMultiplier decimal.Decimal, isFirstPurchase bool) (*Reward, error) {
	if !orderTotal.IsPositive() {
		return nil, fmt.Errorf("%w: order total must be positive", entities.ErrInvalidAmount)
	}
	if tier == "" {
		tier = TierBronze
	}
	bonus, ok := c.schedule.Tiers[tier]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tier %q", entities.ErrInvalidEntry, tier)
	}
	if promoMultiplier.IsZero() {
		promoMultiplier = decimal.NewFromInt(1)
	}
	one := decimal.NewFromInt(1)
	if promoMultiplier.LessThan(one) {
		return nil, fmt.Errorf("%w: promo multiplier %s is below 1", entities.ErrInvalidAmount, promoMultiplier)
	}

	base := orderTotal.Mul(c.schedule.BaseRatePerCurrencyUnit)
	tierBonus := base.Mul(bonus.Multiplier.Sub(one)).Add(bonus.FlatBonus)
	promoBonus := base.Mul(promoMultiplier.Sub(one))
	firstPurchaseBonus := decimal.Zero
	if isFirstPurchase {
		firstPurchaseBonus = base.Mul(c.schedule.FirstPurchaseMultiplier.Sub(one))
	}

	amount := entities.RoundCurrency(base.Add(tierBonus).Add(promoBonus).Add(firstPurchaseBonus))

	if c.schedule.TokenUSDRate.IsPositive() && c.schedule.CeilingFraction.IsPositive() {
		ceilingValue := orderTotal.Mul(c.schedule.CeilingFraction)
		if amount.Mul(c.schedule.TokenUSDRate).GreaterThan(ceilingValue) {
			return nil, &entities.RewardCeilingError{
				Amount:  amount,
				Ceiling: entities.RoundCurrency(ceilingValue.Div(c.schedule.TokenUSDRate)),
			}
		}
	}

	reasons := []string{fmt.Sprintf("%s tier", tier)}
	if promoMultiplier.GreaterThan(one) {
		reasons = append(reasons, fmt.Sprintf("%sx promo", promoMultiplier.String()))
	}
	if isFirstPurchase {
		reasons = append(reasons, "first purchase")
	}

	return &Reward{
		Amount: amount,
		Type:   entities.TransactionTypePurchaseReward,
		Breakdown: &RewardBreakdown{
			Base:               entities.RoundCurrency(base),
			TierBonus:          entities.RoundCurrency(tierBonus),
			PromoBonus:         entities.RoundCurrency(promoBonus),
			FirstPurchaseBonus: entities.RoundCurrency(firstPurchaseBonus),
		},
		Reason: fmt.Sprintf("Order reward on %s (%s)", orderTotal.StringFixed(2), strings.Join(reasons, ", ")),
	}, nil
}

// ReferralReward returns the flat reward for a referral milestone
func (c *RewardCalculator) ReferralReward(kind ReferralKind) (*Reward, error) {
	amount, ok := c.schedule.ReferralRewards[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown referral kind %q", entities.ErrInvalidEntry, kind)
	}
	return &Reward{
		Amount: amount,
		Type:   entities.TransactionTypeReferral,
		Reason: fmt.Sprintf("Referral reward (%s)", kind),
	}, nil
}

// CommunityBoostReward returns the flat reward for receiving a boost,
// independent of what the booster paid
func (c *RewardCalculator) CommunityBoostReward() *Reward {
	return &Reward{
		Amount: c.schedule.CommunityBoostReward,
		Type:   entities.TransactionTypeCommunityBoost,
		Reason: "Community boost received",
	}
}

// MilestoneReward returns the flat reward for an achievement
func (c *RewardCalculator) MilestoneReward(kind MilestoneKind) (*Reward, error) {
	amount, ok := c.schedule.MilestoneRewards[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown milestone %q", entities.ErrInvalidEntry, kind)
	}
	return &Reward{
		Amount: amount,
		Type:   entities.TransactionTypeMilestoneReward,
		Reason: fmt.Sprintf("Milestone reward (%s)", kind),
	}, nil
}
