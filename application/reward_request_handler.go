package application

import (
	"context"
	"encoding/json"
	"fmt"

	"itcwallet/application/dto"
	"itcwallet/domain/entities"
	"itcwallet/domain/services"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// RewardRequestHandler credits rewards that other services ask for over the message bus
type RewardRequestHandler struct {
	wallet     *WalletApp
	calculator *services.RewardCalculator
}

// NewRewardRequestHandler creates a new reward request handler
func NewRewardRequestHandler(wallet *WalletApp, calculator *services.RewardCalculator) *RewardRequestHandler {
	return &RewardRequestHandler{
		wallet:     wallet,
		calculator: calculator,
	}
}

// HandleRewardRequested decodes a reward request message and credits the reward.
// Invalid requests come back as entities.ErrInvalidEntry, ErrInvalidAmount or
// ErrRewardCeilingExceeded so the caller can drop them instead of redelivering.
func (h *RewardRequestHandler) HandleRewardRequested(ctx context.Context, data []byte) error {
	var request dto.RewardRequestDTO
	if err := json.Unmarshal(data, &request); err != nil {
		return fmt.Errorf("%w: malformed reward request: %v", entities.ErrInvalidEntry, err)
	}
	return h.HandleRewardRequest(ctx, request)
}

// HandleRewardRequest computes and credits one reward
func (h *RewardRequestHandler) HandleRewardRequest(ctx context.Context, request dto.RewardRequestDTO) error {
	if request.UserID == "" {
		return fmt.Errorf("%w: reward request without user id", entities.ErrInvalidEntry)
	}

	reward, dedup, err := h.computeReward(&request)
	if err != nil {
		log.WithFields(log.Fields{
			"userId":      request.UserID,
			"kind":        request.Kind,
			"referenceId": request.ReferenceID,
			"error":       err,
		}).Warn("Rejected reward request")
		return err
	}

	metadata := map[string]any{"rewardKind": request.Kind}
	if reward.Breakdown != nil {
		metadata["breakdown"] = reward.Breakdown
	}

	_, err = h.wallet.Credit(ctx, dto.CreditCommand{
		UserID:           request.UserID,
		Type:             reward.Type,
		Amount:           reward.Amount,
		Reason:           reward.Reason,
		ReferenceID:      entities.Ref(request.ReferenceID),
		Metadata:         metadata,
		DedupByReference: dedup,
	})
	if err != nil {
		return fmt.Errorf("failed to credit %s reward: %w", request.Kind, err)
	}
	return nil
}

// computeReward returns the reward and whether repeats of the reference must be ignored
func (h *RewardRequestHandler) computeReward(request *dto.RewardRequestDTO) (*services.Reward, bool, error) {
	switch request.Kind {
	case dto.RewardKindOrder:
		if request.ReferenceID == "" {
			return nil, false, fmt.Errorf("%w: order rewards need the order id as reference", entities.ErrInvalidEntry)
		}
		if !request.OrderTotal.Valid {
			return nil, false, fmt.Errorf("%w: order total is required", entities.ErrInvalidAmount)
		}
		promo := decimal.NewFromInt(1)
		if request.PromoMultiplier.Valid {
			promo = request.PromoMultiplier.Decimal
		}
		reward, err := h.calculator.OrderReward(request.OrderTotal.Decimal, services.Tier(request.Tier), promo, request.IsFirstPurchase)
		return reward, false, err

	case dto.RewardKindReferral:
		if request.ReferenceID == "" {
			return nil, false, fmt.Errorf("%w: referral rewards need the referred user as reference", entities.ErrInvalidEntry)
		}
		reward, err := h.calculator.ReferralReward(services.ReferralKind(request.ReferralKind))
		if err != nil {
			return nil, false, err
		}
		// one signup and one first purchase reward per referred user
		request.ReferenceID = request.ReferralKind + ":" + request.ReferenceID
		return reward, false, nil

	case dto.RewardKindCommunityBoost:
		if request.ReferenceID == "" {
			return nil, false, fmt.Errorf("%w: community boosts need a reference", entities.ErrInvalidEntry)
		}
		return h.calculator.CommunityBoostReward(), true, nil

	case dto.RewardKindMilestone:
		reward, err := h.calculator.MilestoneReward(services.MilestoneKind(request.MilestoneKind))
		if err != nil {
			return nil, false, err
		}
		if request.ReferenceID == "" {
			request.ReferenceID = "milestone:" + request.MilestoneKind
		}
		return reward, true, nil
	}

	return nil, false, fmt.Errorf("%w: unknown reward kind %q", entities.ErrInvalidEntry, request.Kind)
}
