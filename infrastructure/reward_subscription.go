package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/infrastructure/observability"
)

const rewardRequestStream = "itc_reward_requests"

// RewardRequestHandler processes raw reward request messages
type RewardRequestHandler interface {
	HandleRewardRequested(ctx context.Context, data []byte) error
}

// SubscribeRewardRequests consumes reward requests published by other services.
// Requests that can never succeed are terminated instead of redelivered.
func SubscribeRewardRequests(client *NATSClient, handler RewardRequestHandler, metrics *observability.MetricsProvider) error {
	if err := client.EnsureStream(rewardRequestStream, "Reward credit requests", []string{SubjectRewardsRequested}, 7*24*time.Hour); err != nil {
		return fmt.Errorf("failed to ensure reward request stream: %w", err)
	}

	return client.Subscribe(SubjectRewardsRequested, func(ctx context.Context, data []byte) error {
		metrics.RecordNATSMessageReceived(SubjectRewardsRequested)

		err := handler.HandleRewardRequested(ctx, data)
		if isUnprocessable(err) {
			return fmt.Errorf("%w: %v", ErrPermanentMessage, err)
		}
		return err
	})
}

func isUnprocessable(err error) bool {
	return errors.Is(err, entities.ErrInvalidEntry) ||
		errors.Is(err, entities.ErrInvalidAmount) ||
		errors.Is(err, entities.ErrRewardCeilingExceeded) ||
		errors.Is(err, entities.ErrWalletFrozen)
}
