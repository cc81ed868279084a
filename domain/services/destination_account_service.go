package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/events"
	"itcwallet/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type destinationAccountService struct {
	destinationRepo interfaces.DestinationAccountRepository
	eventPublisher  interfaces.EventPublisher
	now             func() time.Time
}

// NewDestinationAccountService creates a destination account service bound to one unit of work
func NewDestinationAccountService(
	destinationRepo interfaces.DestinationAccountRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.DestinationAccountService {
	return &destinationAccountService{
		destinationRepo: destinationRepo,
		eventPublisher:  eventPublisher,
		now:             time.Now,
	}
}

// ApplyProcessorAccount stores the processor's view of an account.
// With an empty userID the local row is found by external account id; an unknown
// account then returns nil without error. The bool reports whether capability flags changed.
func (s *destinationAccountService) ApplyProcessorAccount(ctx context.Context, userID string, account *entities.ProcessorAccount) (*entities.DestinationAccount, bool, error) {
	if account == nil || account.ID == "" {
		return nil, false, fmt.Errorf("%w: processor account id is required", entities.ErrInvalidEntry)
	}

	var (
		existing *entities.DestinationAccount
		err      error
	)
	if userID != "" {
		existing, err = s.destinationRepo.GetByUserID(ctx, userID)
	} else {
		existing, err = s.destinationRepo.GetByExternalID(ctx, account.ID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get destination account: %w", err)
	}

	now := s.now()
	if existing == nil {
		if userID == "" {
			log.WithField("externalAccountId", account.ID).Warn("No destination account for processor account")
			return nil, false, nil
		}
		existing = &entities.DestinationAccount{UserID: userID, CreatedAt: now}
	}

	before := *existing
	existing.ApplyProcessorAccount(account, now)
	changed := before.ExternalAccountID != existing.ExternalAccountID ||
		before.OnboardingComplete != existing.OnboardingComplete ||
		before.PayoutsEnabled != existing.PayoutsEnabled ||
		before.InstantPayoutsEligible != existing.InstantPayoutsEligible ||
		!slices.Equal(before.RequirementsDue, existing.RequirementsDue)

	if err := s.destinationRepo.Upsert(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("failed to save destination account: %w", err)
	}

	if changed {
		err := s.eventPublisher.Publish(events.DestinationAccountUpdatedEvent{
			UserID:                 existing.UserID,
			ExternalAccountID:      existing.ExternalAccountID,
			PayoutsEnabled:         existing.PayoutsEnabled,
			InstantPayoutsEligible: existing.InstantPayoutsEligible,
		})
		if err != nil {
			log.WithError(err).WithField("userId", existing.UserID).Warn("Failed to publish destination account event")
		}
		log.WithFields(log.Fields{
			"userId":                 existing.UserID,
			"externalAccountId":      existing.ExternalAccountID,
			"payoutsEnabled":         existing.PayoutsEnabled,
			"instantPayoutsEligible": existing.InstantPayoutsEligible,
		}).Info("Destination account updated")
	}

	return existing, changed, nil
}
