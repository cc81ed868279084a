package entities

import "time"

// DestinationAccount is the user's payout account at the external processor
type DestinationAccount struct {
	UserID                 string    `db:"user_id" json:"userId"`
	ExternalAccountID      string    `db:"external_account_id" json:"externalAccountId"`
	OnboardingComplete     bool      `db:"onboarding_complete" json:"onboardingComplete"`
	PayoutsEnabled         bool      `db:"payouts_enabled" json:"payoutsEnabled"`
	InstantPayoutsEligible bool      `db:"instant_payouts_eligible" json:"instantPayoutsEligible"`
	RequirementsDue        []string  `db:"requirements_due" json:"requirementsDue"`
	LastSyncedAt           time.Time `db:"last_synced_at" json:"lastSyncedAt"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt"`
}

// IsReady returns true if the processor will accept payouts to this account
func (d *DestinationAccount) IsReady() bool {
	return d.PayoutsEnabled
}

// SupportsInstant returns true if instant payouts can be requested
func (d *DestinationAccount) SupportsInstant() bool {
	return d.PayoutsEnabled && d.InstantPayoutsEligible
}

// ApplyProcessorAccount copies capability flags reported by the processor
func (d *DestinationAccount) ApplyProcessorAccount(account *ProcessorAccount, now time.Time) {
	d.ExternalAccountID = account.ID
	d.OnboardingComplete = account.DetailsSubmitted
	d.PayoutsEnabled = account.PayoutsEnabled
	d.InstantPayoutsEligible = account.InstantPayoutsEligible
	d.RequirementsDue = append([]string(nil), account.RequirementsDue...)
	if d.RequirementsDue == nil {
		d.RequirementsDue = []string{}
	}
	d.LastSyncedAt = now
}

// ProcessorAccount is the processor's view of a destination account
type ProcessorAccount struct {
	ID                     string   `json:"id"`
	DetailsSubmitted       bool     `json:"details_submitted"`
	PayoutsEnabled         bool     `json:"payouts_enabled"`
	InstantPayoutsEligible bool     `json:"instant_payouts_eligible"`
	RequirementsDue        []string `json:"requirements_due"`
}
