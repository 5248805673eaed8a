package service

import (
	"context"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// SubscriptionService reconciles local subscriber snapshots with the payment
// provider's live subscription state.
type SubscriptionService interface {
	// CheckSubscription resolves the caller's billing state from the payment
	// provider, persists the snapshot keyed by email and returns it. The
	// stored upload count is preserved.
	CheckSubscription(ctx context.Context, userID, email string) (*model.Subscriber, error)
	// ReconcileByEmail refreshes the snapshot for an already known subscriber,
	// used by webhook-driven updates. Unknown emails are skipped.
	ReconcileByEmail(ctx context.Context, email string) error
}

type subscriptionService struct {
	repo    repository.SubscriberRepository
	billing BillingProvider
	logger  zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriberRepository, billing BillingProvider, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:    repo,
		billing: billing,
		logger:  logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// CheckSubscription looks up the billing customer by email, inspects their
// active subscription and persists the resolved snapshot. Reconciliation never
// creates a billing customer; that only happens on checkout.
func (s *subscriptionService) CheckSubscription(ctx context.Context, userID, email string) (*model.Subscriber, error) {
	cust, err := s.billing.FindCustomerByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to look up billing customer")
		return nil, err
	}

	snapshot := &model.Subscriber{
		Email:           email,
		UserID:          userID,
		FileUploadLimit: model.BaseUploadLimit,
	}

	if cust == nil {
		s.logger.Info().Str("user_id", userID).Msg("No billing customer found, storing base snapshot")
		stored, err := s.repo.UpsertSnapshot(ctx, snapshot)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to upsert subscriber snapshot")
			return nil, err
		}
		return stored, nil
	}

	snapshot.StripeCustomerID = &cust.ID
	sub, err := s.billing.LatestActiveSubscription(ctx, cust.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("stripe_customer_id", cust.ID).Msg("Failed to fetch active subscription")
		return nil, err
	}
	if sub != nil {
		snapshot.Subscribed = true
		end := sub.CurrentPeriodEnd
		snapshot.SubscriptionEnd = &end
		snapshot.SubscriptionTier, snapshot.FileUploadLimit = model.TierForAmount(sub.PriceUnitAmount)
		s.logger.Info().
			Str("user_id", userID).
			Str("subscription_id", sub.ID).
			Int64("amount", sub.PriceUnitAmount).
			Int("upload_limit", snapshot.FileUploadLimit).
			Msg("Active subscription found")
	}

	stored, err := s.repo.UpsertSnapshot(ctx, snapshot)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to upsert subscriber snapshot")
		return nil, err
	}
	return stored, nil
}

// ReconcileByEmail re-runs reconciliation for the subscriber record holding
// this email. Nothing happens if the user has never checked in.
func (s *subscriptionService) ReconcileByEmail(ctx context.Context, email string) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to look up subscriber for webhook reconciliation")
		return err
	}
	if existing == nil {
		s.logger.Info().Str("email", email).Msg("No subscriber record for webhook event, skipping")
		return nil
	}
	_, err = s.CheckSubscription(ctx, existing.UserID, email)
	return err
}
