package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/config"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// BillingCustomer is the slice of a payment-provider customer that
// reconciliation needs.
type BillingCustomer struct {
	ID    string
	Email string
}

// BillingSubscription is the slice of an active subscription that
// reconciliation needs.
type BillingSubscription struct {
	ID               string
	PriceUnitAmount  int64
	CurrentPeriodEnd time.Time
}

// BillingProvider abstracts the payment-provider lookups used by
// reconciliation.
type BillingProvider interface {
	// FindCustomerByEmail returns the customer for an email, or nil if none.
	FindCustomerByEmail(ctx context.Context, email string) (*BillingCustomer, error)
	// LatestActiveSubscription returns the most recent active subscription for
	// a customer, or nil if there is none.
	LatestActiveSubscription(ctx context.Context, customerID string) (*BillingSubscription, error)
}

// StripeService manages Stripe integration.
type StripeService struct {
	cfg    *config.Config
	subSvc SubscriptionService
	logger zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(cfg *config.Config, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, logger: lg}
}

// SetSubscriptionService wires the reconciliation service used by webhook
// handling. Set after construction to break the cycle between the two
// services.
func (s *StripeService) SetSubscriptionService(subSvc SubscriptionService) {
	s.subSvc = subSvc
}

// FindCustomerByEmail looks up the Stripe customer for an email (limit 1).
func (s *StripeService) FindCustomerByEmail(ctx context.Context, email string) (*BillingCustomer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := customerpkg.List(params)
	if iter.Next() {
		c := iter.Customer()
		return &BillingCustomer{ID: c.ID, Email: c.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe customers: %w", err)
	}
	return nil, nil
}

// LatestActiveSubscription fetches the customer's active subscription, most
// recent first, limit 1.
func (s *StripeService) LatestActiveSubscription(ctx context.Context, customerID string) (*BillingSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := subscriptionpkg.List(params)
	if iter.Next() {
		sub := iter.Subscription()
		if len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
			return nil, fmt.Errorf("subscription %s has no priced items", sub.ID)
		}
		item := sub.Items.Data[0]
		return &BillingSubscription{
			ID:               sub.ID,
			PriceUnitAmount:  item.Price.UnitAmount,
			CurrentPeriodEnd: time.Unix(item.CurrentPeriodEnd, 0),
		}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe subscriptions for customer %s: %w", customerID, err)
	}
	return nil, nil
}

// getOrCreateCustomer ensures a Stripe customer exists for the user before a
// checkout session. Reconciliation itself never creates customers.
func (s *StripeService) getOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	existing, err := s.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"user_id": userID},
	}
	params.Context = ctx
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for a plan upgrade.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, email, plan string) (string, error) {
	var priceID string
	switch plan {
	case "lite":
		priceID = s.cfg.StripePriceLite
	case "pro":
		priceID = s.cfg.StripePricePro
	default:
		return "", fmt.Errorf("invalid plan: %s", plan)
	}
	customerID, err := s.getOrCreateCustomer(ctx, userID, email)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get or create Stripe customer for checkout session")
		return "", err
	}
	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:         stripe.String(s.cfg.StripeReturnURL + "?status=success"),
		CancelURL:          stripe.String(s.cfg.StripeReturnURL + "?status=cancel"),
		Metadata:           map[string]string{"user_id": userID},
	}
	sessParams.Context = ctx
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *StripeService) CreatePortalSession(ctx context.Context, email string) (string, error) {
	cust, err := s.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if cust == nil {
		s.logger.Error().Str("email", email).Msg("No Stripe customer found when creating portal session")
		return "", fmt.Errorf("no stripe customer for email: %s", email)
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(cust.ID),
		ReturnURL: stripe.String(s.cfg.StripeReturnURL),
	}
	params.Context = ctx
	sess, err := billingsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook processes Stripe webhook events. Subscription lifecycle
// events trigger a re-reconciliation for the affected customer so local
// snapshots stay fresh between client-initiated checks.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	customerID, err := customerIDFromEvent(event)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Invalid webhook payload")
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}
	if customerID == "" {
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	getParams := &stripe.CustomerParams{}
	getParams.Context = ctx
	cust, err := customerpkg.Get(customerID, getParams)
	if err != nil {
		s.logger.Error().Err(err).Str("stripe_customer_id", customerID).Msg("Failed to fetch Stripe customer for webhook event")
		http.Error(w, "failed to fetch customer", http.StatusInternalServerError)
		return
	}
	if cust.Email == "" {
		s.logger.Warn().Str("stripe_customer_id", customerID).Msg("Stripe customer has no email, skipping reconciliation")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := s.subSvc.ReconcileByEmail(ctx, cust.Email); err != nil {
		s.logger.Error().Err(err).Str("stripe_customer_id", customerID).Msg("Failed to reconcile subscriber from webhook")
		http.Error(w, "failed to reconcile subscriber", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// customerIDFromEvent extracts the Stripe customer ID from the events that
// affect subscription state. Returns "" for events this service ignores.
func customerIDFromEvent(event stripe.Event) (string, error) {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return "", fmt.Errorf("unmarshal checkout session: %w", err)
		}
		if cs.Customer == nil {
			return "", nil
		}
		return cs.Customer.ID, nil
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("unmarshal subscription: %w", err)
		}
		if sub.Customer == nil {
			return "", nil
		}
		return sub.Customer.ID, nil
	case "invoice.payment_succeeded", "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return "", fmt.Errorf("unmarshal invoice: %w", err)
		}
		if invoice.Customer == nil {
			return "", nil
		}
		return invoice.Customer.ID, nil
	default:
		return "", nil
	}
}
