package model

import "time"

// Subscription tiers. The zero value (no tier) is the free Base plan.
const (
	TierLite = "Lite"
	TierPro  = "Pro"
)

// Upload limits per tier.
const (
	BaseUploadLimit = 10
	LiteUploadLimit = 100
	ProUploadLimit  = 500
)

// Prices in minor units as configured in Stripe.
const (
	litePriceAmount = 100 // $1.00
	proPriceAmount  = 250 // $2.50
)

// Subscriber is the locally persisted snapshot of a user's billing state,
// refreshed on every reconciliation. It is keyed by email; FileUploadCount is
// maintained by the upload path and never reset by reconciliation.
type Subscriber struct {
	Email            string     `db:"email" json:"email"`
	UserID           string     `db:"user_id" json:"user_id"`
	StripeCustomerID *string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	Subscribed       bool       `db:"subscribed" json:"subscribed"`
	SubscriptionTier *string    `db:"subscription_tier" json:"subscription_tier"`
	SubscriptionEnd  *time.Time `db:"subscription_end" json:"subscription_end"`
	FileUploadCount  int        `db:"file_upload_count" json:"file_upload_count"`
	FileUploadLimit  int        `db:"file_upload_limit" json:"file_upload_limit"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// TierForAmount maps a subscription line-item price (minor units) to a tier
// and its upload limit. Unknown amounts fall back to the Base defaults: no
// tier, limit 10.
func TierForAmount(amount int64) (tier *string, limit int) {
	switch amount {
	case litePriceAmount:
		t := TierLite
		return &t, LiteUploadLimit
	case proPriceAmount:
		t := TierPro
		return &t, ProUploadLimit
	default:
		return nil, BaseUploadLimit
	}
}

// UpgradeMessage returns the call-to-action shown when a subscriber hits their
// upload limit.
func UpgradeMessage(tier *string) string {
	switch {
	case tier == nil:
		return "Please upgrade to Lite plan to continue uploading files."
	case *tier == TierLite:
		return "Please upgrade to Pro plan to continue uploading files."
	default:
		return "Upload limit reached for this month."
	}
}
