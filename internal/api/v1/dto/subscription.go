package dto

import (
	"time"

	"app/internal/model"
)

// CheckSubscriptionResponse is the reconciled billing snapshot returned to
// the client, which gates the upload UI off the count/limit pair.
type CheckSubscriptionResponse struct {
	Subscribed       bool       `json:"subscribed"`
	SubscriptionTier *string    `json:"subscription_tier"`
	SubscriptionEnd  *time.Time `json:"subscription_end"`
	FileUploadCount  int        `json:"file_upload_count"`
	FileUploadLimit  int        `json:"file_upload_limit"`
}

// NewCheckSubscriptionResponse maps a subscriber snapshot to the wire format.
func NewCheckSubscriptionResponse(s *model.Subscriber) CheckSubscriptionResponse {
	return CheckSubscriptionResponse{
		Subscribed:       s.Subscribed,
		SubscriptionTier: s.SubscriptionTier,
		SubscriptionEnd:  s.SubscriptionEnd,
		FileUploadCount:  s.FileUploadCount,
		FileUploadLimit:  s.FileUploadLimit,
	}
}

// CheckoutRequest selects the plan for a Stripe Checkout session.
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=lite pro"`
}

// ErrorResponse is the generic failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}
