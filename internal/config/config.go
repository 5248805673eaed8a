package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	// Share links are built against this origin, e.g. https://app.example.com
	AppBaseURL string `envconfig:"APP_BASE_URL" required:"true"`

	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Stripe settings. The secret key may alternatively be resolved from
	// Secret Manager at startup via STRIPE_SECRET_NAME.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeSecretName    string `envconfig:"STRIPE_SECRET_NAME"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceLite     string `envconfig:"STRIPE_PRICE_LITE"`
	StripePricePro      string `envconfig:"STRIPE_PRICE_PRO"`
	StripeReturnURL     string `envconfig:"STRIPE_RETURN_URL"`

	// Download links issued from shares are presigned for this many seconds.
	SignedURLExpirySec int `envconfig:"SIGNED_URL_EXPIRY_SEC" default:"3600"`
	MaxUploadSizeMB    int `envconfig:"MAX_UPLOAD_SIZE_MB" default:"100"`

	// Usage event publishing is disabled when the project ID is empty.
	GCPProjectID    string `envconfig:"GCP_PROJECT_ID"`
	UsageEventTopic string `envconfig:"USAGE_EVENT_TOPIC" default:"usage_events"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
