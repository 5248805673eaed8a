package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUploadLimitExceeded is returned when a subscriber has reached their
// upload limit.
var ErrUploadLimitExceeded = errors.New("upload_limit_exceeded")

// ErrSubscriberNotFound is returned when no subscriber record exists for the
// user yet (the client is expected to reconcile first).
var ErrSubscriberNotFound = errors.New("subscriber_not_found")

// SubscriberRepository defines methods for accessing subscriber snapshots.
type SubscriberRepository interface {
	GetByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	GetByUserID(ctx context.Context, userID string) (*model.Subscriber, error)
	// UpsertSnapshot writes the reconciled billing state keyed by email and
	// returns the stored row. file_upload_count is preserved as-is.
	UpsertSnapshot(ctx context.Context, s *model.Subscriber) (*model.Subscriber, error)
	// ReserveUpload atomically increments the upload count while it is below
	// the limit and returns the updated row. Returns ErrUploadLimitExceeded
	// when the subscriber is at their limit.
	ReserveUpload(ctx context.Context, userID string) (*model.Subscriber, error)
	// ReleaseUpload undoes a reservation after a failed upload.
	ReleaseUpload(ctx context.Context, userID string) error
}

type subscriberRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriberRepo creates a new SubscriberRepository.
func NewSubscriberRepo(pool *pgxpool.Pool) SubscriberRepository {
	return &subscriberRepo{pool: pool}
}

const subscriberColumns = `email, user_id, stripe_customer_id, subscribed, subscription_tier, subscription_end, file_upload_count, file_upload_limit, updated_at`

func scanSubscriber(row pgx.Row) (*model.Subscriber, error) {
	var s model.Subscriber
	err := row.Scan(
		&s.Email,
		&s.UserID,
		&s.StripeCustomerID,
		&s.Subscribed,
		&s.SubscriptionTier,
		&s.SubscriptionEnd,
		&s.FileUploadCount,
		&s.FileUploadLimit,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByEmail returns the subscriber keyed by email, or nil if none exists.
func (r *subscriberRepo) GetByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	q := fmt.Sprintf(`SELECT %s FROM subscribers WHERE email = $1`, subscriberColumns)
	s, err := scanSubscriber(r.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscriber by email: %w", err)
	}
	return s, nil
}

// GetByUserID returns the subscriber for a user, or nil if none exists.
func (r *subscriberRepo) GetByUserID(ctx context.Context, userID string) (*model.Subscriber, error) {
	q := fmt.Sprintf(`SELECT %s FROM subscribers WHERE user_id = $1`, subscriberColumns)
	s, err := scanSubscriber(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscriber for user %s: %w", userID, err)
	}
	return s, nil
}

// UpsertSnapshot writes the reconciled billing state. Concurrent calls for the
// same email race on this upsert; last writer wins.
func (r *subscriberRepo) UpsertSnapshot(ctx context.Context, s *model.Subscriber) (*model.Subscriber, error) {
	q := fmt.Sprintf(`
        INSERT INTO subscribers (email, user_id, stripe_customer_id, subscribed, subscription_tier, subscription_end, file_upload_limit, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        ON CONFLICT (email) DO UPDATE
        SET user_id = EXCLUDED.user_id,
            stripe_customer_id = EXCLUDED.stripe_customer_id,
            subscribed = EXCLUDED.subscribed,
            subscription_tier = EXCLUDED.subscription_tier,
            subscription_end = EXCLUDED.subscription_end,
            file_upload_limit = EXCLUDED.file_upload_limit,
            updated_at = NOW()
        RETURNING %s
    `, subscriberColumns)
	stored, err := scanSubscriber(r.pool.QueryRow(ctx, q,
		s.Email,
		s.UserID,
		s.StripeCustomerID,
		s.Subscribed,
		s.SubscriptionTier,
		s.SubscriptionEnd,
		s.FileUploadLimit,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert subscriber %s: %w", s.Email, err)
	}
	return stored, nil
}

// ReserveUpload increments the upload count only while it is below the limit.
// The guard and the increment run in a single statement, so concurrent
// uploads cannot overshoot the limit.
func (r *subscriberRepo) ReserveUpload(ctx context.Context, userID string) (*model.Subscriber, error) {
	q := fmt.Sprintf(`
        UPDATE subscribers
        SET file_upload_count = file_upload_count + 1,
            updated_at = NOW()
        WHERE user_id = $1
          AND file_upload_count < file_upload_limit
        RETURNING %s
    `, subscriberColumns)
	s, err := scanSubscriber(r.pool.QueryRow(ctx, q, userID))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reserve upload for user %s: %w", userID, err)
	}
	// No row updated: either the subscriber is at their limit or the record
	// does not exist yet.
	existing, getErr := r.GetByUserID(ctx, userID)
	if getErr != nil {
		return nil, getErr
	}
	if existing == nil {
		return nil, ErrSubscriberNotFound
	}
	return existing, ErrUploadLimitExceeded
}

// ReleaseUpload decrements the upload count after a failed upload, never
// below zero.
func (r *subscriberRepo) ReleaseUpload(ctx context.Context, userID string) error {
	const q = `
        UPDATE subscribers
        SET file_upload_count = GREATEST(file_upload_count - 1, 0),
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("release upload for user %s: %w", userID, err)
	}
	return nil
}
