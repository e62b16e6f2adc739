package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
)

// Repository persists pending-payment records for redirect flows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payment-intent repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists the intent before the terminal navigates away.
func (r *Repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	if intent.Status == "" {
		intent.Status = enums.ProviderStatusPending
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

// FindByCorrelationID loads one intent.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// SetProviderTx records the provider handle once initiation returns.
func (r *Repository) SetProviderTx(ctx context.Context, correlationID, providerTxID, paymentURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("correlation_id = ?", correlationID).
		Updates(map[string]any{
			"provider_tx_id": providerTxID,
			"payment_url":    paymentURL,
		}).Error
}

// ResolveStatus stamps the terminal provider status.
func (r *Repository) ResolveStatus(ctx context.Context, correlationID string, status enums.ProviderStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("correlation_id = ?", correlationID).
		Updates(map[string]any{
			"status":      status,
			"resolved_at": at,
		}).Error
}
