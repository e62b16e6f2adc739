package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
)

// ErrVersionConflict means the record changed under a read/modify/write
// cycle; callers retry with a fresh read.
var ErrVersionConflict = errors.New("cart record version conflict")

// Repository exposes persistence for the single live cart.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActive loads the live cart with its items.
func (r *Repository) FindActive(ctx context.Context) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ?", enums.CartStatusActive).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a new cart record. The partial unique index on status keeps
// a second active row out.
func (r *Repository) Create(ctx context.Context, record *models.CartRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = enums.CartStatusActive
	}
	if record.Version == 0 {
		record.Version = 1
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateWithVersion writes the cart header guarded by the version the caller
// read. The version is bumped in the same statement.
func (r *Repository) UpdateWithVersion(ctx context.Context, record *models.CartRecord, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"version":             expectedVersion + 1,
			"status":              record.Status,
			"discount_code":       record.DiscountCode,
			"discount_type":       record.DiscountType,
			"discount_value":      record.DiscountValue,
			"min_purchase_cents":  record.MinPurchaseCents,
			"currency":            record.Currency,
			"subtotal_cents":      record.SubtotalCents,
			"item_discount_cents": record.ItemDiscountCents,
			"code_discount_cents": record.CodeDiscountCents,
			"tax_cents":           record.TaxCents,
			"total_cents":         record.TotalCents,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	record.Version = expectedVersion + 1
	return nil
}

// ReplaceItems swaps the cart's line set wholesale.
func (r *Repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].CartID = cartID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// MarkStatus transitions the cart out of the active slot, version-guarded.
func (r *Repository) MarkStatus(ctx context.Context, cartID uuid.UUID, expectedVersion int, status enums.CartStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND version = ?", cartID, expectedVersion).
		Updates(map[string]any{
			"version": expectedVersion + 1,
			"status":  status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
