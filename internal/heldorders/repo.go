package heldorders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
)

// ErrAlreadyTransitioned means the order left the held state between read and
// write; the service maps it to the operator-facing failure.
var ErrAlreadyTransitioned = errors.New("held order already transitioned")

// Repository exposes persistence for parked orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a held-order repository bound to the provided DB.
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

// Create parks a new order.
func (r *Repository) Create(ctx context.Context, order *models.HeldOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.HeldOrderStatusHeld
	}
	if order.Version == 0 {
		order.Version = 1
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads one parked order.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.HeldOrder, error) {
	var order models.HeldOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListHeld returns orders still waiting to be resumed, oldest first.
func (r *Repository) ListHeld(ctx context.Context) ([]models.HeldOrder, error) {
	var orders []models.HeldOrder
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.HeldOrderStatusHeld).
		Order("held_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Transition moves a held order to resumed or discarded. The status guard in
// the WHERE clause makes a second resume lose the race cleanly.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, to enums.HeldOrderStatus, at time.Time) error {
	updates := map[string]any{
		"status":  to,
		"version": gorm.Expr("version + 1"),
	}
	switch to {
	case enums.HeldOrderStatusResumed:
		updates["resumed_at"] = at
	case enums.HeldOrderStatusDiscarded:
		updates["discarded_at"] = at
	}

	result := r.db.WithContext(ctx).
		Model(&models.HeldOrder{}).
		Where("id = ? AND status = ?", id, enums.HeldOrderStatusHeld).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTransitioned
	}
	return nil
}
