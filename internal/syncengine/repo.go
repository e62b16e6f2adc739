package syncengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
)

// Repository exposes persistence for the pending-sales queue and the sync
// checkpoint.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a sync repository bound to the provided DB.
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

// Append adds a committed sale to the tail of the queue.
func (r *Repository) Append(ctx context.Context, sale *models.PendingSale) error {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.SyncStatus == "" {
		sale.SyncStatus = enums.SyncStatusPending
	}
	return r.db.WithContext(ctx).Create(sale).Error
}

// NextBatch returns the oldest unsynced sales in commit order.
func (r *Repository) NextBatch(ctx context.Context, limit int) ([]models.PendingSale, error) {
	var sales []models.PendingSale
	err := r.db.WithContext(ctx).
		Where("sync_status = ?", enums.SyncStatusPending).
		Order("seq ASC").
		Limit(limit).
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// MarkSynced records the positive acknowledgment. The row stays for local
// history; only the synced status takes it off the queue.
func (r *Repository) MarkSynced(ctx context.Context, id uuid.UUID, remoteSaleID, remoteSaleNumber string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingSale{}).
		Where("id = ? AND sync_status = ?", id, enums.SyncStatusPending).
		Updates(map[string]any{
			"sync_status":        enums.SyncStatusSynced,
			"remote_sale_id":     remoteSaleID,
			"remote_sale_number": remoteSaleNumber,
			"synced_at":          at,
			"last_error":         nil,
		}).Error
}

// MarkFailed bumps the attempt counter and keeps the sale queued. Retries are
// unbounded; only an acknowledgment removes a sale.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingSale{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    cause,
		}).Error
}

// CountPending is the queue depth.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PendingSale{}).
		Where("sync_status = ?", enums.SyncStatusPending).
		Count(&count).Error
	return int(count), err
}

// FindByID loads one queued or synced sale.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PendingSale, error) {
	var sale models.PendingSale
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// Checkpoint loads the watermark row.
func (r *Repository) Checkpoint(ctx context.Context) (*models.SyncCheckpoint, error) {
	var checkpoint models.SyncCheckpoint
	err := r.db.WithContext(ctx).
		Where("id = ?", models.SyncCheckpointID).
		First(&checkpoint).Error
	if err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

// SaveCheckpoint writes the watermark row back.
func (r *Repository) SaveCheckpoint(ctx context.Context, checkpoint *models.SyncCheckpoint) error {
	checkpoint.ID = models.SyncCheckpointID
	return r.db.WithContext(ctx).
		Model(&models.SyncCheckpoint{}).
		Where("id = ?", models.SyncCheckpointID).
		Updates(map[string]any{
			"version":         gorm.Expr("version + 1"),
			"last_sync_at":    checkpoint.LastSyncAt,
			"catalog_cursor":  checkpoint.CatalogCursor,
			"customer_cursor": checkpoint.CustomerCursor,
		}).Error
}

// EnsureCheckpoint seeds the fixed row if migrations have not.
func (r *Repository) EnsureCheckpoint(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SyncCheckpoint{}).
		Where("id = ?", models.SyncCheckpointID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&models.SyncCheckpoint{ID: models.SyncCheckpointID, Version: 1}).Error
}
