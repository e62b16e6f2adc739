package cashsession

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
)

// ErrStaleSession means the session row changed between read and write.
var ErrStaleSession = errors.New("cash session changed concurrently")

// Repository exposes persistence for drawer sessions.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cash-session repository bound to the provided DB.
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

// FindByDate loads the session for one business day with its movements.
func (r *Repository) FindByDate(ctx context.Context, businessDate string) (*models.CashSession, error) {
	var session models.CashSession
	err := r.db.WithContext(ctx).
		Preload("Movements", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("business_date = ?", businessDate).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create opens a new session. The unique index on business_date rejects a
// second session for the same day.
func (r *Repository) Create(ctx context.Context, session *models.CashSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = enums.CashSessionStatusOpen
	}
	if session.Version == 0 {
		session.Version = 1
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// AddMovement appends one immutable drawer entry.
func (r *Repository) AddMovement(ctx context.Context, movement *models.CashMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

// AddCashSale folds a committed cash sale into the drawer total. The status
// guard keeps closed sessions immutable.
func (r *Repository) AddCashSale(ctx context.Context, sessionID uuid.UUID, amountCents int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.CashSession{}).
		Where("id = ? AND status = ?", sessionID, enums.CashSessionStatusOpen).
		Updates(map[string]any{
			"cash_sales_cents": gorm.Expr("cash_sales_cents + ?", amountCents),
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSession
	}
	return nil
}

// CloseWithVersion seals the session, persisting the counted, expected, and
// variance amounts exactly once.
func (r *Repository) CloseWithVersion(ctx context.Context, session *models.CashSession, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&models.CashSession{}).
		Where("id = ? AND version = ? AND status = ?", session.ID, expectedVersion, enums.CashSessionStatusOpen).
		Updates(map[string]any{
			"status":         enums.CashSessionStatusClosed,
			"version":        expectedVersion + 1,
			"counted_cents":  session.CountedCents,
			"expected_cents": session.ExpectedCents,
			"variance_cents": session.VarianceCents,
			"closed_at":      session.ClosedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSession
	}
	session.Version = expectedVersion + 1
	return nil
}
