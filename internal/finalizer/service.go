package finalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/internal/payments"
	"github.com/counterline/poscore/internal/syncengine"
	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/ledger"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentSource interface {
	TakeSucceeded(ctx context.Context) (*payments.Attempt, error)
}

type cartConverter interface {
	Get(ctx context.Context) (*models.CartRecord, error)
	ConvertActive(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, expectedVersion int) error
}

type saleQueue interface {
	Enqueue(ctx context.Context, tx *gorm.DB, sale *models.PendingSale) error
	Drain(ctx context.Context, trigger string) (*syncengine.DrainResult, error)
}

type cashDrawer interface {
	RecordCashSale(ctx context.Context, tx *gorm.DB, amountCents int64) error
}

type displayEmitter interface {
	Emit(ctx context.Context, eventType enums.DisplayEventType, payload any)
}

// Receipt is what the register shows once a sale is committed locally. The
// remote sale number arrives later, with the sync ack.
type Receipt struct {
	SaleID         uuid.UUID           `json:"sale_id"`
	IdempotencyKey string              `json:"idempotency_key"`
	Method         enums.PaymentMethod `json:"method"`
	Currency       enums.Currency      `json:"currency"`
	Totals         types.Totals        `json:"totals"`
	ChangeCents    int64               `json:"change_cents"`
	CommittedAt    time.Time           `json:"committed_at"`
}

// Service commits a paid cart: one local transaction queues the sale, retires
// the cart, and books cash into the open drawer. The remote ledger is never
// on the commit path.
type Service interface {
	Commit(ctx context.Context) (*Receipt, error)
}

type service struct {
	tx       txRunner
	carts    cartConverter
	payments paymentSource
	queue    saleQueue
	drawer   cashDrawer
	display  displayEmitter
	logg     *logger.Logger

	now func() time.Time
}

// NewService wires the sale finalizer.
func NewService(
	tx txRunner,
	carts cartConverter,
	paymentSrc paymentSource,
	queue saleQueue,
	drawer cashDrawer,
	display displayEmitter,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart converter required")
	}
	if paymentSrc == nil {
		return nil, fmt.Errorf("payment source required")
	}
	if queue == nil {
		return nil, fmt.Errorf("sale queue required")
	}
	if drawer == nil {
		return nil, fmt.Errorf("cash drawer required")
	}
	if display == nil {
		return nil, fmt.Errorf("display emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("finalizer logger required")
	}
	return &service{
		tx:       tx,
		carts:    carts,
		payments: paymentSrc,
		queue:    queue,
		drawer:   drawer,
		display:  display,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Commit consumes the successful payment attempt and durably records the
// sale. Everything happens in one local transaction: if any step fails the
// cart and the queue are untouched and the attempt is already spent, so the
// operator restarts payment rather than risking a double charge.
func (s *service) Commit(ctx context.Context) (*Receipt, error) {
	record, err := s.carts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	attempt, err := s.payments.TakeSucceeded(ctx)
	if err != nil {
		return nil, err
	}
	if attempt.AmountCents != record.TotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment of %d no longer matches cart total %d", attempt.AmountCents, record.TotalCents))
	}

	sale, err := s.buildPendingSale(record, attempt)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.queue.Enqueue(ctx, tx, sale); err != nil {
			return err
		}
		if err := s.carts.ConvertActive(ctx, tx, record.ID, record.Version); err != nil {
			return err
		}
		if attempt.Method == enums.PaymentMethodCash {
			return s.drawer.RecordCashSale(ctx, tx, attempt.AmountCents)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		SaleID:         sale.ID,
		IdempotencyKey: sale.IdempotencyKey,
		Method:         sale.Method,
		Currency:       sale.Currency,
		Totals:         totalsOf(record),
		CommittedAt:    sale.CommittedAt,
	}
	if cashCtx, ok := attempt.Context.(payments.CashContext); ok {
		receipt.ChangeCents = cashCtx.ChangeCents
	}

	saleCtx := s.logg.WithSaleID(ctx, sale.ID.String())
	s.logg.Info(saleCtx, "sale committed")
	s.display.Emit(ctx, enums.DisplayEventSaleCompleted, map[string]any{
		"sale_id":      sale.ID,
		"method":       sale.Method,
		"total_cents":  record.TotalCents,
		"change_cents": receipt.ChangeCents,
	})

	// Best effort: an offline terminal just leaves the sale queued.
	go func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if _, err := s.queue.Drain(drainCtx, syncengine.TriggerManual); err != nil {
			s.logg.Warn(drainCtx, "post-commit drain did not complete: "+err.Error())
		}
	}()

	return receipt, nil
}

func (s *service) buildPendingSale(record *models.CartRecord, attempt *payments.Attempt) (*models.PendingSale, error) {
	lines := make([]ledger.SaleLine, 0, len(record.Items))
	for _, item := range record.Items {
		lines = append(lines, ledger.SaleLine{
			ProductID:      item.ProductID.String(),
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			DiscountCents:  lineDiscountCents(item),
		})
	}

	itemsJSON, err := json.Marshal(lines)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding sale lines")
	}
	totalsJSON, err := json.Marshal(totalsOf(record))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding sale totals")
	}

	return &models.PendingSale{
		ID:             uuid.New(),
		IdempotencyKey: uuid.NewString(),
		Method:         attempt.Method,
		Currency:       record.Currency,
		Items:          itemsJSON,
		Totals:         totalsJSON,
		PaymentDetails: attempt.PaymentDetails(),
		CommittedAt:    s.now().UTC(),
	}, nil
}

// lineDiscountCents mirrors the pricing engine's per-line clamp so the queued
// sale carries the same discount the customer was charged.
func lineDiscountCents(item models.CartItem) int64 {
	if item.LineDiscountType == nil {
		return 0
	}
	gross := item.UnitPriceCents * int64(item.Quantity)
	var discount int64
	switch *item.LineDiscountType {
	case enums.DiscountTypePercent:
		discount = gross * item.LineDiscountValue / 100
	case enums.DiscountTypeFixed:
		discount = item.LineDiscountValue
	}
	if discount > gross {
		discount = gross
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func totalsOf(record *models.CartRecord) types.Totals {
	return types.Totals{
		SubtotalCents:     record.SubtotalCents,
		ItemDiscountCents: record.ItemDiscountCents,
		CodeDiscountCents: record.CodeDiscountCents,
		TaxCents:          record.TaxCents,
		TotalCents:        record.TotalCents,
	}
}
