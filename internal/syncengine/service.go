package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db/models"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/ledger"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/metrics"
)

const (
	drainLockName = "sync:drain"
	drainLockTTL  = 2 * time.Minute

	// TriggerReconnect marks drains fired on a connectivity-regained edge.
	TriggerReconnect = "reconnect"
	// TriggerInterval marks scheduled background drains.
	TriggerInterval = "interval"
	// TriggerManual marks operator-requested drains.
	TriggerManual = "manual"
)

type ledgerGateway interface {
	PostSale(ctx context.Context, req ledger.SaleRequest) (*ledger.SaleResult, error)
	PullProducts(ctx context.Context, since time.Time, limit int) ([]ledger.ProductDelta, error)
	PullCustomers(ctx context.Context, since time.Time, limit int) ([]ledger.CustomerDelta, error)
	Probe(ctx context.Context) error
}

type deltaApplier interface {
	ApplyProductDeltas(ctx context.Context, deltas []ledger.ProductDelta, pulledAt time.Time) (int, error)
	ApplyCustomerDeltas(ctx context.Context, deltas []ledger.CustomerDelta, pulledAt time.Time) (int, error)
}

type drainLocker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// Status is a pure read of local sync state; it never touches the network.
type Status struct {
	Online       bool       `json:"online"`
	PendingCount int        `json:"pending_count"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Trigger   string `json:"trigger"`
	Acked     int    `json:"acked"`
	Failed    int    `json:"failed"`
	Remaining int    `json:"remaining"`
	Skipped   bool   `json:"skipped"`
}

// Service reconciles the local queue with the remote ledger and keeps the
// catalog cache fresh.
type Service interface {
	Enqueue(ctx context.Context, tx *gorm.DB, sale *models.PendingSale) error
	Drain(ctx context.Context, trigger string) (*DrainResult, error)
	Status(ctx context.Context) (*Status, error)
	Online() bool
	Run(ctx context.Context) error
}

type service struct {
	repo    *Repository
	remote  ledgerGateway
	catalog deltaApplier
	locker  drainLocker
	metrics *metrics.TerminalMetrics
	logg    *logger.Logger
	cfg     config.SyncConfig

	probeInterval time.Duration
	online        atomic.Bool
	now           func() time.Time
}

// NewService builds the sync engine. The locker may be nil on single-process
// deployments; metrics may be nil in tests.
func NewService(
	repo *Repository,
	remote ledgerGateway,
	catalog deltaApplier,
	locker drainLocker,
	terminalMetrics *metrics.TerminalMetrics,
	logg *logger.Logger,
	cfg config.SyncConfig,
	probeInterval time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sync repository required")
	}
	if remote == nil {
		return nil, fmt.Errorf("ledger gateway required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog applier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("sync logger required")
	}
	if cfg.DrainBatchSize <= 0 {
		return nil, fmt.Errorf("drain batch size must be positive")
	}
	if probeInterval <= 0 {
		probeInterval = 15 * time.Second
	}
	return &service{
		repo:          repo,
		remote:        remote,
		catalog:       catalog,
		locker:        locker,
		metrics:       terminalMetrics,
		logg:          logg,
		cfg:           cfg,
		probeInterval: probeInterval,
		now:           time.Now,
	}, nil
}

// Enqueue appends a committed sale to the queue inside the finalizer's
// transaction. It returns immediately; the network is never touched here.
func (s *service) Enqueue(ctx context.Context, tx *gorm.DB, sale *models.PendingSale) error {
	if sale == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "pending sale required")
	}
	if sale.IdempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if sale.CommittedAt.IsZero() {
		sale.CommittedAt = s.now().UTC()
	}
	if err := s.repo.WithTx(tx).Append(ctx, sale); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueueing sale")
	}
	return nil
}

// Drain posts queued sales strictly in commit order. The first failure ends
// the pass so the ledger's sequence always matches the terminal's; the failed
// sale stays queued and is retried forever on later passes.
func (s *service) Drain(ctx context.Context, trigger string) (*DrainResult, error) {
	result := &DrainResult{Trigger: trigger}

	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, drainLockName, drainLockTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring drain lock")
		}
		if !acquired {
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), drainLockName); err != nil {
				s.logg.Warn(ctx, "releasing drain lock failed: "+err.Error())
			}
		}()
	}

	started := s.now()
	defer func() {
		s.metrics.ObserveDrain(trigger, s.now().Sub(started))
	}()

	var drainErr error
	queueClear := true

drain:
	for {
		batch, err := s.repo.NextBatch(ctx, s.cfg.DrainBatchSize)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading queue")
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			sale := &batch[i]
			if err := s.postSale(ctx, sale); err != nil {
				s.markFailure(ctx, sale, err, trigger)
				result.Failed++
				drainErr = multierr.Append(drainErr, err)
				queueClear = false
				break drain
			}
			result.Acked++
			s.metrics.IncAcked(trigger)
		}
		if len(batch) < s.cfg.DrainBatchSize {
			break
		}
	}

	remaining, err := s.repo.CountPending(ctx)
	if err == nil {
		result.Remaining = remaining
		s.metrics.SetPending(remaining)
	}

	if queueClear {
		s.online.Store(true)
		drainErr = multierr.Append(drainErr, s.pullDeltas(ctx))
	}

	if drainErr != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeSync, drainErr, "drain pass incomplete")
	}
	return result, nil
}

// Status reads queue depth and watermark from local state only.
func (s *service) Status(ctx context.Context) (*Status, error) {
	pending, err := s.repo.CountPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting queued sales")
	}

	status := &Status{
		Online:       s.online.Load(),
		PendingCount: pending,
	}
	checkpoint, err := s.repo.Checkpoint(ctx)
	if err == nil {
		status.LastSyncAt = checkpoint.LastSyncAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading sync checkpoint")
	}
	return status, nil
}

// Online reports the last observed connectivity state.
func (s *service) Online() bool {
	return s.online.Load()
}

// Run is the background connectivity watcher plus the drain scheduler. It
// probes the ledger, drains on the offline-to-online edge, and drains on a
// fixed interval while online. Blocks until the context ends.
func (s *service) Run(ctx context.Context) error {
	if err := s.repo.EnsureCheckpoint(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seeding sync checkpoint")
	}

	probe := time.NewTicker(s.probeInterval)
	defer probe.Stop()
	drain := time.NewTicker(s.cfg.DrainInterval)
	defer drain.Stop()

	s.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-probe.C:
			s.probe(ctx)
		case <-drain.C:
			if !s.online.Load() {
				continue
			}
			if _, err := s.Drain(ctx, TriggerInterval); err != nil {
				s.logg.Warn(ctx, "scheduled drain incomplete: "+err.Error())
			}
		}
	}
}

// probe checks reachability and fires a drain on the reconnect edge.
func (s *service) probe(ctx context.Context) {
	wasOnline := s.online.Load()
	err := s.remote.Probe(ctx)
	nowOnline := err == nil
	s.online.Store(nowOnline)

	if nowOnline && !wasOnline {
		s.logg.Info(ctx, "ledger reachable; draining queued sales")
		if _, err := s.Drain(ctx, TriggerReconnect); err != nil {
			s.logg.Warn(ctx, "reconnect drain incomplete: "+err.Error())
		}
	}
}

// postSale submits one sale with a bounded in-pass retry. Queue-level retries
// across passes remain unbounded.
func (s *service) postSale(ctx context.Context, sale *models.PendingSale) error {
	request := ledger.SaleRequest{
		IdempotencyKey: sale.IdempotencyKey,
		Currency:       sale.Currency.String(),
		PaymentMethod:  sale.Method.String(),
		PaymentDetails: sale.PaymentDetails,
		SoldAt:         sale.CommittedAt,
	}
	if err := decodeQueuedSale(sale, &request); err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(s.cfg.RequestRetries, retry.NewConstant(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		ack, err := s.remote.PostSale(ctx, request)
		if err != nil {
			if pkgerrors.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return s.repo.MarkSynced(ctx, sale.ID, ack.SaleID, ack.SaleNumber, s.now().UTC())
	})
}

func (s *service) markFailure(ctx context.Context, sale *models.PendingSale, cause error, trigger string) {
	s.online.Store(false)
	s.metrics.IncFailed(trigger)
	logCtx := s.logg.WithSaleID(ctx, sale.ID.String())
	s.logg.Warn(logCtx, "sale post failed; leaving queued")
	if err := s.repo.MarkFailed(ctx, sale.ID, cause.Error()); err != nil {
		s.logg.Error(logCtx, "recording sale failure", err)
	}
}

// pullDeltas advances the catalog and customer caches from their cursors and
// stamps the watermark.
func (s *service) pullDeltas(ctx context.Context) error {
	checkpoint, err := s.repo.Checkpoint(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.repo.EnsureCheckpoint(ctx); err != nil {
				return err
			}
			checkpoint = &models.SyncCheckpoint{ID: models.SyncCheckpointID}
		} else {
			return err
		}
	}

	pulledAt := s.now().UTC()
	var pullErr error

	cursor, err := s.pullProducts(ctx, checkpoint.CatalogCursor, pulledAt)
	if err != nil {
		pullErr = multierr.Append(pullErr, err)
	} else {
		checkpoint.CatalogCursor = cursor
	}

	cursor, err = s.pullCustomers(ctx, checkpoint.CustomerCursor, pulledAt)
	if err != nil {
		pullErr = multierr.Append(pullErr, err)
	} else {
		checkpoint.CustomerCursor = cursor
	}

	checkpoint.LastSyncAt = &pulledAt
	if err := s.repo.SaveCheckpoint(ctx, checkpoint); err != nil {
		pullErr = multierr.Append(pullErr, err)
	}
	return pullErr
}

func (s *service) pullProducts(ctx context.Context, cursor time.Time, pulledAt time.Time) (time.Time, error) {
	for {
		deltas, err := s.remote.PullProducts(ctx, cursor, s.cfg.CatalogPageSize)
		if err != nil {
			return cursor, err
		}
		if len(deltas) == 0 {
			return cursor, nil
		}
		if _, err := s.catalog.ApplyProductDeltas(ctx, deltas, pulledAt); err != nil {
			return cursor, err
		}
		for _, delta := range deltas {
			if delta.UpdatedAt.After(cursor) {
				cursor = delta.UpdatedAt
			}
		}
		if len(deltas) < s.cfg.CatalogPageSize {
			return cursor, nil
		}
	}
}

func (s *service) pullCustomers(ctx context.Context, cursor time.Time, pulledAt time.Time) (time.Time, error) {
	for {
		deltas, err := s.remote.PullCustomers(ctx, cursor, s.cfg.CatalogPageSize)
		if err != nil {
			return cursor, err
		}
		if len(deltas) == 0 {
			return cursor, nil
		}
		if _, err := s.catalog.ApplyCustomerDeltas(ctx, deltas, pulledAt); err != nil {
			return cursor, err
		}
		for _, delta := range deltas {
			if delta.UpdatedAt.After(cursor) {
				cursor = delta.UpdatedAt
			}
		}
		if len(deltas) < s.cfg.CatalogPageSize {
			return cursor, nil
		}
	}
}

// decodeQueuedSale rehydrates the wire payload stored with the queued row. A
// row that no longer decodes is store corruption, not a sync failure.
func decodeQueuedSale(sale *models.PendingSale, request *ledger.SaleRequest) error {
	if err := json.Unmarshal(sale.Items, &request.Items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreCorrupt, err, "decoding queued sale items")
	}
	if err := json.Unmarshal(sale.Totals, &request.Totals); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreCorrupt, err, "decoding queued sale totals")
	}
	return nil
}
