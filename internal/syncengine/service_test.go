package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/ledger"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/types"
)

type stubLedger struct {
	mu        sync.Mutex
	posted    []ledger.SaleRequest
	failKeys  map[string]error
	products  []ledger.ProductDelta
	customers []ledger.CustomerDelta
	probeErr  error
}

func (s *stubLedger) PostSale(_ context.Context, req ledger.SaleRequest) (*ledger.SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failKeys[req.IdempotencyKey]; ok {
		return nil, err
	}
	s.posted = append(s.posted, req)
	return &ledger.SaleResult{
		SaleID:     "remote-" + req.IdempotencyKey,
		SaleNumber: fmt.Sprintf("S-%04d", len(s.posted)),
	}, nil
}

func (s *stubLedger) PullProducts(_ context.Context, since time.Time, _ int) ([]ledger.ProductDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.ProductDelta
	for _, d := range s.products {
		if d.UpdatedAt.After(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubLedger) PullCustomers(_ context.Context, since time.Time, _ int) ([]ledger.CustomerDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.CustomerDelta
	for _, d := range s.customers {
		if d.UpdatedAt.After(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubLedger) Probe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeErr
}

type stubApplier struct {
	products  int
	customers int
}

func (s *stubApplier) ApplyProductDeltas(_ context.Context, deltas []ledger.ProductDelta, _ time.Time) (int, error) {
	s.products += len(deltas)
	return len(deltas), nil
}

func (s *stubApplier) ApplyCustomerDeltas(_ context.Context, deltas []ledger.CustomerDelta, _ time.Time) (int, error) {
	s.customers += len(deltas)
	return len(deltas), nil
}

type stubLocker struct {
	granted bool
}

func (l *stubLocker) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	return l.granted, nil
}

func (l *stubLocker) ReleaseLock(context.Context, string) error { return nil }

type syncFixture struct {
	svc     Service
	db      *gorm.DB
	remote  *stubLedger
	applier *stubApplier
}

func newFixture(t *testing.T, locker drainLocker) *syncFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.PendingSale{}, &models.SyncCheckpoint{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	remote := &stubLedger{failKeys: map[string]error{}}
	applier := &stubApplier{}
	logg := logger.New(logger.Options{ServiceName: "sync-test", Level: zerolog.Disabled, Output: io.Discard})

	svc, err := NewService(NewRepository(conn), remote, applier, locker, nil, logg, config.SyncConfig{
		DrainBatchSize:  2,
		DrainInterval:   time.Minute,
		RequestRetries:  0,
		CatalogPageSize: 100,
	}, time.Minute)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &syncFixture{svc: svc, db: conn, remote: remote, applier: applier}
}

func (f *syncFixture) enqueue(t *testing.T, key string, totalCents int64) *models.PendingSale {
	t.Helper()

	items, _ := json.Marshal([]ledger.SaleLine{
		{ProductID: uuid.NewString(), Name: "Item", UnitPriceCents: totalCents, Quantity: 1},
	})
	totals, _ := json.Marshal(types.Totals{SubtotalCents: totalCents, TotalCents: totalCents})
	sale := &models.PendingSale{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Method:         enums.PaymentMethodCash,
		Currency:       enums.CurrencyUSD,
		Items:          items,
		Totals:         totals,
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.Enqueue(context.Background(), tx, sale)
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return sale
}

func TestDrain_PostsInCommitOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.enqueue(t, "key-1", 1000)
	f.enqueue(t, "key-2", 2000)
	f.enqueue(t, "key-3", 3000)

	result, err := f.svc.Drain(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.Acked != 3 || result.Failed != 0 || result.Remaining != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(f.remote.posted) != 3 {
		t.Fatalf("posted %d sales", len(f.remote.posted))
	}
	for i, want := range []string{"key-1", "key-2", "key-3"} {
		if f.remote.posted[i].IdempotencyKey != want {
			t.Fatalf("post %d = %s, want %s", i, f.remote.posted[i].IdempotencyKey, want)
		}
	}

	status, err := f.svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Online || status.PendingCount != 0 || status.LastSyncAt == nil {
		t.Fatalf("unexpected status: %+v", status)
	}

	var synced int64
	if err := f.db.Model(&models.PendingSale{}).
		Where("sync_status = ?", enums.SyncStatusSynced).
		Count(&synced).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if synced != 3 {
		t.Fatalf("synced rows = %d", synced)
	}
}

func TestDrain_StopsAtFirstFailureToPreserveOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.enqueue(t, "key-1", 1000)
	blocked := f.enqueue(t, "key-2", 2000)
	f.enqueue(t, "key-3", 3000)
	f.remote.failKeys["key-2"] = pkgerrors.New(pkgerrors.CodeSync, "ledger responded 503")

	result, err := f.svc.Drain(ctx, TriggerManual)
	if err == nil {
		t.Fatal("expected drain error")
	}
	if result.Acked != 1 || result.Failed != 1 || result.Remaining != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	// key-3 must not have been posted ahead of key-2.
	if len(f.remote.posted) != 1 {
		t.Fatalf("posted %d sales, want 1", len(f.remote.posted))
	}
	if f.svc.Online() {
		t.Fatal("engine should report offline after a post failure")
	}

	var row models.PendingSale
	if err := f.db.Where("id = ?", blocked.ID).First(&row).Error; err != nil {
		t.Fatalf("loading failed sale: %v", err)
	}
	if row.SyncStatus != enums.SyncStatusPending || row.AttemptCount != 1 || row.LastError == nil {
		t.Fatalf("failed sale not requeued: %+v", row)
	}

	// Ledger recovers: the next pass drains the remainder in order.
	delete(f.remote.failKeys, "key-2")
	result, err = f.svc.Drain(ctx, TriggerReconnect)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if result.Acked != 2 || result.Remaining != 0 {
		t.Fatalf("unexpected second result: %+v", result)
	}
	if f.remote.posted[1].IdempotencyKey != "key-2" || f.remote.posted[2].IdempotencyKey != "key-3" {
		t.Fatalf("commit order broken: %+v", f.remote.posted)
	}
}

func TestDrain_PullsCatalogDeltas(t *testing.T) {
	f := newFixture(t, nil)
	now := time.Now().UTC()
	f.remote.products = []ledger.ProductDelta{
		{ID: uuid.NewString(), Name: "New Item", UnitPriceCents: 700, Active: true, UpdatedAt: now},
	}
	f.remote.customers = []ledger.CustomerDelta{
		{ID: uuid.NewString(), Name: "New Customer", UpdatedAt: now},
	}

	if _, err := f.svc.Drain(context.Background(), TriggerManual); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if f.applier.products != 1 || f.applier.customers != 1 {
		t.Fatalf("deltas applied = %d/%d", f.applier.products, f.applier.customers)
	}

	// Cursor advanced: a second drain pulls nothing new.
	if _, err := f.svc.Drain(context.Background(), TriggerManual); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if f.applier.products != 1 || f.applier.customers != 1 {
		t.Fatalf("cursor did not advance: %d/%d", f.applier.products, f.applier.customers)
	}
}

func TestDrain_SkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t, &stubLocker{granted: false})

	result, err := f.svc.Drain(context.Background(), TriggerInterval)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skipped result, got %+v", result)
	}
}

func TestEnqueue_Validation(t *testing.T) {
	f := newFixture(t, nil)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.Enqueue(context.Background(), tx, &models.PendingSale{})
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatus_IsLocalOnly(t *testing.T) {
	f := newFixture(t, nil)
	f.enqueue(t, "key-1", 1000)

	status, err := f.svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PendingCount != 1 {
		t.Fatalf("pending = %d", status.PendingCount)
	}
	if len(f.remote.posted) != 0 {
		t.Fatal("status must not touch the network")
	}
}
