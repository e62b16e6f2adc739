package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/counterline/poscore/internal/pricing"
	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
)

type testTxRunner struct {
	db *gorm.DB
}

func (t testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

type stubProducts struct {
	byID      map[uuid.UUID]*models.CatalogProduct
	byBarcode map[string]*models.CatalogProduct
}

func (s *stubProducts) ProductByID(_ context.Context, id uuid.UUID) (*models.CatalogProduct, error) {
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubProducts) ProductByBarcode(_ context.Context, barcode string) (*models.CatalogProduct, error) {
	if p, ok := s.byBarcode[barcode]; ok {
		return p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

type captureDisplay struct {
	events []enums.DisplayEventType
}

func (c *captureDisplay) Emit(_ context.Context, eventType enums.DisplayEventType, _ any) {
	c.events = append(c.events, eventType)
}

type cartFixture struct {
	svc      Service
	db       *gorm.DB
	display  *captureDisplay
	productA *models.CatalogProduct
	productB *models.CatalogProduct
}

func newFixture(t *testing.T) *cartFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.CartRecord{}, &models.CartItem{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	engine, err := pricing.NewEngine(config.TaxConfig{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	productA := &models.CatalogProduct{ID: uuid.New(), Barcode: "111", Name: "Item A", UnitPriceCents: 5000, Active: true}
	productB := &models.CatalogProduct{ID: uuid.New(), Barcode: "222", Name: "Item B", UnitPriceCents: 3000, Active: true}
	products := &stubProducts{
		byID:      map[uuid.UUID]*models.CatalogProduct{productA.ID: productA, productB.ID: productB},
		byBarcode: map[string]*models.CatalogProduct{"111": productA, "222": productB},
	}

	display := &captureDisplay{}
	svc, err := NewService(NewRepository(conn), testTxRunner{db: conn}, engine, products, display, enums.CurrencyUSD)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return &cartFixture{svc: svc, db: conn, display: display, productA: productA, productB: productB}
}

func TestGet_CreatesSingleActiveCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := f.svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one live cart, got %s and %s", first.ID, second.ID)
	}
	if first.Status != enums.CartStatusActive {
		t.Fatalf("status = %s", first.Status)
	}
}

func TestAddItem_PricesAndMerges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID, Quantity: 2}); err != nil {
		t.Fatalf("AddItem A: %v", err)
	}
	record, err := f.svc.AddItem(ctx, AddItemInput{Barcode: "222"})
	if err != nil {
		t.Fatalf("AddItem B: %v", err)
	}

	if len(record.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(record.Items))
	}
	if record.SubtotalCents != 13000 || record.TotalCents != 13000 {
		t.Fatalf("totals = %d/%d, want 13000/13000", record.SubtotalCents, record.TotalCents)
	}

	// Same product again merges into the existing line.
	record, err = f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID})
	if err != nil {
		t.Fatalf("AddItem merge: %v", err)
	}
	if len(record.Items) != 2 {
		t.Fatalf("merge created a new line: %d lines", len(record.Items))
	}
	if record.TotalCents != 18000 {
		t.Fatalf("total after merge = %d, want 18000", record.TotalCents)
	}

	if len(f.display.events) == 0 || f.display.events[0] != enums.DisplayEventCartUpdate {
		t.Fatalf("expected cart_update display events, got %v", f.display.events)
	}
}

func TestApplyDiscount_RecomputesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID, Quantity: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productB.ID}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	record, err := f.svc.ApplyDiscount(ctx, DiscountInput{
		Code:             "SAVE10",
		Type:             enums.DiscountTypePercent,
		Value:            10,
		MinPurchaseCents: 10000,
	})
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if record.CodeDiscountCents != 1300 || record.TotalCents != 11700 {
		t.Fatalf("totals = %d/%d, want 1300/11700", record.CodeDiscountCents, record.TotalCents)
	}

	record, err = f.svc.RemoveDiscount(ctx)
	if err != nil {
		t.Fatalf("RemoveDiscount: %v", err)
	}
	if record.CodeDiscountCents != 0 || record.TotalCents != 13000 {
		t.Fatalf("totals after removal = %d/%d", record.CodeDiscountCents, record.TotalCents)
	}
}

func TestApplyDiscount_ThresholdUnmetLeavesCartIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productB.ID}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	_, err := f.svc.ApplyDiscount(ctx, DiscountInput{
		Code:             "SAVE10",
		Type:             enums.DiscountTypePercent,
		Value:            10,
		MinPurchaseCents: 10000,
	})
	if pkgerrors.ReasonOf(err) != pkgerrors.ReasonDiscountNotApplicable {
		t.Fatalf("expected DiscountNotApplicable, got %v", err)
	}

	record, err := f.svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.DiscountCode != nil || record.TotalCents != 3000 {
		t.Fatalf("cart mutated by rejected discount: %+v", record)
	}
}

func TestUpdateItem_ZeroQuantityRemovesLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	itemID := record.Items[0].ID

	record, err = f.svc.UpdateItem(ctx, itemID, UpdateItemInput{Quantity: 0})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if len(record.Items) != 0 || record.TotalCents != 0 {
		t.Fatalf("line not removed: %+v", record)
	}
}

func TestUpdateItem_LineDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	percent := enums.DiscountTypePercent
	record, err = f.svc.UpdateItem(ctx, record.Items[0].ID, UpdateItemInput{
		Quantity:          2,
		LineDiscountType:  &percent,
		LineDiscountValue: 10,
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if record.ItemDiscountCents != 1000 || record.TotalCents != 9000 {
		t.Fatalf("totals = %d/%d, want 1000/9000", record.ItemDiscountCents, record.TotalCents)
	}
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID, Quantity: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.svc.ApplyDiscount(ctx, DiscountInput{Code: "X", Type: enums.DiscountTypeFixed, Value: 100}); err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}

	record, err := f.svc.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(record.Items) != 0 || record.DiscountCode != nil || !recordTotalsZero(record) {
		t.Fatalf("cart not cleared: %+v", record)
	}
}

func TestReplaceSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	snapshot := SnapshotOf(record)

	if _, err := f.svc.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	record, err = f.svc.ReplaceSnapshot(ctx, snapshot)
	if err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}
	if len(record.Items) != 1 || record.TotalCents != 10000 {
		t.Fatalf("snapshot not restored: %+v", record)
	}
}

func TestConvertActive_OpensFreshCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.ConvertActive(ctx, tx, record.ID, record.Version)
	})
	if err != nil {
		t.Fatalf("ConvertActive: %v", err)
	}

	fresh, err := f.svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.ID == record.ID {
		t.Fatalf("expected a fresh cart after conversion")
	}
	if len(fresh.Items) != 0 {
		t.Fatalf("fresh cart carries items: %+v", fresh.Items)
	}

	var converted models.CartRecord
	if err := f.db.Where("id = ?", record.ID).First(&converted).Error; err != nil {
		t.Fatalf("loading converted cart: %v", err)
	}
	if converted.Status != enums.CartStatusConverted {
		t.Fatalf("status = %s, want converted", converted.Status)
	}
}

func TestConvertActive_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.AddItem(ctx, AddItemInput{ProductID: f.productA.ID})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.ConvertActive(ctx, tx, record.ID, record.Version+5)
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func recordTotalsZero(record *models.CartRecord) bool {
	return record.SubtotalCents == 0 &&
		record.ItemDiscountCents == 0 &&
		record.CodeDiscountCents == 0 &&
		record.TaxCents == 0 &&
		record.TotalCents == 0
}
