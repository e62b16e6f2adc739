package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/internal/pricing"
	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	ProductByID(ctx context.Context, id uuid.UUID) (*models.CatalogProduct, error)
	ProductByBarcode(ctx context.Context, barcode string) (*models.CatalogProduct, error)
}

type displayEmitter interface {
	Emit(ctx context.Context, eventType enums.DisplayEventType, payload any)
}

// Service owns the single live cart: every mutation reprices synchronously
// and persists before returning.
type Service interface {
	Get(ctx context.Context) (*models.CartRecord, error)
	AddItem(ctx context.Context, input AddItemInput) (*models.CartRecord, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (*models.CartRecord, error)
	ApplyDiscount(ctx context.Context, input DiscountInput) (*models.CartRecord, error)
	RemoveDiscount(ctx context.Context) (*models.CartRecord, error)
	Clear(ctx context.Context) (*models.CartRecord, error)
	ReplaceSnapshot(ctx context.Context, snapshot Snapshot) (*models.CartRecord, error)
	ConvertActive(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, expectedVersion int) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	pricer   pricing.Engine
	products productLoader
	display  displayEmitter
	currency enums.Currency
}

// NewService builds the live-cart service backed by the provided stack.
func NewService(repo *Repository, tx txRunner, pricer pricing.Engine, products productLoader, display displayEmitter, currency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if display == nil {
		return nil, fmt.Errorf("display emitter required")
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("unsupported currency %q", currency)
	}
	return &service{
		repo:     repo,
		tx:       tx,
		pricer:   pricer,
		products: products,
		display:  display,
		currency: currency,
	}, nil
}

// AddItemInput identifies a product by id or barcode and the quantity to add.
type AddItemInput struct {
	ProductID uuid.UUID
	Barcode   string
	Quantity  int
}

// UpdateItemInput rewrites one line's quantity and per-line discount.
type UpdateItemInput struct {
	Quantity          int
	LineDiscountType  *enums.DiscountType
	LineDiscountValue int64
}

// DiscountInput is the single cart-level discount to apply.
type DiscountInput struct {
	Code             string
	Type             enums.DiscountType
	Value            int64
	MinPurchaseCents int64
}

// Get returns the live cart, creating an empty one on first use.
func (s *service) Get(ctx context.Context) (*models.CartRecord, error) {
	return s.ensureActive(ctx)
}

// AddItem resolves the product against the local catalog cache and merges it
// into the cart.
func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.CartRecord, error) {
	if input.Quantity <= 0 {
		input.Quantity = 1
	}
	if input.ProductID == uuid.Nil && input.Barcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id or barcode is required")
	}

	record, err := s.ensureActive(ctx)
	if err != nil {
		return nil, err
	}

	var product *models.CatalogProduct
	if input.ProductID != uuid.Nil {
		product, err = s.products.ProductByID(ctx, input.ProductID)
	} else {
		product, err = s.products.ProductByBarcode(ctx, input.Barcode)
	}
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range record.Items {
		item := &record.Items[i]
		if item.ProductID == product.ID && item.LineDiscountType == nil {
			item.Quantity += input.Quantity
			merged = true
			break
		}
	}
	if !merged {
		record.Items = append(record.Items, models.CartItem{
			ID:             uuid.New(),
			CartID:         record.ID,
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.UnitPriceCents,
			Quantity:       input.Quantity,
		})
	}

	return s.persistRepriced(ctx, record)
}

// UpdateItem rewrites one line. Quantity zero removes the line.
func (s *service) UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.CartRecord, error) {
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	record, err := s.ensureActive(ctx)
	if err != nil {
		return nil, err
	}

	index := -1
	for i := range record.Items {
		if record.Items[i].ID == itemID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if input.Quantity == 0 {
		record.Items = append(record.Items[:index], record.Items[index+1:]...)
	} else {
		item := &record.Items[index]
		item.Quantity = input.Quantity
		item.LineDiscountType = input.LineDiscountType
		item.LineDiscountValue = input.LineDiscountValue
	}

	return s.persistRepriced(ctx, record)
}

// RemoveItem drops one line from the cart.
func (s *service) RemoveItem(ctx context.Context, itemID uuid.UUID) (*models.CartRecord, error) {
	return s.UpdateItem(ctx, itemID, UpdateItemInput{Quantity: 0})
}

// ApplyDiscount attaches the cart-level discount. A threshold miss leaves the
// cart untouched.
func (s *service) ApplyDiscount(ctx context.Context, input DiscountInput) (*models.CartRecord, error) {
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown discount type %q", input.Type))
	}
	if input.Value <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}

	record, err := s.ensureActive(ctx)
	if err != nil {
		return nil, err
	}

	code := input.Code
	discountType := input.Type
	record.DiscountCode = &code
	record.DiscountType = &discountType
	record.DiscountValue = input.Value
	record.MinPurchaseCents = input.MinPurchaseCents

	return s.persistRepriced(ctx, record)
}

// RemoveDiscount detaches the cart-level discount.
func (s *service) RemoveDiscount(ctx context.Context) (*models.CartRecord, error) {
	record, err := s.ensureActive(ctx)
	if err != nil {
		return nil, err
	}
	clearDiscount(record)
	return s.persistRepriced(ctx, record)
}

// Clear empties the cart: all lines and the discount.
func (s *service) Clear(ctx context.Context) (*models.CartRecord, error) {
	record, err := s.ensureActive(ctx)
	if err != nil {
		return nil, err
	}
	record.Items = nil
	clearDiscount(record)
	return s.persistRepriced(ctx, record)
}

// ReplaceSnapshot overwrites the live cart with a held-order snapshot.
func (s *service) ReplaceSnapshot(ctx context.Context, snapshot Snapshot) (*models.CartRecord, error) {
	record, err := s.ensureActive(ctx)
	if err != nil {
		return nil, err
	}

	record.Items = make([]models.CartItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		record.Items = append(record.Items, models.CartItem{
			ID:                uuid.New(),
			CartID:            record.ID,
			ProductID:         item.ProductID,
			Name:              item.Name,
			UnitPriceCents:    item.UnitPriceCents,
			Quantity:          item.Quantity,
			LineDiscountType:  item.LineDiscountType,
			LineDiscountValue: item.LineDiscountValue,
		})
	}
	record.DiscountCode = snapshot.DiscountCode
	record.DiscountType = snapshot.DiscountType
	record.DiscountValue = snapshot.DiscountValue
	record.MinPurchaseCents = snapshot.MinPurchaseCents
	if snapshot.Currency.IsValid() {
		record.Currency = snapshot.Currency
	}

	return s.persistRepriced(ctx, record)
}

// ConvertActive retires the committed cart and opens a fresh empty one inside
// the caller's transaction. The finalizer drives this while persisting the
// pending sale.
func (s *service) ConvertActive(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, expectedVersion int) error {
	repo := s.repo.WithTx(tx)
	if err := repo.MarkStatus(ctx, cartID, expectedVersion, enums.CartStatusConverted); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart changed while committing the sale")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retiring committed cart")
	}
	fresh := &models.CartRecord{Currency: s.currency}
	if err := repo.Create(ctx, fresh); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening fresh cart")
	}
	return nil
}

func (s *service) ensureActive(ctx context.Context) (*models.CartRecord, error) {
	record, err := s.repo.FindActive(ctx)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreCorrupt, err, "loading live cart")
	}

	fresh := &models.CartRecord{Currency: s.currency}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating live cart")
	}
	return fresh, nil
}

// persistRepriced recomputes totals and writes items plus header atomically.
func (s *service) persistRepriced(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	quote, err := s.pricer.Quote(lineInputs(record), codeDiscountOf(record))
	if err != nil {
		return nil, err
	}

	record.SubtotalCents = quote.Totals.SubtotalCents
	record.ItemDiscountCents = quote.Totals.ItemDiscountCents
	record.CodeDiscountCents = quote.Totals.CodeDiscountCents
	record.TaxCents = quote.Totals.TaxCents
	record.TotalCents = quote.Totals.TotalCents

	expectedVersion := record.Version
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ReplaceItems(ctx, record.ID, record.Items); err != nil {
			return err
		}
		return repo.UpdateWithVersion(ctx, record, expectedVersion)
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart changed concurrently; reload and retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting cart")
	}

	s.display.Emit(ctx, enums.DisplayEventCartUpdate, displayPayload(record))
	return record, nil
}

func lineInputs(record *models.CartRecord) []pricing.LineInput {
	inputs := make([]pricing.LineInput, 0, len(record.Items))
	for _, item := range record.Items {
		input := pricing.LineInput{
			ProductID:      item.ProductID.String(),
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       int64(item.Quantity),
			DiscountValue:  item.LineDiscountValue,
		}
		if item.LineDiscountType != nil {
			input.DiscountType = *item.LineDiscountType
		}
		inputs = append(inputs, input)
	}
	return inputs
}

func codeDiscountOf(record *models.CartRecord) *pricing.CodeDiscount {
	if record.DiscountCode == nil || record.DiscountType == nil {
		return nil
	}
	return &pricing.CodeDiscount{
		Code:             *record.DiscountCode,
		Type:             *record.DiscountType,
		Value:            record.DiscountValue,
		MinPurchaseCents: record.MinPurchaseCents,
	}
}

func clearDiscount(record *models.CartRecord) {
	record.DiscountCode = nil
	record.DiscountType = nil
	record.DiscountValue = 0
	record.MinPurchaseCents = 0
}

func displayPayload(record *models.CartRecord) map[string]any {
	return map[string]any{
		"item_count":          len(record.Items),
		"subtotal_cents":      record.SubtotalCents,
		"item_discount_cents": record.ItemDiscountCents,
		"code_discount_cents": record.CodeDiscountCents,
		"tax_cents":           record.TaxCents,
		"total_cents":         record.TotalCents,
		"currency":            record.Currency,
	}
}
