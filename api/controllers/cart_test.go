package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	cartsvc "github.com/counterline/poscore/internal/cart"
	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
)

type stubCartService struct {
	record  *models.CartRecord
	err     error
	lastAdd cartsvc.AddItemInput
}

func (s *stubCartService) Get(context.Context) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCartService) AddItem(_ context.Context, input cartsvc.AddItemInput) (*models.CartRecord, error) {
	s.lastAdd = input
	return s.record, s.err
}

func (s *stubCartService) UpdateItem(context.Context, uuid.UUID, cartsvc.UpdateItemInput) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCartService) RemoveItem(context.Context, uuid.UUID) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCartService) ApplyDiscount(context.Context, cartsvc.DiscountInput) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCartService) RemoveDiscount(context.Context) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCartService) Clear(context.Context) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCartService) ReplaceSnapshot(context.Context, cartsvc.Snapshot) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCartService) ConvertActive(context.Context, *gorm.DB, uuid.UUID, int) error {
	return s.err
}

func TestCartGet(t *testing.T) {
	record := &models.CartRecord{ID: uuid.New(), Status: enums.CartStatusActive, Currency: enums.CurrencyUSD}
	handler := CartGet(&stubCartService{record: record}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data models.CartRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != record.ID {
		t.Fatalf("unexpected cart id: %s", envelope.Data.ID)
	}
}

func TestCartAddItem(t *testing.T) {
	svc := &stubCartService{record: &models.CartRecord{ID: uuid.New()}}
	handler := CartAddItem(svc, nil)

	body := strings.NewReader(`{"barcode":"111","quantity":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastAdd.Barcode != "111" || svc.lastAdd.Quantity != 2 {
		t.Fatalf("input = %+v", svc.lastAdd)
	}
}

func TestCartAddItem_RejectsZeroQuantity(t *testing.T) {
	handler := CartAddItem(&stubCartService{}, nil)

	body := strings.NewReader(`{"barcode":"111","quantity":0}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartApplyDiscount_ThresholdErrorSurfaces(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.Payment(pkgerrors.ReasonDiscountNotApplicable, "subtotal below minimum")}
	handler := CartApplyDiscount(svc, nil)

	body := strings.NewReader(`{"code":"SAVE10","type":"percent","value":10,"min_purchase_cents":10000}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/discount", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Reason != string(pkgerrors.ReasonDiscountNotApplicable) {
		t.Fatalf("reason = %s", envelope.Error.Reason)
	}
}
