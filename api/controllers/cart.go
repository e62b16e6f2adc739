package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/counterline/poscore/api/responses"
	"github.com/counterline/poscore/api/validators"
	cartsvc "github.com/counterline/poscore/internal/cart"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
)

// CartGet returns the live cart, creating an empty one on first use.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type addItemRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
	Barcode   string     `json:"barcode"`
	Quantity  int        `json:"quantity" validate:"required,min=1"`
}

// CartAddItem adds a product by id or barcode.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := cartsvc.AddItemInput{Barcode: payload.Barcode, Quantity: payload.Quantity}
		if payload.ProductID != nil {
			input.ProductID = *payload.ProductID
		}

		record, err := svc.AddItem(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type updateItemRequest struct {
	Quantity          int                 `json:"quantity" validate:"min=0"`
	LineDiscountType  *enums.DiscountType `json:"line_discount_type" validate:"omitempty,oneof=percent fixed"`
	LineDiscountValue int64               `json:"line_discount_value" validate:"min=0"`
}

// CartUpdateItem rewrites one line; quantity zero removes it.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateItem(r.Context(), itemID, cartsvc.UpdateItemInput{
			Quantity:          payload.Quantity,
			LineDiscountType:  payload.LineDiscountType,
			LineDiscountValue: payload.LineDiscountValue,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		record, err := svc.RemoveItem(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type applyDiscountRequest struct {
	Code             string             `json:"code" validate:"required"`
	Type             enums.DiscountType `json:"type" validate:"required,oneof=percent fixed"`
	Value            int64              `json:"value" validate:"required,gt=0"`
	MinPurchaseCents int64              `json:"min_purchase_cents" validate:"min=0"`
}

// CartApplyDiscount applies the single cart-level discount.
func CartApplyDiscount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload applyDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.ApplyDiscount(r.Context(), cartsvc.DiscountInput{
			Code:             payload.Code,
			Type:             payload.Type,
			Value:            payload.Value,
			MinPurchaseCents: payload.MinPurchaseCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func CartRemoveDiscount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.RemoveDiscount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.Clear(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}
