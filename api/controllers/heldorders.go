package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/counterline/poscore/api/responses"
	"github.com/counterline/poscore/api/validators"
	heldsvc "github.com/counterline/poscore/internal/heldorders"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
)

type holdOrderRequest struct {
	Label         string   `json:"label" validate:"required,max=120"`
	CustomerName  *string  `json:"customer_name"`
	CustomerPhone *string  `json:"customer_phone"`
	Notes         *string  `json:"notes"`
	Tags          []string `json:"tags"`
}

// HoldOrder parks the live cart under a label and clears the register.
func HoldOrder(svc heldsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload holdOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Hold(r.Context(), heldsvc.HoldInput{
			Label:         payload.Label,
			CustomerName:  payload.CustomerName,
			CustomerPhone: payload.CustomerPhone,
			Notes:         payload.Notes,
			Tags:          payload.Tags,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func ListHeldOrders(svc heldsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// ResumeOrder restores a held order into the (empty) live cart. Each order
// resumes at most once.
func ResumeOrder(svc heldsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		record, err := svc.Resume(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func DiscardOrder(svc heldsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		if err := svc.Discard(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "discarded"})
	}
}
