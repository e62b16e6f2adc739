package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/counterline/poscore/api/responses"
	"github.com/counterline/poscore/api/validators"
	"github.com/counterline/poscore/internal/finalizer"
	paysvc "github.com/counterline/poscore/internal/payments"
	"github.com/counterline/poscore/pkg/enums"
	"github.com/counterline/poscore/pkg/logger"
)

type startPaymentRequest struct {
	Method      enums.PaymentMethod `json:"method" validate:"required,oneof=cash mobile_money qr tap store_credit"`
	CustomerID  *uuid.UUID          `json:"customer_id"`
	TapSourceID string              `json:"tap_source_id"`
}

// PaymentStart opens an attempt for the cart total. Tap and store credit
// resolve synchronously; the other methods stay in progress.
func PaymentStart(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload startPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := paysvc.StartInput{Method: payload.Method, TapSourceID: payload.TapSourceID}
		if payload.CustomerID != nil {
			input.CustomerID = *payload.CustomerID
		}

		attempt, err := svc.Start(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, attempt)
	}
}

type tenderCashRequest struct {
	ReceivedCents int64 `json:"received_cents" validate:"required,gt=0"`
}

func PaymentTenderCash(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload tenderCashRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.TenderCash(r.Context(), payload.ReceivedCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempt)
	}
}

// PaymentAwait blocks while the mobile money attempt polls the provider,
// returning once it reaches a terminal status or the poll window closes.
func PaymentAwait(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, err := svc.AwaitRedirect(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempt)
	}
}

type verifyPaymentRequest struct {
	Reference   string         `json:"reference" validate:"required"`
	AmountCents int64          `json:"amount_cents" validate:"required,gt=0"`
	Currency    enums.Currency `json:"currency"`
	TokenID     string         `json:"token_id"`
}

func PaymentVerify(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.HandleVerification(r.Context(), paysvc.VerificationInput{
			Reference:   payload.Reference,
			AmountCents: payload.AmountCents,
			Currency:    payload.Currency,
			TokenID:     payload.TokenID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempt)
	}
}

func PaymentCancel(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Cancel(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

func PaymentCurrent(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, err := svc.Current(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempt)
	}
}

// SaleCommit finalizes the paid cart into the durable sale queue.
func SaleCommit(svc finalizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receipt, err := svc.Commit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}
