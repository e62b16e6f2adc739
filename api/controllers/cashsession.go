package controllers

import (
	"net/http"

	"github.com/counterline/poscore/api/responses"
	"github.com/counterline/poscore/api/validators"
	sessionsvc "github.com/counterline/poscore/internal/cashsession"
	"github.com/counterline/poscore/pkg/enums"
	"github.com/counterline/poscore/pkg/logger"
)

type openSessionRequest struct {
	OpeningBalanceCents int64 `json:"opening_balance_cents" validate:"min=0"`
}

func SessionOpen(svc sessionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload openSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Open(r.Context(), payload.OpeningBalanceCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

type cashMovementRequest struct {
	Direction   enums.CashDirection `json:"direction" validate:"required,oneof=in out"`
	AmountCents int64               `json:"amount_cents" validate:"required,gt=0"`
	Reason      string              `json:"reason" validate:"required,max=200"`
}

func SessionMovement(svc sessionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cashMovementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.RecordMovement(r.Context(), payload.Direction, payload.AmountCents, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

type closeSessionRequest struct {
	CountedCents int64 `json:"counted_cents" validate:"min=0"`
}

// SessionClose reconciles the drawer and freezes the session.
func SessionClose(svc sessionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload closeSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Close(r.Context(), payload.CountedCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func SessionCurrent(svc sessionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := svc.Current(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}
