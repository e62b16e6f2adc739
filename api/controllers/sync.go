package controllers

import (
	"net/http"

	"github.com/counterline/poscore/api/responses"
	syncsvc "github.com/counterline/poscore/internal/syncengine"
	"github.com/counterline/poscore/pkg/logger"
)

// SyncStatus answers from local state only; it never touches the network.
func SyncStatus(svc syncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// SyncDrain runs one operator-requested drain pass.
func SyncDrain(svc syncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Drain(r.Context(), syncsvc.TriggerManual)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
