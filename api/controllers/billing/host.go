package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hauslist/hauslist-backend/api/controllers/hostcontext"
	"github.com/hauslist/hauslist-backend/api/responses"
	"github.com/hauslist/hauslist-backend/api/validators"
	"github.com/hauslist/hauslist-backend/internal/checkout"
	"github.com/hauslist/hauslist-backend/internal/reconcile"
	"github.com/hauslist/hauslist-backend/internal/subscriptions"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

type verifyRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type cancelRequest struct {
	PropertyID string `json:"property_id" validate:"required,uuid"`
}

// CheckoutSessionCreate starts a provider checkout for the host's pending
// listing.
func CheckoutSessionCreate(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		hostID, err := hostcontext.ResolveHostID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateCheckoutSession(r.Context(), hostID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutVerify confirms a checkout session after the billing redirect.
func CheckoutVerify(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout verifier unavailable"))
			return
		}

		hostID, err := hostcontext.ResolveHostID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), payload.SessionID, hostID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// BillingSync pulls the host's provider state and reconciles local records.
func BillingSync(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		hostID, err := hostcontext.ResolveHostID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Sync(r.Context(), hostID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// BillingCancel schedules a subscription cancellation at period end.
func BillingCancel(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		hostID, err := hostcontext.ResolveHostID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		propertyID, err := uuid.Parse(payload.PropertyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property id"))
			return
		}

		result, err := svc.Cancel(r.Context(), hostID, propertyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
