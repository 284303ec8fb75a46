package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/ivankudzin/payflow/internal/services/auth"
	catalogsvc "github.com/ivankudzin/payflow/internal/services/catalog"
	checkoutsvc "github.com/ivankudzin/payflow/internal/services/checkout"
	"github.com/ivankudzin/payflow/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/payflow/internal/transport/http/errors"
)

type CheckoutHandler struct {
	checkout *checkoutsvc.Service
}

func NewCheckoutHandler(checkout *checkoutsvc.Service) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	var req dto.CheckoutCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.checkout.Initiate(r.Context(), identity.UserID, checkoutsvc.InitiateInput{
		SubjectID:  req.SubjectID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkoutsvc.ErrValidation), errors.Is(err, catalogsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid checkout payload")
		case errors.Is(err, catalogsvc.ErrSubjectNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "SUBJECT_NOT_FOUND",
				Message: "subject not found",
			})
		case errors.Is(err, checkoutsvc.ErrAlreadyOwned):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "ALREADY_OWNED",
				Message: "entitlement already granted for subject",
			})
		case errors.Is(err, checkoutsvc.ErrPendingIntent):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "PENDING_INTENT",
				Message: "a pending purchase already exists for subject",
			})
		case errors.Is(err, checkoutsvc.ErrSessionCreation):
			httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
				Code:    "PROVIDER_UNAVAILABLE",
				Message: "payment provider rejected the session",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to initiate checkout")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutCreateResponse{
		IntentID:    result.IntentID,
		RedirectURL: result.RedirectURL,
		AmountMinor: result.AmountMinor,
		Currency:    result.Currency,
		State:       "pending",
	})
}

// Intent answers the buyer's poll for a purchase outcome after the provider
// redirect. The body is the intent ledger record itself.
func (h *CheckoutHandler) Intent(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	intent, err := h.checkout.Intent(r.Context(), identity.UserID, chi.URLParam(r, "intent_id"))
	if err != nil {
		switch {
		case errors.Is(err, checkoutsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid intent id")
		case errors.Is(err, checkoutsvc.ErrIntentNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "INTENT_NOT_FOUND",
				Message: "purchase intent not found",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load intent")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, intent)
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
