package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/ivankudzin/payflow/internal/services/auth"
	catalogsvc "github.com/ivankudzin/payflow/internal/services/catalog"
	entsvc "github.com/ivankudzin/payflow/internal/services/entitlements"
	"github.com/ivankudzin/payflow/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/payflow/internal/transport/http/errors"
)

type EntitlementsHandler struct {
	entitlements *entsvc.Service
}

func NewEntitlementsHandler(entitlements *entsvc.Service) *EntitlementsHandler {
	return &EntitlementsHandler{entitlements: entitlements}
}

func (h *EntitlementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	subjectID := chi.URLParam(r, "subject_id")

	ownership, err := h.entitlements.Owns(r.Context(), identity.UserID, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, entsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid entitlement request")
		case errors.Is(err, entsvc.ErrSubjectNotFound), errors.Is(err, catalogsvc.ErrSubjectNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "SUBJECT_NOT_FOUND",
				Message: "subject not found",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load entitlement")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.EntitlementResponse{
		SubjectID: ownership.SubjectID,
		Kind:      string(ownership.Kind),
		Owned:     ownership.Owned,
	})
}
