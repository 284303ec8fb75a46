package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/payflow/internal/domain/model"
	"github.com/ivankudzin/payflow/internal/infra/provider"
	reconcilesvc "github.com/ivankudzin/payflow/internal/services/reconcile"
	"github.com/ivankudzin/payflow/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/payflow/internal/transport/http/errors"
)

const maxWebhookBody = 1 << 20

// WebhookHandler terminates provider notifications. Signature verification
// runs over the raw request bytes before any JSON decoding, so the check
// covers exactly what the provider signed.
type WebhookHandler struct {
	reconcile       *reconcilesvc.Service
	verifier        *provider.Verifier
	signatureHeader string
	retryWindow     time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

func NewWebhookHandler(
	reconcile *reconcilesvc.Service,
	verifier *provider.Verifier,
	signatureHeader string,
	retryWindow time.Duration,
	log *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		reconcile:       reconcile,
		verifier:        verifier,
		signatureHeader: signatureHeader,
		retryWindow:     retryWindow,
		logger:          log,
		now:             time.Now,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.reconcile == nil || h.verifier == nil {
		writeInternal(w, "WEBHOOK_SERVICE_UNAVAILABLE", "webhook processing is unavailable")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "INVALID_BODY", "failed to read request body")
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(h.signatureHeader)); err != nil {
		if h.logger != nil {
			h.logger.Warn("webhook signature rejected", zap.Error(err))
		}
		writeBadRequest(w, "INVALID_SIGNATURE", "signature verification failed")
		return
	}

	var event model.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid event payload")
		return
	}

	result, err := h.reconcile.Apply(r.Context(), event)
	if err != nil {
		switch {
		case errors.Is(err, reconcilesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid event payload")
		case errors.Is(err, reconcilesvc.ErrIntentNotFound):
			h.writeIntentNotFound(w, event)
		default:
			if h.logger != nil {
				h.logger.Error("webhook reconciliation failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", event.Type),
					zap.Error(err),
				)
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to process event")
		}
		return
	}

	if h.logger != nil {
		h.logger.Info("webhook processed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.String("intent_id", result.IntentID),
			zap.Bool("idempotent", result.AlreadyProcessed),
			zap.Bool("ignored", result.Ignored),
		)
	}

	httperrors.Write(w, http.StatusOK, dto.WebhookAckResponse{
		OK:         true,
		IntentID:   result.IntentID,
		State:      string(result.State),
		Idempotent: result.AlreadyProcessed,
		Ignored:    result.Ignored,
	})
}

// writeIntentNotFound answers 409 while the event is young enough that the
// intent row may still be in flight, so the provider retries. Only events
// known to be older than the window get a terminal 404; an event without a
// created_at is treated as young.
func (h *WebhookHandler) writeIntentNotFound(w http.ResponseWriter, event model.WebhookEvent) {
	if h.retryWindow > 0 && (event.CreatedAt.IsZero() || h.now().Sub(event.CreatedAt) < h.retryWindow) {
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "INTENT_NOT_READY",
			Message: "purchase intent not found yet, retry later",
		})
		return
	}
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
		Code:    "INTENT_NOT_FOUND",
		Message: "purchase intent not found",
	})
}
