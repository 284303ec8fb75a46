package apiapp

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ivankudzin/payflow/internal/infra/provider"
	authsvc "github.com/ivankudzin/payflow/internal/services/auth"
	checkoutsvc "github.com/ivankudzin/payflow/internal/services/checkout"
	entsvc "github.com/ivankudzin/payflow/internal/services/entitlements"
	reconcilesvc "github.com/ivankudzin/payflow/internal/services/reconcile"
	"github.com/ivankudzin/payflow/internal/transport/http/handlers"
)

type Dependencies struct {
	CheckoutService     *checkoutsvc.Service
	ReconcileService    *reconcilesvc.Service
	EntitlementService  *entsvc.Service
	JWTManager          *authsvc.JWTManager
	WebhookVerifier     *provider.Verifier
	SignatureHeader     string
	NotFoundRetryWindow time.Duration
	Logger              *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	checkoutHandler := handlers.NewCheckoutHandler(deps.CheckoutService)
	webhookHandler := handlers.NewWebhookHandler(
		deps.ReconcileService,
		deps.WebhookVerifier,
		deps.SignatureHeader,
		deps.NotFoundRetryWindow,
		deps.Logger,
	)
	entitlementsHandler := handlers.NewEntitlementsHandler(deps.EntitlementService)
	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)

	r.Get("/healthz", healthHandler.Get)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(authMW).Post("/checkout/sessions", checkoutHandler.Create)
		r.With(authMW).Get("/checkout/intents/{intent_id}", checkoutHandler.Intent)
		r.Post("/payments/webhook", webhookHandler.Handle)
		r.With(authMW).Get("/entitlements/{subject_id}", entitlementsHandler.Get)
	})
}
