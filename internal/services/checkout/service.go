package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/payflow/internal/domain/enums"
	"github.com/ivankudzin/payflow/internal/domain/model"
	"github.com/ivankudzin/payflow/internal/infra/provider"
	"github.com/ivankudzin/payflow/internal/pkg/validate"
	pgrepo "github.com/ivankudzin/payflow/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrAlreadyOwned    = errors.New("entitlement already granted for subject")
	ErrPendingIntent   = errors.New("pending intent already exists for subject")
	ErrSessionCreation = errors.New("checkout session creation failed")
	ErrIntentNotFound  = errors.New("purchase intent not found")
)

type CatalogResolver interface {
	Resolve(ctx context.Context, subjectID string) (model.Subject, error)
}

type IntentStore interface {
	Create(ctx context.Context, rec pgrepo.IntentRecord) (pgrepo.IntentRecord, error)
	FindByID(ctx context.Context, intentID string) (pgrepo.IntentRecord, error)
	HasPendingForBuyer(ctx context.Context, subjectID string, buyerID int64) (bool, error)
}

type EnrollmentStore interface {
	Exists(ctx context.Context, courseID string, userID int64) (bool, error)
}

type Dependencies struct {
	Catalog     CatalogResolver
	Intents     IntentStore
	Enrollments EnrollmentStore
	Provider    provider.Client
}

type InitiateInput struct {
	SubjectID  string
	SuccessURL string
	CancelURL  string
}

type InitiateResult struct {
	IntentID    string
	RedirectURL string
	AmountMinor int64
	Currency    string
}

// Service is the checkout session initiator: it fixes the price from the
// catalog, creates the provider session with the intent id embedded in
// metadata, and persists the pending intent only once a live session exists.
type Service struct {
	catalog     CatalogResolver
	intents     IntentStore
	enrollments EnrollmentStore
	provider    provider.Client
	newID       func() string
	now         func() time.Time
}

func NewService(deps Dependencies) *Service {
	return &Service{
		catalog:     deps.Catalog,
		intents:     deps.Intents,
		enrollments: deps.Enrollments,
		provider:    deps.Provider,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

func (s *Service) Initiate(ctx context.Context, buyerID int64, in InitiateInput) (InitiateResult, error) {
	if buyerID <= 0 {
		return InitiateResult{}, ErrValidation
	}
	subjectID := strings.TrimSpace(in.SubjectID)
	if !validate.Required(subjectID) || !validate.Required(in.SuccessURL) || !validate.Required(in.CancelURL) {
		return InitiateResult{}, ErrValidation
	}
	if s.catalog == nil || s.intents == nil || s.provider == nil {
		return InitiateResult{}, fmt.Errorf("checkout dependencies are not configured")
	}

	subject, err := s.catalog.Resolve(ctx, subjectID)
	if err != nil {
		return InitiateResult{}, err
	}

	if subject.Kind == enums.SubjectKindCourse {
		if s.enrollments != nil {
			owned, err := s.enrollments.Exists(ctx, subject.ID, buyerID)
			if err != nil {
				return InitiateResult{}, err
			}
			if owned {
				return InitiateResult{}, ErrAlreadyOwned
			}
		}

		pending, err := s.intents.HasPendingForBuyer(ctx, subject.ID, buyerID)
		if err != nil {
			return InitiateResult{}, err
		}
		if pending {
			return InitiateResult{}, ErrPendingIntent
		}
	}

	intentID := s.newID()
	session, err := s.provider.CreateSession(ctx, provider.CreateSessionInput{
		Description: subject.Title,
		AmountMinor: subject.PriceMinor,
		Currency:    subject.Currency,
		SuccessURL:  in.SuccessURL,
		CancelURL:   in.CancelURL,
		Metadata: map[string]string{
			"intent_id":  intentID,
			"subject_id": subject.ID,
		},
	})
	if err != nil {
		// No session exists, so nothing is persisted: a failed call must
		// not leave a pending intent the provider can never reconcile.
		if errors.Is(err, provider.ErrSessionCreation) {
			return InitiateResult{}, fmt.Errorf("%w: %s", ErrSessionCreation, err)
		}
		return InitiateResult{}, err
	}

	created, err := s.intents.Create(ctx, pgrepo.IntentRecord{
		ID:                intentID,
		SubjectID:         subject.ID,
		SubjectKind:       string(subject.Kind),
		BuyerID:           buyerID,
		AmountMinor:       subject.PriceMinor,
		Currency:          subject.Currency,
		ExternalSessionID: &session.ID,
		Payload: map[string]any{
			"source":       "api",
			"display_name": subject.Title,
		},
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrPendingExists) {
			return InitiateResult{}, ErrPendingIntent
		}
		return InitiateResult{}, err
	}

	return InitiateResult{
		IntentID:    created.ID,
		RedirectURL: session.RedirectURL,
		AmountMinor: created.AmountMinor,
		Currency:    created.Currency,
	}, nil
}

// Intent returns the buyer's view of a purchase intent, for polling the
// outcome after the provider redirect. Another buyer's intent is reported
// as not found.
func (s *Service) Intent(ctx context.Context, buyerID int64, intentID string) (model.PurchaseIntent, error) {
	if buyerID <= 0 {
		return model.PurchaseIntent{}, ErrValidation
	}
	intentID = strings.TrimSpace(intentID)
	if !validate.Required(intentID) {
		return model.PurchaseIntent{}, ErrValidation
	}
	if s.intents == nil {
		return model.PurchaseIntent{}, fmt.Errorf("intent store is nil")
	}

	rec, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrIntentNotFound) {
			return model.PurchaseIntent{}, ErrIntentNotFound
		}
		return model.PurchaseIntent{}, fmt.Errorf("find intent: %w", err)
	}
	if rec.BuyerID != buyerID {
		return model.PurchaseIntent{}, ErrIntentNotFound
	}

	return model.PurchaseIntent{
		ID:                rec.ID,
		SubjectID:         rec.SubjectID,
		SubjectKind:       enums.SubjectKind(rec.SubjectKind),
		BuyerID:           rec.BuyerID,
		AmountMinor:       rec.AmountMinor,
		Currency:          rec.Currency,
		ExternalSessionID: rec.ExternalSessionID,
		State:             enums.IntentState(rec.State),
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}
