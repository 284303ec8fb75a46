package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/payflow/internal/domain/enums"
	"github.com/ivankudzin/payflow/internal/domain/model"
	pgrepo "github.com/ivankudzin/payflow/internal/repo/postgres"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrIntentNotFound     = errors.New("purchase intent not found")
	ErrUnsupportedSubject = errors.New("unsupported subject kind")
)

type IntentStore interface {
	FindByID(ctx context.Context, intentID string) (pgrepo.IntentRecord, error)
	FindBySessionID(ctx context.Context, sessionID string) (pgrepo.IntentRecord, error)
	LockForReconcile(ctx context.Context, tx pgx.Tx, intentID string) (pgrepo.IntentRecord, error)
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, intentID string, settledAmountMinor int64, payload map[string]any) (pgrepo.IntentRecord, bool, error)
	MarkFailed(ctx context.Context, intentID, reason string) (bool, error)
}

type EnrollmentStore interface {
	GrantTx(ctx context.Context, tx pgx.Tx, courseID string, userID int64) (bool, error)
}

type OrderStore interface {
	ConfirmTx(ctx context.Context, tx pgx.Tx, orderID string) (bool, error)
}

// TxRunner runs a function inside a single storage transaction. The
// reconcile state flip and the entitlement grant commit together or not at
// all.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Tx          TxRunner
	Intents     IntentStore
	Enrollments EnrollmentStore
	Orders      OrderStore
}

type Result struct {
	IntentID         string
	SubjectID        string
	BuyerID          int64
	State            enums.IntentState
	AmountMinor      int64
	AlreadyProcessed bool
	Ignored          bool
}

// Service applies verified provider events to the intent ledger. The single
// correctness property everything hangs on: the entitlement grant fires at
// most once per intent, no matter how many times the provider redelivers.
type Service struct {
	tx          TxRunner
	intents     IntentStore
	enrollments EnrollmentStore
	orders      OrderStore
	now         func() time.Time
}

func NewService(deps Dependencies) *Service {
	return &Service{
		tx:          deps.Tx,
		intents:     deps.Intents,
		enrollments: deps.Enrollments,
		orders:      deps.Orders,
		now:         time.Now,
	}
}

func (s *Service) Apply(ctx context.Context, event model.WebhookEvent) (Result, error) {
	if s.intents == nil || s.tx == nil {
		return Result{}, fmt.Errorf("reconcile dependencies are not configured")
	}

	switch enums.EventType(strings.TrimSpace(event.Type)) {
	case enums.EventTypeCheckoutCompleted:
		return s.applyCompleted(ctx, event)
	case enums.EventTypeCheckoutFailed, enums.EventTypeCheckoutExpired:
		return s.applyFailed(ctx, event)
	default:
		// Unknown event types are acknowledged and dropped so the provider
		// does not retry them.
		return Result{Ignored: true}, nil
	}
}

func (s *Service) applyCompleted(ctx context.Context, event model.WebhookEvent) (Result, error) {
	intentID, err := s.resolveIntentID(ctx, event)
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.intents.LockForReconcile(txCtx, tx, intentID)
		if err != nil {
			return err
		}

		if rec.State != string(enums.IntentStatePending) {
			// Replay of an already-settled intent, or a completion for a
			// terminal failure. Either way the state is immutable and no
			// side effects fire; the delivery is re-acknowledged.
			result = resultFromRecord(rec)
			result.AlreadyProcessed = true
			return nil
		}

		if err := s.grantEntitlementTx(txCtx, tx, rec); err != nil {
			return err
		}

		settled := event.AmountMinor
		if settled <= 0 {
			settled = rec.AmountMinor
		}

		updated, changed, err := s.intents.MarkCompletedTx(txCtx, tx, rec.ID, settled, map[string]any{
			"provider_event_id": event.ID,
			"session_id":        event.SessionID,
			"settled_at":        s.now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("intent did not transition to completed state")
		}

		result = resultFromRecord(updated)
		return nil
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrIntentNotFound) {
			return Result{}, ErrIntentNotFound
		}
		return Result{}, err
	}

	return result, nil
}

func (s *Service) applyFailed(ctx context.Context, event model.WebhookEvent) (Result, error) {
	intentID, err := s.resolveIntentID(ctx, event)
	if err != nil {
		return Result{}, err
	}

	changed, err := s.intents.MarkFailed(ctx, intentID, event.Type)
	if err != nil {
		return Result{}, err
	}

	rec, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrIntentNotFound) {
			return Result{}, ErrIntentNotFound
		}
		return Result{}, err
	}

	result := resultFromRecord(rec)
	result.AlreadyProcessed = !changed
	return result, nil
}

// resolveIntentID prefers the intent id embedded in session metadata at
// creation time; the provider's own session id is the fallback join key.
func (s *Service) resolveIntentID(ctx context.Context, event model.WebhookEvent) (string, error) {
	if intentID := strings.TrimSpace(event.IntentID()); intentID != "" {
		return intentID, nil
	}

	sessionID := strings.TrimSpace(event.SessionID)
	if sessionID == "" {
		return "", ErrValidation
	}

	rec, err := s.intents.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrIntentNotFound) {
			return "", ErrIntentNotFound
		}
		return "", err
	}

	return rec.ID, nil
}

func (s *Service) grantEntitlementTx(ctx context.Context, tx pgx.Tx, rec pgrepo.IntentRecord) error {
	switch enums.SubjectKind(rec.SubjectKind) {
	case enums.SubjectKindCourse:
		if s.enrollments == nil {
			return fmt.Errorf("enrollment store is nil")
		}
		if _, err := s.enrollments.GrantTx(ctx, tx, rec.SubjectID, rec.BuyerID); err != nil {
			return err
		}
		return nil
	case enums.SubjectKindOrder:
		if s.orders == nil {
			return fmt.Errorf("order store is nil")
		}
		if _, err := s.orders.ConfirmTx(ctx, tx, rec.SubjectID); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSubject, rec.SubjectKind)
	}
}

func resultFromRecord(rec pgrepo.IntentRecord) Result {
	return Result{
		IntentID:    rec.ID,
		SubjectID:   rec.SubjectID,
		BuyerID:     rec.BuyerID,
		State:       enums.IntentState(rec.State),
		AmountMinor: rec.AmountMinor,
	}
}
