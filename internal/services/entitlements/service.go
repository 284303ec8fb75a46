package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ivankudzin/payflow/internal/domain/enums"
	"github.com/ivankudzin/payflow/internal/domain/model"
	pgrepo "github.com/ivankudzin/payflow/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrSubjectNotFound = errors.New("subject not found")
)

const orderStatusConfirmed = "confirmed"

type CatalogResolver interface {
	Resolve(ctx context.Context, subjectID string) (model.Subject, error)
}

type EnrollmentStore interface {
	Exists(ctx context.Context, courseID string, userID int64) (bool, error)
}

type OrderStore interface {
	Status(ctx context.Context, orderID string, userID int64) (string, error)
}

// Service answers the read side of the purchase flow: does this user
// already hold the entitlement a completed reconciliation would grant.
type Service struct {
	catalog     CatalogResolver
	enrollments EnrollmentStore
	orders      OrderStore
}

type Dependencies struct {
	Catalog     CatalogResolver
	Enrollments EnrollmentStore
	Orders      OrderStore
}

type Ownership struct {
	SubjectID string
	Kind      enums.SubjectKind
	Owned     bool
}

func NewService(deps Dependencies) *Service {
	return &Service{
		catalog:     deps.Catalog,
		enrollments: deps.Enrollments,
		orders:      deps.Orders,
	}
}

func (s *Service) Owns(ctx context.Context, userID int64, subjectID string) (Ownership, error) {
	if userID <= 0 {
		return Ownership{}, ErrValidation
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Ownership{}, ErrValidation
	}
	if s.catalog == nil {
		return Ownership{}, fmt.Errorf("entitlement dependencies are not configured")
	}

	subject, err := s.catalog.Resolve(ctx, subjectID)
	if err != nil {
		return Ownership{}, err
	}

	ownership := Ownership{SubjectID: subject.ID, Kind: subject.Kind}

	switch subject.Kind {
	case enums.SubjectKindCourse:
		if s.enrollments == nil {
			return Ownership{}, fmt.Errorf("enrollment store is nil")
		}
		owned, err := s.enrollments.Exists(ctx, subject.ID, userID)
		if err != nil {
			return Ownership{}, fmt.Errorf("check enrollment: %w", err)
		}
		ownership.Owned = owned
	case enums.SubjectKindOrder:
		if s.orders == nil {
			return Ownership{}, fmt.Errorf("order store is nil")
		}
		// The lookup is scoped to userID, so a confirmed order that
		// belongs to another buyer comes back as not found.
		status, err := s.orders.Status(ctx, subject.ID, userID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrOrderNotFound) {
				ownership.Owned = false
				return ownership, nil
			}
			return Ownership{}, fmt.Errorf("get order status: %w", err)
		}
		ownership.Owned = status == orderStatusConfirmed
	default:
		return Ownership{}, ErrValidation
	}

	return ownership, nil
}
