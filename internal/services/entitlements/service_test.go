package entitlements

import (
	"context"
	"errors"
	"testing"

	"github.com/ivankudzin/payflow/internal/domain/enums"
	"github.com/ivankudzin/payflow/internal/domain/model"
	pgrepo "github.com/ivankudzin/payflow/internal/repo/postgres"
)

type catalogStub struct {
	subjects map[string]model.Subject
}

func (s *catalogStub) Resolve(_ context.Context, subjectID string) (model.Subject, error) {
	subject, ok := s.subjects[subjectID]
	if !ok {
		return model.Subject{}, ErrSubjectNotFound
	}
	return subject, nil
}

type enrollmentStub struct {
	owned map[string]int64
}

func (s *enrollmentStub) Exists(_ context.Context, courseID string, userID int64) (bool, error) {
	owner, ok := s.owned[courseID]
	return ok && owner == userID, nil
}

type orderRow struct {
	owner  int64
	status string
}

type orderStub struct {
	orders map[string]orderRow
}

func (s *orderStub) Status(_ context.Context, orderID string, userID int64) (string, error) {
	row, ok := s.orders[orderID]
	if !ok || row.owner != userID {
		return "", pgrepo.ErrOrderNotFound
	}
	return row.status, nil
}

func newTestService() *Service {
	return NewService(Dependencies{
		Catalog: &catalogStub{subjects: map[string]model.Subject{
			"course-go": {ID: "course-go", Kind: enums.SubjectKindCourse},
			"order-77":  {ID: "order-77", Kind: enums.SubjectKindOrder},
		}},
		Enrollments: &enrollmentStub{owned: map[string]int64{"course-go": 42}},
		Orders: &orderStub{orders: map[string]orderRow{
			"order-77": {owner: 42, status: "confirmed"},
		}},
	})
}

func TestOwnsEnrolledCourse(t *testing.T) {
	svc := newTestService()

	ownership, err := svc.Owns(context.Background(), 42, "course-go")
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	if !ownership.Owned {
		t.Fatalf("enrolled buyer must own the course")
	}
	if ownership.Kind != enums.SubjectKindCourse {
		t.Fatalf("unexpected kind: %s", ownership.Kind)
	}
}

func TestOwnsCourseNotEnrolled(t *testing.T) {
	svc := newTestService()

	ownership, err := svc.Owns(context.Background(), 7, "course-go")
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	if ownership.Owned {
		t.Fatalf("non-enrolled buyer must not own the course")
	}
}

func TestOwnsConfirmedOrder(t *testing.T) {
	svc := newTestService()

	ownership, err := svc.Owns(context.Background(), 42, "order-77")
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	if !ownership.Owned {
		t.Fatalf("confirmed order must count as owned")
	}
}

func TestOwnsOrderOfAnotherBuyer(t *testing.T) {
	svc := newTestService()

	ownership, err := svc.Owns(context.Background(), 999, "order-77")
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	if ownership.Owned {
		t.Fatalf("confirmed order of another buyer must not count as owned")
	}
}

func TestOwnsPendingOrderIsNotOwned(t *testing.T) {
	svc := newTestService()
	svc.orders = &orderStub{orders: map[string]orderRow{"order-77": {owner: 42, status: "pending"}}}

	ownership, err := svc.Owns(context.Background(), 42, "order-77")
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	if ownership.Owned {
		t.Fatalf("pending order must not count as owned")
	}
}

func TestOwnsValidation(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Owns(context.Background(), 0, "course-go"); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if _, err := svc.Owns(context.Background(), 42, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}
