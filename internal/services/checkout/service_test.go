package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/ivankudzin/payflow/internal/domain/enums"
	"github.com/ivankudzin/payflow/internal/domain/model"
	"github.com/ivankudzin/payflow/internal/infra/provider"
	pgrepo "github.com/ivankudzin/payflow/internal/repo/postgres"
)

type catalogStub struct {
	subjects map[string]model.Subject
}

func (s *catalogStub) Resolve(_ context.Context, subjectID string) (model.Subject, error) {
	subject, ok := s.subjects[subjectID]
	if !ok {
		return model.Subject{}, errors.New("subject not found")
	}
	return subject, nil
}

type intentStoreStub struct {
	intents map[string]pgrepo.IntentRecord
}

func newIntentStoreStub() *intentStoreStub {
	return &intentStoreStub{intents: make(map[string]pgrepo.IntentRecord)}
}

func (s *intentStoreStub) Create(_ context.Context, rec pgrepo.IntentRecord) (pgrepo.IntentRecord, error) {
	for _, existing := range s.intents {
		if existing.SubjectID == rec.SubjectID && existing.BuyerID == rec.BuyerID &&
			existing.State == "pending" && existing.SubjectKind == "course" {
			return pgrepo.IntentRecord{}, pgrepo.ErrPendingExists
		}
	}
	rec.State = "pending"
	s.intents[rec.ID] = rec
	return rec, nil
}

func (s *intentStoreStub) FindByID(_ context.Context, intentID string) (pgrepo.IntentRecord, error) {
	rec, ok := s.intents[intentID]
	if !ok {
		return pgrepo.IntentRecord{}, pgrepo.ErrIntentNotFound
	}
	return rec, nil
}

func (s *intentStoreStub) HasPendingForBuyer(_ context.Context, subjectID string, buyerID int64) (bool, error) {
	for _, rec := range s.intents {
		if rec.SubjectID == subjectID && rec.BuyerID == buyerID && rec.State == "pending" {
			return true, nil
		}
	}
	return false, nil
}

type enrollmentStoreStub struct {
	owned map[string]bool
}

func (s *enrollmentStoreStub) Exists(_ context.Context, courseID string, userID int64) (bool, error) {
	return s.owned[courseID], nil
}

type providerStub struct {
	calls    int
	fail     bool
	metadata map[string]string
	amount   int64
}

func (p *providerStub) CreateSession(_ context.Context, in provider.CreateSessionInput) (provider.Session, error) {
	p.calls++
	p.metadata = in.Metadata
	p.amount = in.AmountMinor
	if p.fail {
		return provider.Session{}, provider.ErrSessionCreation
	}
	return provider.Session{
		ID:          "sess_1",
		RedirectURL: "https://provider.test/pay/sess_1",
	}, nil
}

func newTestService(prov *providerStub, intents *intentStoreStub) *Service {
	return NewService(Dependencies{
		Catalog: &catalogStub{subjects: map[string]model.Subject{
			"course-go": {ID: "course-go", Kind: enums.SubjectKindCourse, Title: "Go Masterclass", PriceMinor: 499900, Currency: "INR"},
			"order-77":  {ID: "order-77", Kind: enums.SubjectKindOrder, Title: "Order #77", PriceMinor: 84500, Currency: "INR"},
		}},
		Intents:     intents,
		Enrollments: &enrollmentStoreStub{owned: map[string]bool{}},
		Provider:    prov,
	})
}

func TestInitiatePersistsIntentWithCatalogPrice(t *testing.T) {
	prov := &providerStub{}
	intents := newIntentStoreStub()
	svc := newTestService(prov, intents)

	result, err := svc.Initiate(context.Background(), 42, InitiateInput{
		SubjectID:  "course-go",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if result.RedirectURL == "" {
		t.Fatalf("expected redirect url")
	}
	if result.AmountMinor != 499900 {
		t.Fatalf("amount must come from catalog, got %d", result.AmountMinor)
	}
	if prov.metadata["intent_id"] != result.IntentID {
		t.Fatalf("session metadata must embed the intent id")
	}
	if prov.amount != 499900 {
		t.Fatalf("provider amount must come from catalog, got %d", prov.amount)
	}

	rec, ok := intents.intents[result.IntentID]
	if !ok {
		t.Fatalf("intent was not persisted")
	}
	if rec.State != "pending" {
		t.Fatalf("unexpected intent state: %s", rec.State)
	}
	if rec.ExternalSessionID == nil || *rec.ExternalSessionID != "sess_1" {
		t.Fatalf("intent must carry the provider session id")
	}
}

func TestInitiateLeavesNoIntentOnSessionFailure(t *testing.T) {
	prov := &providerStub{fail: true}
	intents := newIntentStoreStub()
	svc := newTestService(prov, intents)

	_, err := svc.Initiate(context.Background(), 42, InitiateInput{
		SubjectID:  "course-go",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	if !errors.Is(err, ErrSessionCreation) {
		t.Fatalf("got %v, want ErrSessionCreation", err)
	}
	if len(intents.intents) != 0 {
		t.Fatalf("no intent may be persisted after session failure, found %d", len(intents.intents))
	}
}

func TestInitiateRejectsAlreadyOwnedCourse(t *testing.T) {
	prov := &providerStub{}
	svc := NewService(Dependencies{
		Catalog: &catalogStub{subjects: map[string]model.Subject{
			"course-go": {ID: "course-go", Kind: enums.SubjectKindCourse, PriceMinor: 499900, Currency: "INR"},
		}},
		Intents:     newIntentStoreStub(),
		Enrollments: &enrollmentStoreStub{owned: map[string]bool{"course-go": true}},
		Provider:    prov,
	})

	_, err := svc.Initiate(context.Background(), 42, InitiateInput{
		SubjectID:  "course-go",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	if !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("got %v, want ErrAlreadyOwned", err)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be called for an owned course")
	}
}

func TestInitiateRejectsSecondPendingCourseIntent(t *testing.T) {
	prov := &providerStub{}
	intents := newIntentStoreStub()
	svc := newTestService(prov, intents)

	in := InitiateInput{
		SubjectID:  "course-go",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	}
	if _, err := svc.Initiate(context.Background(), 42, in); err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	if _, err := svc.Initiate(context.Background(), 42, in); !errors.Is(err, ErrPendingIntent) {
		t.Fatalf("got %v, want ErrPendingIntent", err)
	}
}

func TestInitiateAllowsRepeatOrderCheckout(t *testing.T) {
	prov := &providerStub{}
	intents := newIntentStoreStub()
	svc := newTestService(prov, intents)

	in := InitiateInput{
		SubjectID:  "order-77",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	}
	if _, err := svc.Initiate(context.Background(), 42, in); err != nil {
		t.Fatalf("order checkout: %v", err)
	}
}

func TestIntentReturnsBuyerLedgerRecord(t *testing.T) {
	prov := &providerStub{}
	intents := newIntentStoreStub()
	svc := newTestService(prov, intents)

	created, err := svc.Initiate(context.Background(), 42, InitiateInput{
		SubjectID:  "course-go",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	intent, err := svc.Intent(context.Background(), 42, created.IntentID)
	if err != nil {
		t.Fatalf("intent: %v", err)
	}
	if intent.State != enums.IntentStatePending {
		t.Fatalf("unexpected state: %s", intent.State)
	}
	if intent.SubjectID != "course-go" || intent.BuyerID != 42 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.ExternalSessionID == nil || *intent.ExternalSessionID != "sess_1" {
		t.Fatalf("intent must expose the provider session id")
	}
}

func TestIntentHidesOtherBuyersRecords(t *testing.T) {
	prov := &providerStub{}
	intents := newIntentStoreStub()
	svc := newTestService(prov, intents)

	created, err := svc.Initiate(context.Background(), 7, InitiateInput{
		SubjectID:  "course-go",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if _, err := svc.Intent(context.Background(), 999, created.IntentID); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("got %v, want ErrIntentNotFound", err)
	}
	if _, err := svc.Intent(context.Background(), 7, "missing"); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("got %v, want ErrIntentNotFound", err)
	}
}

func TestInitiateValidation(t *testing.T) {
	svc := newTestService(&providerStub{}, newIntentStoreStub())

	if _, err := svc.Initiate(context.Background(), 0, InitiateInput{SubjectID: "course-go", SuccessURL: "s", CancelURL: "c"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("buyer id: got %v, want ErrValidation", err)
	}
	if _, err := svc.Initiate(context.Background(), 42, InitiateInput{SuccessURL: "s", CancelURL: "c"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("subject id: got %v, want ErrValidation", err)
	}
}
