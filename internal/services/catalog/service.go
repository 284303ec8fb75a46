package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivankudzin/payflow/internal/domain/enums"
	"github.com/ivankudzin/payflow/internal/domain/model"
	pgrepo "github.com/ivankudzin/payflow/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrSubjectNotFound = errors.New("subject not found")
)

type Store interface {
	Resolve(ctx context.Context, subjectID string) (pgrepo.SubjectRecord, error)
}

type Cache interface {
	GetSubject(ctx context.Context, subjectID string) (model.Subject, bool, error)
	SetSubject(ctx context.Context, subject model.Subject, ttl time.Duration) error
}

type Config struct {
	CacheTTL time.Duration
}

// Service resolves purchasable subjects and their prices. It is the only
// source of truth for amounts: checkout never accepts a price from the
// client.
type Service struct {
	store Store
	cache Cache
	cfg   Config
}

func NewService(store Store, cfg Config) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
	}
}

// AttachCache enables the read-through price cache. Cache failures degrade
// to a direct store read.
func (s *Service) AttachCache(cache Cache) {
	s.cache = cache
}

func (s *Service) Resolve(ctx context.Context, subjectID string) (model.Subject, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return model.Subject{}, ErrValidation
	}
	if s.store == nil {
		return model.Subject{}, fmt.Errorf("catalog store is nil")
	}

	if s.cache != nil {
		if cached, ok, err := s.cache.GetSubject(ctx, subjectID); err == nil && ok {
			return cached, nil
		}
	}

	rec, err := s.store.Resolve(ctx, subjectID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSubjectNotFound) {
			return model.Subject{}, ErrSubjectNotFound
		}
		return model.Subject{}, err
	}

	subject := model.Subject{
		ID:         rec.ID,
		Kind:       enums.SubjectKind(strings.ToLower(strings.TrimSpace(rec.Kind))),
		Title:      rec.Title,
		PriceMinor: rec.PriceMinor,
		Currency:   strings.ToUpper(strings.TrimSpace(rec.Currency)),
		ImageRef:   rec.ImageRef,
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		_ = s.cache.SetSubject(ctx, subject, s.cfg.CacheTTL)
	}

	return subject, nil
}
