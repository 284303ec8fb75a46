package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/payflow/internal/domain/model"
)

const subjectPrefix = "catalog:subject:"

// CatalogCacheRepo is a read-through cache for subject prices. Misses and
// redis failures fall back to postgres; the cache never serves a price the
// catalog did not produce.
type CatalogCacheRepo struct {
	client *goredis.Client
}

func NewCatalogCacheRepo(client *goredis.Client) *CatalogCacheRepo {
	return &CatalogCacheRepo{client: client}
}

func (r *CatalogCacheRepo) GetSubject(ctx context.Context, subjectID string) (model.Subject, bool, error) {
	if r.client == nil {
		return model.Subject{}, false, nil
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return model.Subject{}, false, fmt.Errorf("subject id is required")
	}

	raw, err := r.client.Get(ctx, subjectPrefix+subjectID).Bytes()
	if err == goredis.Nil {
		return model.Subject{}, false, nil
	}
	if err != nil {
		return model.Subject{}, false, fmt.Errorf("get cached subject: %w", err)
	}

	var subject model.Subject
	if err := json.Unmarshal(raw, &subject); err != nil {
		return model.Subject{}, false, fmt.Errorf("decode cached subject: %w", err)
	}

	return subject, true, nil
}

func (r *CatalogCacheRepo) SetSubject(ctx context.Context, subject model.Subject, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if strings.TrimSpace(subject.ID) == "" || ttl <= 0 {
		return fmt.Errorf("invalid subject cache payload")
	}

	raw, err := json.Marshal(subject)
	if err != nil {
		return fmt.Errorf("encode subject for cache: %w", err)
	}

	if err := r.client.Set(ctx, subjectPrefix+subject.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set cached subject: %w", err)
	}

	return nil
}
