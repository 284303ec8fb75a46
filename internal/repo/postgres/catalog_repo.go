package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSubjectNotFound = errors.New("subject not found")

// CatalogRepo is the read-only accessor for purchasable subjects. Prices live
// server-side only; nothing here is writable through the API.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

type SubjectRecord struct {
	ID         string
	Kind       string
	Title      string
	PriceMinor int64
	Currency   string
	ImageRef   string
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

func (r *CatalogRepo) Resolve(ctx context.Context, subjectID string) (SubjectRecord, error) {
	if r.pool == nil {
		return SubjectRecord{}, fmt.Errorf("postgres pool is nil")
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return SubjectRecord{}, fmt.Errorf("invalid subject id")
	}

	var rec SubjectRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, kind, title, price_minor, currency, COALESCE(image_ref, '')
FROM subjects
WHERE id = $1
LIMIT 1
`, subjectID).Scan(
		&rec.ID,
		&rec.Kind,
		&rec.Title,
		&rec.PriceMinor,
		&rec.Currency,
		&rec.ImageRef,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SubjectRecord{}, ErrSubjectNotFound
		}
		return SubjectRecord{}, fmt.Errorf("resolve subject: %w", err)
	}

	return rec, nil
}
