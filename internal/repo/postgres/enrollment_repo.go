package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepo records course entitlements. Membership is a plain set:
// the insert is idempotent so replays are harmless even outside the
// reconcile transaction guard.
type EnrollmentRepo struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepo(pool *pgxpool.Pool) *EnrollmentRepo {
	return &EnrollmentRepo{pool: pool}
}

// GrantTx enrolls the buyer inside the caller's transaction. Returns whether
// a new row was inserted.
func (r *EnrollmentRepo) GrantTx(ctx context.Context, tx pgx.Tx, courseID string, userID int64) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" || userID <= 0 {
		return false, fmt.Errorf("invalid enrollment payload")
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO enrollments (course_id, user_id, enrolled_at)
VALUES ($1, $2, NOW())
ON CONFLICT (course_id, user_id) DO NOTHING
`, courseID, userID)
	if err != nil {
		return false, fmt.Errorf("grant enrollment: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *EnrollmentRepo) Exists(ctx context.Context, courseID string, userID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" || userID <= 0 {
		return false, fmt.Errorf("invalid enrollment lookup payload")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM enrollments
	WHERE course_id = $1
	  AND user_id = $2
)
`, courseID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}

	return exists, nil
}
