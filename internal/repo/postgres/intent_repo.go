package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrIntentNotFound  = errors.New("purchase intent not found")
	ErrSessionConflict = errors.New("external session already attached to another intent")
	ErrPendingExists   = errors.New("pending intent already exists for subject and buyer")
)

type IntentRepo struct {
	pool *pgxpool.Pool
}

type IntentRecord struct {
	ID                string
	SubjectID         string
	SubjectKind       string
	BuyerID           int64
	AmountMinor       int64
	Currency          string
	ExternalSessionID *string
	State             string
	Payload           map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewIntentRepo(pool *pgxpool.Pool) *IntentRepo {
	return &IntentRepo{pool: pool}
}

// Create persists a pending intent with its external session already
// attached. It is called only after the provider session exists, so a failed
// checkout never leaves a pending row behind.
func (r *IntentRepo) Create(ctx context.Context, rec IntentRecord) (IntentRecord, error) {
	if r.pool == nil {
		return IntentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(rec.ID) == "" || strings.TrimSpace(rec.SubjectID) == "" || rec.BuyerID <= 0 || rec.AmountMinor <= 0 {
		return IntentRecord{}, fmt.Errorf("invalid intent create payload")
	}
	sessionID := ""
	if rec.ExternalSessionID != nil {
		sessionID = strings.TrimSpace(*rec.ExternalSessionID)
	}
	if sessionID == "" {
		return IntentRecord{}, fmt.Errorf("external session id is required")
	}

	payloadJSON, err := marshalPayload(rec.Payload)
	if err != nil {
		return IntentRecord{}, err
	}

	created, err := scanIntent(r.pool.QueryRow(ctx, `
INSERT INTO purchase_intents (
	id,
	subject_id,
	subject_kind,
	buyer_id,
	amount_minor,
	currency,
	external_session_id,
	state,
	payload,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8::jsonb, NOW(), NOW())
RETURNING id, subject_id, subject_kind, buyer_id, amount_minor, currency, external_session_id, state, payload, created_at, updated_at
`,
		strings.TrimSpace(rec.ID),
		strings.TrimSpace(rec.SubjectID),
		strings.ToLower(strings.TrimSpace(rec.SubjectKind)),
		rec.BuyerID,
		rec.AmountMinor,
		strings.ToUpper(strings.TrimSpace(rec.Currency)),
		sessionID,
		payloadJSON,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "pending") {
				return IntentRecord{}, ErrPendingExists
			}
			return IntentRecord{}, ErrSessionConflict
		}
		return IntentRecord{}, fmt.Errorf("create purchase intent: %w", err)
	}

	return created, nil
}

func (r *IntentRepo) FindByID(ctx context.Context, intentID string) (IntentRecord, error) {
	if r.pool == nil {
		return IntentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return IntentRecord{}, fmt.Errorf("invalid intent id")
	}

	rec, err := scanIntent(r.pool.QueryRow(ctx, `
SELECT id, subject_id, subject_kind, buyer_id, amount_minor, currency, external_session_id, state, payload, created_at, updated_at
FROM purchase_intents
WHERE id = $1
LIMIT 1
`, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IntentRecord{}, ErrIntentNotFound
		}
		return IntentRecord{}, fmt.Errorf("find intent by id: %w", err)
	}

	return rec, nil
}

func (r *IntentRepo) FindBySessionID(ctx context.Context, sessionID string) (IntentRecord, error) {
	if r.pool == nil {
		return IntentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return IntentRecord{}, fmt.Errorf("invalid session id")
	}

	rec, err := scanIntent(r.pool.QueryRow(ctx, `
SELECT id, subject_id, subject_kind, buyer_id, amount_minor, currency, external_session_id, state, payload, created_at, updated_at
FROM purchase_intents
WHERE external_session_id = $1
LIMIT 1
`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IntentRecord{}, ErrIntentNotFound
		}
		return IntentRecord{}, fmt.Errorf("find intent by session id: %w", err)
	}

	return rec, nil
}

// LockForReconcile loads the intent row under FOR UPDATE so that two
// concurrent webhook deliveries for the same intent serialize.
func (r *IntentRepo) LockForReconcile(ctx context.Context, tx pgx.Tx, intentID string) (IntentRecord, error) {
	if tx == nil {
		return IntentRecord{}, fmt.Errorf("transaction is required")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return IntentRecord{}, fmt.Errorf("invalid intent id")
	}

	rec, err := scanIntent(tx.QueryRow(ctx, `
SELECT id, subject_id, subject_kind, buyer_id, amount_minor, currency, external_session_id, state, payload, created_at, updated_at
FROM purchase_intents
WHERE id = $1
FOR UPDATE
`, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IntentRecord{}, ErrIntentNotFound
		}
		return IntentRecord{}, fmt.Errorf("lock intent for reconcile: %w", err)
	}

	return rec, nil
}

// MarkCompletedTx flips state pending->completed and records the settled
// amount reported by the provider. The UPDATE is conditional on the prior
// state; the second return value reports whether the row actually changed.
// Settlement keys are merged into the existing payload, so the fields
// written at creation time survive completion.
func (r *IntentRepo) MarkCompletedTx(ctx context.Context, tx pgx.Tx, intentID string, settledAmountMinor int64, payload map[string]any) (IntentRecord, bool, error) {
	if tx == nil {
		return IntentRecord{}, false, fmt.Errorf("transaction is required")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" || settledAmountMinor <= 0 {
		return IntentRecord{}, false, fmt.Errorf("invalid intent complete payload")
	}

	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return IntentRecord{}, false, err
	}

	updated, err := scanIntent(tx.QueryRow(ctx, `
UPDATE purchase_intents
SET
	amount_minor = $2,
	state = 'completed',
	payload = COALESCE(payload, '{}'::jsonb) || $3::jsonb,
	updated_at = NOW()
WHERE id = $1
  AND state = 'pending'
RETURNING id, subject_id, subject_kind, buyer_id, amount_minor, currency, external_session_id, state, payload, created_at, updated_at
`, intentID, settledAmountMinor, payloadJSON))
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IntentRecord{}, false, fmt.Errorf("mark intent completed: %w", err)
	}

	existing, err := scanIntent(tx.QueryRow(ctx, `
SELECT id, subject_id, subject_kind, buyer_id, amount_minor, currency, external_session_id, state, payload, created_at, updated_at
FROM purchase_intents
WHERE id = $1
LIMIT 1
`, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IntentRecord{}, false, ErrIntentNotFound
		}
		return IntentRecord{}, false, fmt.Errorf("reload intent after no-op complete: %w", err)
	}

	return existing, false, nil
}

// MarkFailed transitions pending->failed. Terminal states are left alone;
// the boolean reports whether the transition happened.
func (r *IntentRepo) MarkFailed(ctx context.Context, intentID, reason string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return false, fmt.Errorf("invalid intent id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE purchase_intents
SET
	state = 'failed',
	payload = jsonb_set(COALESCE(payload, '{}'::jsonb), '{failure_reason}', to_jsonb($2::text)),
	updated_at = NOW()
WHERE id = $1
  AND state = 'pending'
`, intentID, strings.TrimSpace(reason))
	if err != nil {
		return false, fmt.Errorf("mark intent failed: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ExpireStalePending fails pending intents created before the cutoff. These
// are sessions the provider never reported back on, usually abandoned
// checkouts whose expiry event was lost.
func (r *IntentRepo) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE purchase_intents
SET
	state = 'failed',
	payload = jsonb_set(COALESCE(payload, '{}'::jsonb), '{failure_reason}', to_jsonb('stale_pending'::text)),
	updated_at = NOW()
WHERE state = 'pending'
  AND created_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire stale intents: %w", err)
	}

	return tag.RowsAffected(), nil
}

// HasPendingForBuyer reports whether a pending intent already exists for the
// subject/buyer pair.
func (r *IntentRepo) HasPendingForBuyer(ctx context.Context, subjectID string, buyerID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" || buyerID <= 0 {
		return false, fmt.Errorf("invalid pending lookup payload")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM purchase_intents
	WHERE subject_id = $1
	  AND buyer_id = $2
	  AND state = 'pending'
)
`, subjectID, buyerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending intent: %w", err)
	}

	return exists, nil
}

func scanIntent(row pgx.Row) (IntentRecord, error) {
	var (
		rec        IntentRecord
		rawPayload []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SubjectID,
		&rec.SubjectKind,
		&rec.BuyerID,
		&rec.AmountMinor,
		&rec.Currency,
		&rec.ExternalSessionID,
		&rec.State,
		&rawPayload,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return IntentRecord{}, err
	}
	rec.Payload = decodePayload(rawPayload)
	return rec, nil
}

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal intent payload: %w", err)
	}
	return string(raw), nil
}

func decodePayload(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]any{}
	}
	if payload == nil {
		return map[string]any{}
	}
	return payload
}
