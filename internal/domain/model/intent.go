package model

import (
	"time"

	"github.com/ivankudzin/payflow/internal/domain/enums"
)

// PurchaseIntent is the ledger record of an attempted purchase, tracked from
// checkout-session creation through payment resolution. Intents are never
// deleted; terminal states stay as an audit trail.
type PurchaseIntent struct {
	ID                string            `json:"id"`
	SubjectID         string            `json:"subject_id"`
	SubjectKind       enums.SubjectKind `json:"subject_kind"`
	BuyerID           int64             `json:"buyer_id"`
	AmountMinor       int64             `json:"amount_minor"`
	Currency          string            `json:"currency"`
	ExternalSessionID *string           `json:"external_session_id"`
	State             enums.IntentState `json:"state"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}
