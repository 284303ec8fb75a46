package model

import "time"

// WebhookEvent is the decoded provider notification. Metadata carries the
// intent id embedded at session creation; it is the authoritative join key
// back to the local ledger, the provider session id is the fallback.
type WebhookEvent struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	SessionID   string            `json:"session_id"`
	AmountMinor int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IntentID extracts the embedded purchase-intent reference, if present.
func (e WebhookEvent) IntentID() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata["intent_id"]
}
