package dto

type WebhookAckResponse struct {
	OK         bool   `json:"ok"`
	IntentID   string `json:"intent_id,omitempty"`
	State      string `json:"state,omitempty"`
	Idempotent bool   `json:"idempotent"`
	Ignored    bool   `json:"ignored,omitempty"`
}
