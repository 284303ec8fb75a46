package dto

type CheckoutCreateRequest struct {
	SubjectID  string `json:"subject_id"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

type CheckoutCreateResponse struct {
	IntentID    string `json:"intent_id"`
	RedirectURL string `json:"redirect_url"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	State       string `json:"state"`
}
