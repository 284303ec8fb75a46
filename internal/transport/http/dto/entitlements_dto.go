package dto

type EntitlementResponse struct {
	SubjectID string `json:"subject_id"`
	Kind      string `json:"kind"`
	Owned     bool   `json:"owned"`
}
