package enums

type IntentState string

const (
	IntentStatePending   IntentState = "pending"
	IntentStateCompleted IntentState = "completed"
	IntentStateFailed    IntentState = "failed"
)
