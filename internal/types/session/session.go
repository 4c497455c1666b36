package session

const (
	// InitialBudget is the countdown a new interaction session starts with, in seconds.
	InitialBudget = 100
	// ExtensionBonus is added to the countdown by each successful extension, in seconds.
	ExtensionBonus = 100
	// DefaultExtendCost is the number of credits one extension spends.
	DefaultExtendCost = 1
)

type Snapshot struct {
	ConversationID   string `json:"conversation_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
	IsRunning        bool   `json:"is_running"`
	Expired          bool   `json:"expired"`
}

type OpenRequest struct {
	ConversationID string `json:"conversation_id"`
	InitialSeconds int    `json:"initial_seconds,omitempty"`
}

type ExtendRequest struct {
	CreditCost int `json:"credit_cost,omitempty"`
}

type ExtendResponse struct {
	Extended bool     `json:"extended"`
	Session  Snapshot `json:"session"`
}
