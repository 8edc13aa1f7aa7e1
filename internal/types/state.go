package types

// Status is the Status Projector's view of the engine.
type Status struct {
	RemainingSeconds *int   `json:"remainingSeconds"`
	Status           string `json:"status"`
	IsActive         bool   `json:"isActive"`
}

// TimerState answers the Display Client's getTimerState request.
type TimerState struct {
	RemainingSeconds *int     `json:"remainingSeconds"`
	Status           string   `json:"status"`
	IsActive         bool     `json:"isActive"`
	MinIntervalS     int      `json:"minIntervalS"`
	MaxIntervalS     int      `json:"maxIntervalS"`
	URLList          []string `json:"urlList"`
}

// SaveResult answers the Display Client's saveSettings request.
type SaveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
