package domain

import "time"

// Outcome is the result of a recorded action.
type Outcome string

// Action outcomes.
const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// IsValid checks if the outcome is valid.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeWin, OutcomeLose:
		return true
	}
	return false
}

// ActionRecord represents a recorded "ação".
type ActionRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Outcome      Outcome    `json:"outcome"`
	Amount       *float64   `json:"amount,omitempty"`
	Participants []string   `json:"participants"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	DeletedBy    *string    `json:"deleted_by,omitempty"`
}

// IsDeleted returns true if the action was deleted.
func (a *ActionRecord) IsDeleted() bool {
	return a.DeletedAt != nil
}

// HasParticipant reports whether userID took part in the action.
func (a *ActionRecord) HasParticipant(userID string) bool {
	for _, p := range a.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
