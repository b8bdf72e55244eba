package domain

import (
	"fmt"
	"time"
)

// GoalStatus is the payment status of a weekly goal.
type GoalStatus string

// Goal statuses.
const (
	GoalStatusNotPaid   GoalStatus = "not_paid"
	GoalStatusFreeGoal  GoalStatus = "free_goal"
	GoalStatusConfirmed GoalStatus = "confirmed"
	GoalStatusUnknown   GoalStatus = "unknown"
)

// IsValid checks if the goal status is valid.
func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalStatusNotPaid, GoalStatusFreeGoal, GoalStatusConfirmed, GoalStatusUnknown:
		return true
	}
	return false
}

// WeeklyGoal is a member's goal record for one ISO week.
type WeeklyGoal struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Week           Week       `json:"week"`
	Status         GoalStatus `json:"status"`
	ProofURL       string     `json:"proof_url,omitempty"`
	ProofKey       string     `json:"-"`
	ProofExpiresAt *time.Time `json:"proof_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Week is an ISO 8601 week identifier such as "2026-W42".
type Week string

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) Week {
	year, week := t.ISOWeek()
	return Week(fmt.Sprintf("%04d-W%02d", year, week))
}

// ParseWeek validates an ISO week identifier.
func ParseWeek(s string) (Week, error) {
	var year, week int
	if len(s) != 8 {
		return "", fmt.Errorf("invalid week %q: want YYYY-Www", s)
	}
	if _, err := fmt.Sscanf(s, "%4d-W%2d", &year, &week); err != nil {
		return "", fmt.Errorf("invalid week %q: %w", s, err)
	}
	if fmt.Sprintf("%04d-W%02d", year, week) != s {
		return "", fmt.Errorf("invalid week %q: want YYYY-Www", s)
	}
	if week < 1 || week > weeksInYear(year) {
		return "", fmt.Errorf("invalid week %q: week out of range", s)
	}
	return Week(s), nil
}

// Start returns Monday 00:00 UTC of the week.
func (w Week) Start() time.Time {
	var year, week int
	_, _ = fmt.Sscanf(string(w), "%4d-W%2d", &year, &week)
	// Jan 4th is always in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (week-1)*7)
}

func weeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}
