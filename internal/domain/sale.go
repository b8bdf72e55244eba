package domain

import "time"

// Sale is a registered sale. Sales are announced, not stored.
type Sale struct {
	RegisteredBy string    `json:"registered_by"`
	UserID       string    `json:"user_id"`
	RoleLevel    int       `json:"role_level"`
	Product      string    `json:"product"`
	Quantity     float64   `json:"quantity"`
	Value        float64   `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}
