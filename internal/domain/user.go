package domain

import "time"

// User is a roster member.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RoleLevel    int       `json:"role_level"`
	Discord      string    `json:"discord,omitempty"`
	Passport     string    `json:"passport,omitempty"`
	Pasta        string    `json:"pasta,omitempty"`
	Locker       string    `json:"locker,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Tier returns the user's permission tier.
func (u *User) Tier() Tier {
	return TierOf(u.RoleLevel)
}

// Role returns the presentation of the user's role level.
func (u *User) Role() RoleDisplay {
	return DisplayRole(u.RoleLevel)
}
