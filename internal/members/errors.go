package members

import "errors"

// Errors.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailExists      = errors.New("email already exists")
	ErrInvalidRoleLevel = errors.New("role level must be positive")
	ErrCannotDeleteSelf = errors.New("cannot delete own account")
)
