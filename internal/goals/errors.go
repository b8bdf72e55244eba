package goals

import "errors"

// Goal errors.
var (
	ErrGoalNotFound  = errors.New("goal not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidWeek   = errors.New("invalid week")
	ErrInvalidStatus = errors.New("invalid goal status")
	ErrMissingFile   = errors.New("file is required")
)
