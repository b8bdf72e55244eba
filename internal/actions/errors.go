package actions

import "errors"

// Errors.
var (
	ErrActionNotFound      = errors.New("action not found")
	ErrInvalidOutcome      = errors.New("outcome must be win or lose")
	ErrAmountNotAllowed    = errors.New("amount is only allowed for wins")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrUnknownParticipants = errors.New("one or more participants not found")
	ErrAlreadyDeleted      = errors.New("action already deleted")
)
